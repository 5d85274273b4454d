package site

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperifyio/golyrics/internal/markup"
	"github.com/hyperifyio/golyrics/internal/settings"
)

func TestDefault_LoadsEmbeddedTable(t *testing.T) {
	r, err := Default()
	if err != nil {
		t.Fatalf("load default table: %v", err)
	}
	ids := r.IDs()
	if len(ids) < 30 {
		t.Fatalf("expected the full table, got %d sites", len(ids))
	}
	if ids[0] != "lyrics.wikia.com" || ids[len(ids)-1] != "lololyrics.com" {
		t.Fatalf("registration order not preserved: first=%q last=%q", ids[0], ids[len(ids)-1])
	}

	az, err := r.Lookup("azlyrics.com")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(az.Extract) != 1 || len(az.Exclude) != 3 {
		t.Fatalf("unexpected azlyrics rules: %+v", az)
	}
	if az.Exclude[0] != markup.TagRule("<B>") || az.Exclude[2] != markup.PairRule("[", "]") {
		t.Fatalf("unexpected azlyrics exclude rules: %+v", az.Exclude)
	}

	metro, _ := r.Lookup("metrolyrics.com")
	if len(metro.Extract) != 2 {
		t.Fatalf("expected two alternatives for metrolyrics, got %d", len(metro.Extract))
	}

	lyriki, _ := r.Lookup("lyriki.com")
	if len(lyriki.Extract) != 1 || len(lyriki.Extract[0]) != 2 || lyriki.Extract[0][1] != markup.TagRule("<p>") {
		t.Fatalf("expected chained extract for lyriki: %+v", lyriki.Extract)
	}

	dark, _ := r.Lookup("darklyrics.com")
	if dark.Custom == nil || dark.CustomName != "darklyrics" {
		t.Fatalf("expected custom extractor for darklyrics")
	}

	songs, _ := r.Lookup("songlyrics.com")
	if len(songs.Exclude) != 1 || songs.Exclude[0].Start != "\n[" {
		t.Fatalf("escape sequences not decoded: %+v", songs.Exclude)
	}
}

func TestLookup_UnknownSite(t *testing.T) {
	r, err := Default()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	_, err = r.Lookup("nosuchsite.example")
	if !errors.Is(err, ErrUnknownSite) {
		t.Fatalf("expected ErrUnknownSite, got %v", err)
	}
	var use *UnknownSiteError
	if !errors.As(err, &use) || use.ID != "nosuchsite.example" {
		t.Fatalf("expected *UnknownSiteError, got %T", err)
	}
}

func TestByHost(t *testing.T) {
	r, err := Default()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cases := map[string]string{
		"www.azlyrics.com":   "azlyrics.com",
		"m.azlyrics.com":     "azlyrics.com",
		"api.lololyrics.com": "lololyrics.com",
		"lololyrics.com":     "lololyrics.com",
		"vagalume.com.br":    "vagalume.com.br",
		"stixoi.info":        "stixoi.info (Greek songs)",
		"letras.mus.br":      "letras.mus.br",
	}
	for host, want := range cases {
		d, ok := r.ByHost(host)
		if !ok || d.ID != want {
			t.Fatalf("ByHost(%q) = %q, %v; want %q", host, d.ID, ok, want)
		}
	}
	if _, ok := r.ByHost("example.com"); ok {
		t.Fatalf("unexpected match for unregistered host")
	}
}

func TestFetchable_SkipsTemplateLessSites(t *testing.T) {
	r, err := Default()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, id := range r.Fetchable() {
		if id == "lyricsfreak.com" || id == "sing365.com" {
			t.Fatalf("%s has no url template", id)
		}
	}
	if len(r.Fetchable()) >= r.Len() {
		t.Fatalf("expected some sites without templates")
	}
}

func TestNew_RejectsInvalidDescriptors(t *testing.T) {
	ok := Descriptor{ID: "a", Extract: [][]markup.Rule{{markup.TagRule("<div>")}}}
	cases := []struct {
		name  string
		descs []Descriptor
	}{
		{"duplicate", []Descriptor{ok, ok}},
		{"no extraction", []Descriptor{{ID: "b"}}},
		{"empty id", []Descriptor{{Extract: ok.Extract}}},
		{"half pair", []Descriptor{{ID: "c", Extract: [][]markup.Rule{{markup.PairRule("<x>", "")}}}}},
		{"bad placeholder", []Descriptor{{ID: "d", URL: "http://d/{song}", Extract: ok.Extract}}},
		{"empty indicator", []Descriptor{{ID: "e", Extract: ok.Extract, Invalid: []string{""}}}},
	}
	for _, tc := range cases {
		if _, err := New(tc.descs); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
	custom := Descriptor{ID: "f", Custom: func(string, Query) (string, error) { return "", nil }}
	if _, err := New([]Descriptor{custom}); err != nil {
		t.Fatalf("custom-only descriptor should be valid: %v", err)
	}
}

func TestLoadFile_YAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	yml := filepath.Join(dir, "sites.yaml")
	if err := os.WriteFile(yml, []byte(`
sites:
  - id: one.example
    url: 'http://one.example/{artist}/{title}'
    extract:
      - '<div id="l">'
      - [{start: '<a>', end: '</a>'}, '<p>']
`), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := LoadFile(yml)
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	d, _ := r.Lookup("one.example")
	if len(d.Extract) != 2 || len(d.Extract[1]) != 2 || d.Extract[1][0] != markup.PairRule("<a>", "</a>") {
		t.Fatalf("unexpected yaml rules: %+v", d.Extract)
	}

	js := filepath.Join(dir, "sites.json")
	if err := os.WriteFile(js, []byte(`{"sites":[{"id":"two.example","extract":[{"start":"<b>","end":"</b>"},["<i>","<u>"]],"exclude":["<em>"]}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err = LoadFile(js)
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	d, _ = r.Lookup("two.example")
	if len(d.Extract) != 2 || d.Extract[0][0] != markup.PairRule("<b>", "</b>") || len(d.Extract[1]) != 2 {
		t.Fatalf("unexpected json rules: %+v", d.Extract)
	}
	if len(d.Exclude) != 1 || d.Exclude[0] != markup.TagRule("<em>") {
		t.Fatalf("unexpected json exclude: %+v", d.Exclude)
	}
}

func TestLoadFile_UnknownCustom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.yaml")
	_ = os.WriteFile(path, []byte("sites:\n  - id: x\n    custom: nope\n"), 0o644)
	_, err := LoadFile(path)
	if err == nil || !strings.Contains(err.Error(), "unknown custom extractor") {
		t.Fatalf("expected unknown custom error, got %v", err)
	}
}

func TestDiscriminator(t *testing.T) {
	d := Descriptor{ID: "w", Discriminators: []string{settings.MultiLangWikia}}
	on := d.Discriminator(settings.Map{settings.MultiLangWikia: "true"})
	off := d.Discriminator(settings.Map{settings.MultiLangWikia: "false"})
	if on == off {
		t.Fatalf("discriminator should reflect setting values: %q", on)
	}
	if (Descriptor{ID: "plain"}).Discriminator(settings.Defaults()) != "" {
		t.Fatalf("descriptor without discriminators should yield empty string")
	}
}

func TestFormatRule_Apply(t *testing.T) {
	r := FormatRule{Chars: " ._", Rep: "-"}
	if got := r.Apply("Don't.Stop me_now"); got != "Don't-Stop-me-now" {
		t.Fatalf("unexpected: %q", got)
	}
}

func TestCustom_DarkLyrics(t *testing.T) {
	page := `<h3>album</h3><b>1. Intro</b><br>first song<font>x</font>` +
		`<b>2. The Voice Of Steel</b><br>steel lines<br></font><a name=3>more<font color=#DDDDDD>next`
	fn, _ := CustomExtractor("darklyrics")
	got, err := fn(page, Query{Artist: "x", Title: "the voice of steel"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "<br>steel lines<br>more" {
		t.Fatalf("unexpected: %q", got)
	}
	got, _ = fn(page, Query{Artist: "x", Title: "missing"})
	if got != "" {
		t.Fatalf("expected empty for missing track, got %q", got)
	}
}

func TestCustom_JamendoAndReggae(t *testing.T) {
	j, _ := CustomExtractor("jamendo")
	got, _ := j("line one\nline two", Query{})
	if got != "line one<br />line two" {
		t.Fatalf("unexpected plain conversion: %q", got)
	}
	got, _ = j(`<html><div id="lyrics" style="margin-left:5px;">la</div></html>`, Query{})
	if got != "la" {
		t.Fatalf("unexpected html extraction: %q", got)
	}

	reg, _ := CustomExtractor("allreggaelyrics")
	got, _ = reg("<body><pre>a\nb</pre></body>", Query{})
	if got != "a<br/>\nb" {
		t.Fatalf("unexpected: %q", got)
	}
}
