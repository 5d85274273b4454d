package template

import (
	"strings"
	"testing"

	"github.com/hyperifyio/golyrics/internal/markup"
	"github.com/hyperifyio/golyrics/internal/settings"
	"github.com/hyperifyio/golyrics/internal/site"
)

func TestBuild_SubstitutesWithFormatRules(t *testing.T) {
	d := site.Descriptor{
		ID:      "x",
		URL:     "http://x/{artist}-{title}",
		Format:  []site.FormatRule{{Chars: " ", Rep: "-"}},
		Extract: [][]markup.Rule{{markup.TagRule("<div id='songlyrics_h' class='dn'>")}},
	}
	got := Build(d, site.Query{Artist: "Muse", Title: "Uprising"}, nil)
	if got != "http://x/Muse-Uprising" {
		t.Fatalf("unexpected url: %q", got)
	}
	got = Build(d, site.Query{Artist: "Pink Floyd", Title: "Time"}, nil)
	if got != "http://x/Pink-Floyd-Time" {
		t.Fatalf("unexpected url: %q", got)
	}
}

func TestBuild_FormatRulesApplyInOrder(t *testing.T) {
	d := site.Descriptor{
		URL: "http://x/{artist}",
		Format: []site.FormatRule{
			{Chars: " ", Rep: "_"},
			{Chars: "_", Rep: "+"},
		},
	}
	if got := Build(d, site.Query{Artist: "a b"}, nil); got != "http://x/a+b" {
		t.Fatalf("unexpected url: %q", got)
	}
}

func TestBuild_CapitalizedAndInitialPlaceholders(t *testing.T) {
	d := site.Descriptor{
		URL:    "http://x/{a}/{Artist}:{Title}",
		Format: []site.FormatRule{{Chars: " ", Rep: "_"}},
	}
	got := Build(d, site.Query{Artist: "the BEATLES", Title: "let it be"}, nil)
	if got != "http://x/t/The_Beatles:Let_It_Be" {
		t.Fatalf("unexpected url: %q", got)
	}
	got = Build(d, site.Query{Artist: "Émilie Simon", Title: "x"}, nil)
	if !strings.HasPrefix(got, "http://x/%C3%A9/") {
		t.Fatalf("expected encoded lowercase initial, got %q", got)
	}
}

func TestBuild_EmptyFieldsNeverFail(t *testing.T) {
	d := site.Descriptor{URL: "http://x/{album}/{artist}/{title}"}
	if got := Build(d, site.Query{}, nil); got != "http://x///" {
		t.Fatalf("unexpected url: %q", got)
	}
	if Build(site.Descriptor{}, site.Query{Artist: "a"}, nil) != "" {
		t.Fatalf("descriptor without template should build empty url")
	}
}

func TestBuild_SettingsPlaceholders(t *testing.T) {
	d := site.Descriptor{
		URL:    "http://www.google.com/search?num={gsearch_no}&q={artist}+{title}+{gsearch}",
		Format: []site.FormatRule{{Chars: "&", Rep: ""}},
	}
	got := Build(d, site.Query{Artist: "Simon & Garfunkel", Title: "Mrs Robinson"}, settings.Defaults())
	want := "http://www.google.com/search?num=20&q=Simon%20%20Garfunkel+Mrs%20Robinson+lyrics"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if strings.Contains(Build(d, site.Query{Artist: "a", Title: "b"}, settings.Map{}), "{") {
		t.Fatalf("unresolved placeholder left in url")
	}
}

func TestBuild_KeepsExistingEscapes(t *testing.T) {
	d := site.Descriptor{
		URL:    "http://x/{Artist}:{Title}",
		Format: []site.FormatRule{{Chars: " ", Rep: "_"}, {Chars: "?", Rep: "%3F"}},
	}
	got := Build(d, site.Query{Artist: "a", Title: "why?"}, nil)
	if got != "http://x/A:Why%3F" {
		t.Fatalf("unexpected url: %q", got)
	}
}

func TestBuild_DefaultTableResolvesEveryPlaceholder(t *testing.T) {
	r, err := site.Default()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	q := site.Query{Artist: "Iron Maiden", Title: "Fear of the Dark", Album: "Fear of the Dark"}
	for _, id := range r.Fetchable() {
		d, _ := r.Lookup(id)
		u := Build(d, q, settings.Defaults())
		if strings.ContainsAny(u, "{} ") {
			t.Fatalf("%s: unresolved or unescaped url %q", id, u)
		}
	}
}

func TestMatchTitle(t *testing.T) {
	cases := []struct {
		pattern, text, artist, title string
		ok                           bool
	}{
		{"{artist} - {title} LYRICS", "Muse - Uprising Lyrics", "Muse", "Uprising", true},
		{"{artist} LYRICS - {title}", "MUSE LYRICS - Uprising", "MUSE", "Uprising", true},
		{"{title} de {artist} no VAGALUME", "Aquarela de Toquinho no Vagalume", "Toquinho", "Aquarela", true},
		{"{artist}:{title} Lyrics - ", "Muse:Uprising Lyrics - LyricWiki", "Muse", "Uprising", true},
		{"{artist} &quot;{title}&quot; Lyrics", `Muse "Uprising" Lyrics`, "Muse", "Uprising", true},
		{"{artist} &amp; {title}", "Muse & Uprising", "Muse", "Uprising", true},
		{"{artist} - {title} LYRICS", "Some other page", "", "", false},
		{"", "Muse - Uprising", "", "", false},
	}
	for _, tc := range cases {
		a, ti, ok := MatchTitle(tc.pattern, tc.text)
		if ok != tc.ok || a != tc.artist || ti != tc.title {
			t.Fatalf("MatchTitle(%q, %q) = %q, %q, %v", tc.pattern, tc.text, a, ti, ok)
		}
	}
}

func TestCapitalize(t *testing.T) {
	if got := Capitalize("fear of the dark"); got != "Fear Of The Dark" {
		t.Fatalf("unexpected: %q", got)
	}
	if got := Capitalize("AC/DC"); got != "AC/DC" {
		t.Fatalf("unexpected: %q", got)
	}
}
