package site

import (
	"regexp"
	"strings"

	"github.com/hyperifyio/golyrics/internal/markup"
)

var customExtractors = map[string]ExtractFunc{
	"darklyrics":      darkLyrics,
	"jamendo":         jamendo,
	"allreggaelyrics": allReggaeLyrics,
}

// CustomExtractor returns the named bespoke extractor.
func CustomExtractor(name string) (ExtractFunc, bool) {
	fn, ok := customExtractors[name]
	return fn, ok
}

var (
	darkFontRE   = regexp.MustCompile(`(?i)<font`)
	darkFontEnd  = regexp.MustCompile(`(?i)</font>`)
	darkAnchorRE = regexp.MustCompile(`(?i)<a name=\d+>`)
)

// darkLyrics cuts one track out of an album page. Tracks are headed by
// "<b>N. Title</b>" and run until the next <font> block.
func darkLyrics(page string, q Query) (string, error) {
	title := strings.TrimSpace(q.Title)
	if title == "" {
		return "", nil
	}
	head, err := regexp.Compile(`(?i)<b>\d+\. ` + regexp.QuoteMeta(title) + `[^<]*</b>`)
	if err != nil {
		return "", err
	}
	loc := head.FindStringIndex(page)
	if loc == nil {
		return "", nil
	}
	reply := page[loc[0]:]
	if end := darkFontRE.FindStringIndex(reply); end != nil {
		reply = reply[:end[0]]
	}
	if i := strings.Index(reply, "</b>"); i >= 0 {
		reply = reply[i+len("</b>"):]
	}
	reply = darkFontEnd.ReplaceAllString(reply, "")
	reply = darkAnchorRE.ReplaceAllString(reply, "")
	return reply, nil
}

var jamendoLyrics = markup.TagRule(`<div id="lyrics" style="margin-left:5px;">`)

// jamendo answers either with an HTML page or with the bare lyrics text.
func jamendo(page string, _ Query) (string, error) {
	if strings.Index(page, "<div") > 0 {
		sp, ok := jamendoLyrics.Find(page, 0)
		if !ok {
			return "", nil
		}
		return sp.Content(page), nil
	}
	return strings.ReplaceAll(page, "\n", "<br />"), nil
}

var preRule = markup.TagRule("<pre>")

func allReggaeLyrics(page string, _ Query) (string, error) {
	sp, ok := preRule.Find(page, 0)
	if !ok {
		return "", nil
	}
	return strings.ReplaceAll(sp.Content(page), "\n", "<br/>\n"), nil
}
