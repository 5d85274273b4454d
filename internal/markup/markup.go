// Package markup locates spans of raw page text described by extract and
// exclude rules. It works on byte offsets of the original string so that
// callers can cut or delete spans without reserializing the document.
package markup

import (
	"strings"

	"golang.org/x/net/html"
)

// Rule is either a single start tag (Tag) or a start/end marker pair.
type Rule struct {
	Tag   string
	Start string
	End   string
}

// TagRule returns a rule that takes the content of the element opened by tag.
func TagRule(tag string) Rule { return Rule{Tag: tag} }

// PairRule returns a rule that takes the text between start and end.
func PairRule(start, end string) Rule { return Rule{Start: start, End: end} }

// IsTag reports whether r is the single-tag form.
func (r Rule) IsTag() bool { return r.Tag != "" }

// IsZero reports whether r carries no marker at all.
func (r Rule) IsZero() bool { return r.Tag == "" && r.Start == "" && r.End == "" }

func (r Rule) String() string {
	if r.IsTag() {
		return r.Tag
	}
	return "[" + r.Start + " … " + r.End + "]"
}

// Span describes one match of a rule. Begin..End covers the markers,
// ContentStart..ContentEnd the text between them. Closed is false when the
// closing marker was not found and the content runs to the end of input.
type Span struct {
	Begin        int
	ContentStart int
	ContentEnd   int
	End          int
	Closed       bool
}

// Content returns the text between the markers.
func (sp Span) Content(s string) string { return s[sp.ContentStart:sp.ContentEnd] }

// Find locates the first match of r in s at or after offset from.
func (r Rule) Find(s string, from int) (Span, bool) {
	if from < 0 {
		from = 0
	}
	if from > len(s) || r.IsZero() {
		return Span{}, false
	}
	if r.IsTag() {
		return findTag(s, from, r.Tag)
	}
	return findPair(s, from, r.Start, r.End)
}

func findPair(s string, from int, start, end string) (Span, bool) {
	if start == "" {
		return Span{}, false
	}
	i := strings.Index(s[from:], start)
	if i < 0 {
		return Span{}, false
	}
	begin := from + i
	cs := begin + len(start)
	if end == "" {
		return Span{Begin: begin, ContentStart: cs, ContentEnd: len(s), End: len(s)}, true
	}
	j := strings.Index(s[cs:], end)
	if j < 0 {
		return Span{Begin: begin, ContentStart: cs, ContentEnd: len(s), End: len(s)}, true
	}
	ce := cs + j
	return Span{Begin: begin, ContentStart: cs, ContentEnd: ce, End: ce + len(end), Closed: true}, true
}

// impliedEnd lists elements whose next sibling opening tag closes them.
var impliedEnd = map[string]bool{
	"p": true, "li": true, "dt": true, "dd": true,
	"option": true, "tr": true, "td": true, "th": true,
}

// rawText lists elements whose content is not markup; a '<' inside them
// never opens a tag.
var rawText = map[string]bool{
	"script": true, "style": true, "textarea": true, "title": true,
	"xmp": true, "iframe": true, "noembed": true, "noframes": true,
}

func findTag(s string, from int, tag string) (Span, bool) {
	i := strings.Index(s[from:], tag)
	if i < 0 {
		return Span{}, false
	}
	begin := from + i
	cs := begin + len(tag)
	open := unclosed(begin, cs, len(s))

	name := TagName(tag)
	if name == "" {
		return open, true
	}
	if rawText[name] {
		if ce, end, ok := findRawClose(s, cs, name); ok {
			return Span{Begin: begin, ContentStart: cs, ContentEnd: ce, End: end, Closed: true}, true
		}
		return open, true
	}

	z := html.NewTokenizer(strings.NewReader(s[cs:]))
	depth := 1
	pos := cs
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return open, true
		}
		raw := len(z.Raw())
		switch tt {
		case html.StartTagToken:
			if n, _ := z.TagName(); string(n) == name {
				if depth == 1 && impliedEnd[name] {
					return Span{Begin: begin, ContentStart: cs, ContentEnd: pos, End: pos, Closed: true}, true
				}
				depth++
			}
		case html.EndTagToken:
			if n, _ := z.TagName(); string(n) == name {
				depth--
				if depth == 0 {
					return Span{Begin: begin, ContentStart: cs, ContentEnd: pos, End: pos + raw, Closed: true}, true
				}
			}
		}
		pos += raw
	}
}

// findRawClose finds the first "</name" end tag at or after from, ignoring
// case, and returns where it starts and where it ends.
func findRawClose(s string, from int, name string) (start, end int, ok bool) {
	for i := from; i < len(s); {
		j := strings.Index(s[i:], "</")
		if j < 0 {
			return 0, 0, false
		}
		start = i + j
		k := start + 2
		after := k + len(name)
		if after <= len(s) && strings.EqualFold(s[k:after], name) &&
			(after == len(s) || strings.IndexByte(" \t\r\n\f/>", s[after]) >= 0) {
			end = len(s)
			if gt := strings.IndexByte(s[after:], '>'); gt >= 0 {
				end = after + gt + 1
			}
			return start, end, true
		}
		i = k
	}
	return 0, 0, false
}

func unclosed(begin, cs, n int) Span {
	return Span{Begin: begin, ContentStart: cs, ContentEnd: n, End: n}
}

// TagName returns the lowercased element name of the first start tag in
// tag, or "" when tag does not start with one.
func TagName(tag string) string {
	z := html.NewTokenizer(strings.NewReader(tag))
	switch z.Next() {
	case html.StartTagToken, html.SelfClosingTagToken:
		n, _ := z.TagName()
		return string(n)
	}
	return ""
}

// Extract applies chain left to right, each rule narrowing the output of
// the previous one. It returns false when a rule does not match or the
// result is blank.
func Extract(s string, chain []Rule) (string, bool) {
	if len(chain) == 0 {
		return "", false
	}
	cur := s
	for _, r := range chain {
		sp, ok := r.Find(cur, 0)
		if !ok {
			return "", false
		}
		cur = sp.Content(cur)
	}
	if strings.TrimSpace(cur) == "" {
		return "", false
	}
	return cur, true
}

// Exclude deletes every span matched by each rule, in rule order, markers
// included. A pair whose end marker is missing is left alone; an unclosed
// tag loses only the tag itself. The result is never longer than s.
func Exclude(s string, rules []Rule) string {
	for _, r := range rules {
		pos := 0
		for {
			sp, ok := r.Find(s, pos)
			if !ok {
				break
			}
			if !sp.Closed {
				if !r.IsTag() {
					break
				}
				s = s[:sp.Begin] + s[sp.ContentStart:]
				pos = sp.Begin
				continue
			}
			s = s[:sp.Begin] + s[sp.End:]
			pos = sp.Begin
		}
	}
	return s
}
