// Package extract cuts lyrics out of raw page text, either through a site
// descriptor or through the descriptor-free universal fallback.
package extract

import (
	"fmt"
	"strings"

	"github.com/hyperifyio/golyrics/internal/markup"
	"github.com/hyperifyio/golyrics/internal/site"
)

// Status is the kind of outcome an extraction produced.
type Status int

const (
	StatusNotFound Status = iota
	StatusFound
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusInvalid:
		return "invalid"
	default:
		return "not_found"
	}
}

// Result is the outcome of one extraction. Text is set for StatusFound and
// Reason for StatusInvalid.
type Result struct {
	Status Status
	Text   string
	Reason string
}

// Found returns a successful result carrying text.
func Found(text string) Result { return Result{Status: StatusFound, Text: text} }

// NotFound returns the result for a page where no rule matched.
func NotFound() Result { return Result{Status: StatusNotFound} }

// Invalid returns the result for a page that explicitly has no lyrics.
func Invalid(reason string) Result { return Result{Status: StatusInvalid, Reason: reason} }

// OK reports whether r carries lyrics.
func (r Result) OK() bool { return r.Status == StatusFound }

func (r Result) String() string {
	switch r.Status {
	case StatusFound:
		return fmt.Sprintf("found (%d bytes)", len(r.Text))
	case StatusInvalid:
		return "invalid: " + r.Reason
	default:
		return "not found"
	}
}

// Extract applies d to page. Invalid indicators win over every rule. A
// custom extractor replaces the extract and exclude rules entirely; its
// errors and panics become Invalid results. Extract is a pure function of
// its inputs and safe for concurrent use.
func Extract(d site.Descriptor, page string, q site.Query) Result {
	for _, ind := range d.Invalid {
		if ind != "" && strings.Contains(page, ind) {
			return Invalid(ind)
		}
	}

	var fragment string
	if d.Custom != nil {
		text, err := runCustom(d.Custom, page, q)
		if err != nil {
			return Invalid(err.Error())
		}
		fragment = text
	} else {
		found := false
		for _, chain := range d.Extract {
			if s, ok := markup.Extract(page, chain); ok {
				fragment, found = s, true
				break
			}
		}
		if !found {
			return NotFound()
		}
		fragment = markup.Exclude(fragment, d.Exclude)
	}

	if d.StripMarkup {
		fragment = PlainText(fragment)
	}
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return NotFound()
	}
	return Found(fragment)
}

func runCustom(fn site.ExtractFunc, page string, q site.Query) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("custom extractor panicked: %v", r)
		}
	}()
	return fn(page, q)
}
