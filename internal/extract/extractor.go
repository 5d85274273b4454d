package extract

import "github.com/hyperifyio/golyrics/internal/site"

// Extractor is a lyrics extraction strategy. Implementations must be
// deterministic and free of side effects.
type Extractor interface {
	Extract(page string, q site.Query) Result
}

// DescriptorExtractor applies a site descriptor.
type DescriptorExtractor struct {
	Descriptor site.Descriptor
}

func (e DescriptorExtractor) Extract(page string, q site.Query) Result {
	return Extract(e.Descriptor, page, q)
}

// UniversalExtractor salvages text from pages of unknown sites.
type UniversalExtractor struct{}

func (UniversalExtractor) Extract(page string, _ site.Query) Result {
	text := Universal(page)
	if text == NoTextFound {
		return NotFound()
	}
	return Found(text)
}

// For returns the descriptor strategy when ok is true and the universal
// fallback otherwise, matching the result of a registry host lookup.
func For(d site.Descriptor, ok bool) Extractor {
	if ok {
		return DescriptorExtractor{Descriptor: d}
	}
	return UniversalExtractor{}
}
