package site

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownSite matches every *UnknownSiteError.
var ErrUnknownSite = errors.New("unknown site")

// UnknownSiteError is returned when a site id is not registered.
type UnknownSiteError struct {
	ID string
}

func (e *UnknownSiteError) Error() string { return fmt.Sprintf("unknown site: %q", e.ID) }

func (e *UnknownSiteError) Is(target error) bool { return target == ErrUnknownSite }

// Registry maps site ids to descriptors. It is read-only once built and
// safe for concurrent use.
type Registry struct {
	ids   []string
	byID  map[string]Descriptor
	hosts map[string]string
}

// New validates descs and builds a registry preserving their order.
func New(descs []Descriptor) (*Registry, error) {
	r := &Registry{
		ids:   make([]string, 0, len(descs)),
		byID:  make(map[string]Descriptor, len(descs)),
		hosts: make(map[string]string, len(descs)*2),
	}
	for _, d := range descs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate site id %q", d.ID)
		}
		r.ids = append(r.ids, d.ID)
		r.byID[d.ID] = d
		for _, h := range []string{d.Host(), idHost(d.ID)} {
			if h == "" {
				continue
			}
			if _, taken := r.hosts[h]; !taken {
				r.hosts[h] = d.ID
			}
		}
	}
	return r, nil
}

// Lookup returns the descriptor registered under id.
func (r *Registry) Lookup(id string) (Descriptor, error) {
	d, ok := r.byID[id]
	if !ok {
		return Descriptor{}, &UnknownSiteError{ID: id}
	}
	return d, nil
}

// IDs returns the registered ids in registration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// Fetchable returns, in order, the ids whose descriptor has a URL
// template. Sites without one can only be reached through a known URL.
func (r *Registry) Fetchable() []string {
	out := make([]string, 0, len(r.ids))
	for _, id := range r.ids {
		if r.byID[id].URL != "" {
			out = append(out, id)
		}
	}
	return out
}

// Len returns the number of registered descriptors.
func (r *Registry) Len() int { return len(r.ids) }

// ByHost finds the descriptor serving host. Subdomains fall back to their
// parent domain, so m.azlyrics.com resolves to azlyrics.com.
func (r *Registry) ByHost(host string) (Descriptor, bool) {
	h := NormalizeHost(host)
	for h != "" {
		if id, ok := r.hosts[h]; ok {
			return r.byID[id], true
		}
		i := strings.IndexByte(h, '.')
		if i < 0 || strings.Count(h, ".") < 2 {
			break
		}
		h = h[i+1:]
	}
	return Descriptor{}, false
}
