package search

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"

	"github.com/hyperifyio/golyrics/internal/settings"
	"github.com/hyperifyio/golyrics/internal/site"
)

// FileProvider loads search hits from a local JSON file for offline and
// testing use. The file holds an array of {"title": "...", "url": "..."}.
type FileProvider struct {
	Path string
}

func (f *FileProvider) Name() string { return "file" }

func (f *FileProvider) Candidates(_ context.Context, q site.Query, _ settings.Getter) ([]Candidate, error) {
	if strings.TrimSpace(f.Path) == "" {
		return nil, errors.New("file provider path is empty")
	}
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	var raw []Candidate
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	title := strings.ToLower(strings.TrimSpace(q.Title))
	out := make([]Candidate, 0, len(raw))
	for _, c := range raw {
		if c.URL == "" || c.Title == "" {
			continue
		}
		if title == "" || strings.Contains(strings.ToLower(c.Title), title) {
			out = append(out, c)
		}
	}
	return out, nil
}
