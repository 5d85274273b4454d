package site

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/golyrics/internal/markup"
)

//go:embed sites.yaml
var defaultTable []byte

// File is the on-disk schema of a descriptor table.
type File struct {
	Version int        `yaml:"version" json:"version"`
	Sites   []FileSite `yaml:"sites" json:"sites"`
}

// FileSite is one descriptor as written in a table file.
type FileSite struct {
	ID             string       `yaml:"id" json:"id"`
	URL            string       `yaml:"url" json:"url"`
	URLFormat      []FileFormat `yaml:"urlFormat" json:"urlFormat"`
	Title          string       `yaml:"title" json:"title"`
	Charset        string       `yaml:"charset" json:"charset"`
	Extract        []ruleChain  `yaml:"extract" json:"extract"`
	Exclude        []ruleSpec   `yaml:"exclude" json:"exclude"`
	Invalid        []string     `yaml:"invalid" json:"invalid"`
	Custom         string       `yaml:"custom" json:"custom"`
	Discriminators []string     `yaml:"discriminators" json:"discriminators"`
	StripMarkup    bool         `yaml:"stripMarkup" json:"stripMarkup"`
}

// FileFormat is one url format rule.
type FileFormat struct {
	Chars string `yaml:"chars" json:"chars"`
	Rep   string `yaml:"rep" json:"rep"`
}

// ruleSpec decodes either a bare tag string or a {start, end} mapping.
type ruleSpec struct {
	markup.Rule
}

type pairSpec struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

func (r *ruleSpec) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		r.Rule = markup.TagRule(n.Value)
		return nil
	case yaml.MappingNode:
		var p pairSpec
		if err := n.Decode(&p); err != nil {
			return err
		}
		r.Rule = markup.PairRule(p.Start, p.End)
		return nil
	}
	return fmt.Errorf("line %d: rule must be a tag string or a {start, end} mapping", n.Line)
}

func (r *ruleSpec) UnmarshalJSON(b []byte) error {
	var tag string
	if err := json.Unmarshal(b, &tag); err == nil {
		r.Rule = markup.TagRule(tag)
		return nil
	}
	var p pairSpec
	if err := json.Unmarshal(b, &p); err != nil {
		return errors.New("rule must be a tag string or a {start, end} object")
	}
	r.Rule = markup.PairRule(p.Start, p.End)
	return nil
}

// ruleChain decodes a single rule or a sequence of rules.
type ruleChain []ruleSpec

func (c *ruleChain) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.SequenceNode {
		var rules []ruleSpec
		if err := n.Decode(&rules); err != nil {
			return err
		}
		*c = rules
		return nil
	}
	var r ruleSpec
	if err := n.Decode(&r); err != nil {
		return err
	}
	*c = ruleChain{r}
	return nil
}

func (c *ruleChain) UnmarshalJSON(b []byte) error {
	var rules []ruleSpec
	if err := json.Unmarshal(b, &rules); err == nil {
		*c = rules
		return nil
	}
	var r ruleSpec
	if err := json.Unmarshal(b, &r); err != nil {
		return err
	}
	*c = ruleChain{r}
	return nil
}

func rules(specs []ruleSpec) []markup.Rule {
	if len(specs) == 0 {
		return nil
	}
	out := make([]markup.Rule, len(specs))
	for i, s := range specs {
		out[i] = s.Rule
	}
	return out
}

// Descriptor converts the file form into a Descriptor, resolving the
// custom extractor by name.
func (fs FileSite) Descriptor() (Descriptor, error) {
	d := Descriptor{
		ID:             fs.ID,
		URL:            fs.URL,
		Title:          fs.Title,
		Charset:        fs.Charset,
		Exclude:        rules(fs.Exclude),
		Invalid:        append([]string(nil), fs.Invalid...),
		CustomName:     fs.Custom,
		Discriminators: append([]string(nil), fs.Discriminators...),
		StripMarkup:    fs.StripMarkup,
	}
	for _, f := range fs.URLFormat {
		d.Format = append(d.Format, FormatRule{Chars: f.Chars, Rep: f.Rep})
	}
	for _, chain := range fs.Extract {
		d.Extract = append(d.Extract, rules(chain))
	}
	if fs.Custom != "" {
		fn, ok := CustomExtractor(fs.Custom)
		if !ok {
			return Descriptor{}, fmt.Errorf("%s: unknown custom extractor %q", fs.ID, fs.Custom)
		}
		d.Custom = fn
	}
	return d, nil
}

// Parse decodes a table. format is "yaml", "json" or "" to try YAML then
// JSON.
func Parse(b []byte, format string) (*Registry, error) {
	var f File
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(b, &f); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case "json":
		if err := json.Unmarshal(b, &f); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &f); err != nil {
			if jerr := json.Unmarshal(b, &f); jerr != nil {
				return nil, fmt.Errorf("parse sites: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	descs := make([]Descriptor, 0, len(f.Sites))
	for _, fs := range f.Sites {
		d, err := fs.Descriptor()
		if err != nil {
			return nil, err
		}
		descs = append(descs, d)
	}
	return New(descs)
}

// LoadFile reads a YAML or JSON descriptor table from path.
func LoadFile(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	format := ""
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		format = "yaml"
	case ".json":
		format = "json"
	}
	r, err := Parse(b, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Default returns the built-in descriptor table.
func Default() (*Registry, error) {
	return Parse(defaultTable, "yaml")
}
