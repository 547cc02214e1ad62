// Package lookup loads the catalogue of known block identifiers.
package lookup

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/iggydv12/voxelink/internal/world"
)

//go:embed palette.yaml
var defaultPalette []byte

// Catalogue is the set of block identifiers the world store accepts,
// grouped by palette for map rendering and verification.
type Catalogue struct {
	Version     string              `yaml:"version"`
	Palette     map[string][]string `yaml:"palette"`
	Transparent []string            `yaml:"transparent"`

	known map[string]bool
}

// Default returns the embedded catalogue.
func Default() (*Catalogue, error) {
	return Parse(defaultPalette)
}

// Load reads a catalogue from a YAML file. An empty path yields Default.
func Load(path string) (*Catalogue, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read palette: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalogue and normalises every name.
func Parse(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse palette: %w", err)
	}
	c.known = make(map[string]bool)
	for _, name := range c.All() {
		b, err := world.ParseBlock(name)
		if err != nil {
			return nil, fmt.Errorf("palette entry: %w", err)
		}
		c.known[b.Name] = true
	}
	return &c, nil
}

// All returns every palette entry followed by the transparent blocks.
// Palettes are visited in name order; duplicates are kept.
func (c *Catalogue) All() []string {
	names := make([]string, 0, len(c.Palette))
	for name := range c.Palette {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []string
	for _, name := range names {
		out = append(out, c.Palette[name]...)
	}
	return append(out, c.Transparent...)
}

// Known reports whether b's identifier is in the catalogue. States and
// data are not checked.
func (c *Catalogue) Known(b world.Block) bool {
	return c.known[b.Name]
}
