// Package catalog holds the code signatures the fix looks for in the game.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"maps"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/k2io/hookingo/internal/pattern"
)

//go:embed signatures.yaml
var signatures []byte

// Variant selects the game build the signatures apply to.
type Variant string

const (
	Full Variant = "full"
	Demo Variant = "demo"
)

// DemoExecutable is the file name of the demo build.
const DemoExecutable = "ffxvi_demo.exe"

// Detect picks the variant from the executable file name.
func Detect(exe string) Variant {
	if exe == DemoExecutable {
		return Demo
	}
	return Full
}

// ErrUnknown means no signature has the requested name.
var ErrUnknown = errors.New("unknown signature")

// Entry is a parsed signature.
type Entry struct {
	Name    string
	Label   string
	Pattern pattern.Pattern
	Offset  uintptr
}

type entry struct {
	Label   string `yaml:"label"`
	Pattern string `yaml:"pattern"`
	Offset  uint64 `yaml:"offset"`
}

// Catalog is the set of signatures for one variant.
type Catalog struct {
	Variant Variant
	entries map[string]Entry
}

// Load returns the built-in catalog for v.
func Load(v Variant) (*Catalog, error) {
	return parse(signatures, v)
}

func parse(src []byte, v Variant) (*Catalog, error) {
	var doc map[Variant]map[string]entry
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, fmt.Errorf("decoding signatures: %w", err)
	}
	raw, ok := doc[Full]
	if !ok {
		return nil, fmt.Errorf("signatures: no %q section", Full)
	}
	if v != Full {
		overlay, ok := doc[v]
		if !ok {
			return nil, fmt.Errorf("signatures: no %q section", v)
		}
		raw = maps.Clone(raw)
		maps.Copy(raw, overlay)
	}

	c := &Catalog{Variant: v, entries: make(map[string]Entry, len(raw))}
	for name, e := range raw {
		p, err := pattern.Parse(e.Pattern)
		if err != nil {
			return nil, fmt.Errorf("signature %s: %w", name, err)
		}
		label := e.Label
		if label == "" {
			label = name
		}
		c.entries[name] = Entry{Name: name, Label: label, Pattern: p, Offset: uintptr(e.Offset)}
	}
	return c, nil
}

// Get returns the signature called name.
func (c *Catalog) Get(name string) (Entry, error) {
	e, ok := c.entries[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknown, name)
	}
	return e, nil
}

// Names lists every signature in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
