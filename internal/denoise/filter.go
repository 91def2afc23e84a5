package denoise

import (
	"fmt"
	"sort"

	"github.com/cwbudde/docdenoise/internal/raster"
)

// Filter turns a noisy page into a cleaned one.
// Apply must not modify its input.
type Filter interface {
	Name() string
	Apply(p *raster.Gray) *raster.Gray
}

// Params carries named numeric filter settings
type Params map[string]float64

// Get returns the named value or def when unset
func (p Params) Get(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

type constructor func(params Params, lutPath string) (Filter, error)

var registry = map[string]constructor{
	"copy": func(Params, string) (Filter, error) {
		return Copy{}, nil
	},
	"white": func(Params, string) (Filter, error) {
		return AllWhite{}, nil
	},
	"levels": func(p Params, _ string) (Filter, error) {
		return NewLevels(p.Get("black", 0), p.Get("white", 1)), nil
	},
	"median": func(p Params, _ string) (Filter, error) {
		r := int(p.Get("radius", 1))
		if r < 1 {
			return nil, fmt.Errorf("median radius must be positive, got %d", r)
		}
		return Median{Radius: r}, nil
	},
	"nlmeans": func(p Params, _ string) (Filter, error) {
		nl := DefaultNLMeans()
		nl.H = p.Get("h", nl.H)
		nl.Template = int(p.Get("template", float64(nl.Template)))
		nl.Search = int(p.Get("search", float64(nl.Search)))
		if err := nl.Validate(); err != nil {
			return nil, err
		}
		return nl, nil
	},
	"lut": func(p Params, lutPath string) (Filter, error) {
		if lutPath == "" {
			return nil, fmt.Errorf("lut filter requires a table path")
		}
		mc, err := LoadLUT(lutPath)
		if err != nil {
			return nil, err
		}
		return &LUT{Codec: mc, Border: int(p.Get("border", DefaultBorder))}, nil
	},
}

// New builds the named filter
func New(name string, params Params, lutPath string) (Filter, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown filter: %s (available: %v)", name, Names())
	}
	return ctor(params, lutPath)
}

// Names lists the registered filters
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
