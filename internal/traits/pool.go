package traits

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/layerforge/internal/model"
)

// Entry is one candidate trait file found for a category
type Entry struct {
	Name string // File stem
	Path string
}

// Pool holds the selectable options of one category, in listing order
type Pool struct {
	category string
	options  []*model.TraitOption
}

// NewPool builds a category's pool from its file listing and weight overrides.
// Options absent from weights get model.DefaultWeight; a configured weight of
// exactly 0 drops the option. Option names must be unique within the category
// and every override must name a listed option.
func NewPool(category string, listing []Entry, weights map[string]float64) (*Pool, error) {
	paths := make(map[string]string, len(listing))
	for _, entry := range listing {
		if first, ok := paths[entry.Name]; ok {
			return nil, fmt.Errorf("%w: category %q: %q and %q are both named %q",
				ErrDuplicateOption, category, first, entry.Path, entry.Name)
		}
		paths[entry.Name] = entry.Path
	}

	var unknown []string
	for name := range weights {
		if _, ok := paths[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: category %q has no option named %s",
			ErrUnknownOption, category, strings.Join(quoteAll(unknown), ", "))
	}

	options := make([]*model.TraitOption, 0, len(listing))
	for _, entry := range listing {
		weight := model.DefaultWeight
		if w, ok := weights[entry.Name]; ok {
			if w < 0 {
				return nil, fmt.Errorf("category %q: option %q has negative weight %v", category, entry.Name, w)
			}
			if w == 0 {
				continue
			}
			weight = w
		}

		options = append(options, &model.TraitOption{
			Category: category,
			Name:     entry.Name,
			Path:     entry.Path,
			Weight:   weight,
		})
	}

	if len(options) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEmptyCategory, category)
	}

	return &Pool{category: category, options: options}, nil
}

// Category returns the category identifier
func (p *Pool) Category() string {
	return p.category
}

// Options returns the selectable options. The slice must not be modified.
func (p *Pool) Options() []*model.TraitOption {
	return p.options
}

// Len returns the number of selectable options
func (p *Pool) Len() int {
	return len(p.options)
}

// TotalWeight returns the sum of the pool's option weights
func (p *Pool) TotalWeight() float64 {
	total := 0.0
	for _, o := range p.options {
		total += o.Weight
	}
	return total
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strconv.Quote(n)
	}
	return out
}
