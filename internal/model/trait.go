package model

import (
	"sort"
	"strings"
)

// DefaultWeight is applied to options without a configured rarity weight
const DefaultWeight = 1.0

// TraitOption identifies a single trait image within a category
type TraitOption struct {
	Category string  `json:"category"` // Category identifier, e.g. "Background 1"
	Name     string  `json:"name"`     // File stem of the source image
	Path     string  `json:"path"`     // Location of the source image
	Weight   float64 `json:"weight"`   // Configured rarity weight (> 0)
}

// Key returns the stable identifier "<category>/<name>"
func (o *TraitOption) Key() string {
	return o.Category + "/" + o.Name
}

// Combination is one option per category, in configuration order.
// Options are shared with the pool that produced them and must not be mutated.
type Combination struct {
	Options []*TraitOption `json:"options"`
	Weight  float64        `json:"weight"` // Sum of member option weights
}

// Key returns a string that is equal for two combinations iff they pick the
// same option in every category
func (c Combination) Key() string {
	parts := make([]string, len(c.Options))
	for i, o := range c.Options {
		parts[i] = o.Key()
	}
	return strings.Join(parts, "|")
}

// Equal reports whether both combinations select the same options
func (c Combination) Equal(other Combination) bool {
	if len(c.Options) != len(other.Options) {
		return false
	}
	for i := range c.Options {
		if c.Options[i].Key() != other.Options[i].Key() {
			return false
		}
	}
	return true
}

// Sorted returns the options ordered by category name (canonical stacking order)
func (c Combination) Sorted() []*TraitOption {
	sorted := make([]*TraitOption, len(c.Options))
	copy(sorted, c.Options)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Category < sorted[j].Category
	})
	return sorted
}

// DrawResult is a drawn combination with its realized rarity and artifact number
type DrawResult struct {
	Combination Combination
	Rarity      float64 // Percentage, 2 decimals
	Number      int     // 0-based, assigned in draw order
}
