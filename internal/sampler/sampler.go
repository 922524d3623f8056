// Package sampler draws combinations without replacement, with probability
// proportional to their weight among the combinations still remaining.
//
// # Fixed-point weights
//
// Combination weights are converted to integer units (weightScale units per
// 1.0 of configured weight, rounded, at least one unit for any positive
// weight) so the running total S is exact and ties are well defined.
//
// # Selection
//
// Each draw picks r uniformly from the inclusive range [1, S] and scans the
// live combinations in their original order, accumulating weights; the first
// combination whose cumulative total is >= r is selected. Every combination
// therefore owns exactly its own number of units among the S possible values.
// The selected combination is removed and S shrinks by its weight.
package sampler

import (
	"errors"
	"math"
	"math/rand/v2"

	"github.com/ppiankov/layerforge/internal/model"
	"github.com/ppiankov/layerforge/internal/traits"
)

// weightScale is the number of integer units per 1.0 of configured weight
const weightScale = 1000

// ErrSamplerExhausted is returned when Draw is called with no combinations left
var ErrSamplerExhausted = errors.New("sampler: no combinations remaining")

type entry struct {
	combination model.Combination
	units       int64
}

// Sampler holds the live set of undrawn combinations
type Sampler struct {
	live  []entry
	total int64
	rng   *rand.Rand
}

// New creates a sampler over every combination in space
func New(space *traits.Space, rng *rand.Rand) *Sampler {
	combinations := space.Combinations()
	live := make([]entry, len(combinations))
	var total int64
	for i, c := range combinations {
		units := Units(c.Weight)
		live[i] = entry{combination: c, units: units}
		total += units
	}
	return &Sampler{live: live, total: total, rng: rng}
}

// Units converts a weight to fixed-point units
func Units(weight float64) int64 {
	if weight <= 0 {
		return 0
	}
	units := int64(math.Round(weight * weightScale))
	if units < 1 {
		units = 1
	}
	return units
}

// Draw removes and returns one combination
func (s *Sampler) Draw() (model.Combination, error) {
	if len(s.live) == 0 || s.total <= 0 {
		return model.Combination{}, ErrSamplerExhausted
	}

	r := s.rng.Int64N(s.total) + 1
	idx := s.pick(r)

	selected := s.live[idx]
	s.live = append(s.live[:idx], s.live[idx+1:]...)
	s.total -= selected.units

	return selected.combination, nil
}

// pick returns the index of the first live entry whose cumulative units reach r
func (s *Sampler) pick(r int64) int {
	var cumulative int64
	for i, e := range s.live {
		cumulative += e.units
		if cumulative >= r {
			return i
		}
	}
	// Unreachable while total matches the live set
	return len(s.live) - 1
}

// Remaining returns the number of undrawn combinations
func (s *Sampler) Remaining() int {
	return len(s.live)
}

// TotalWeight returns the remaining weight sum S in fixed-point units
func (s *Sampler) TotalWeight() int64 {
	return s.total
}
