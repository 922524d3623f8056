package traits

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/ppiankov/layerforge/internal/model"
)

// maxSpaceSize bounds how many combinations NewSpace materializes
const maxSpaceSize = 1 << 24

// Space is the Cartesian product of all pools, in configuration order
type Space struct {
	pools        []*Pool
	combinations []model.Combination
}

// Cardinality returns the product of the pools' option counts.
// Saturates at math.MaxUint64 instead of overflowing.
func Cardinality(pools []*Pool) uint64 {
	if len(pools) == 0 {
		return 0
	}
	total := uint64(1)
	for _, p := range pools {
		hi, lo := bits.Mul64(total, uint64(p.Len()))
		if hi != 0 {
			return math.MaxUint64
		}
		total = lo
	}
	return total
}

// CheckFeasible fails with *InsufficientCombinationsError when amount exceeds
// the space size. Callers must run it before creating any output.
func CheckFeasible(pools []*Pool, amount int) error {
	available := Cardinality(pools)
	if amount < 0 || uint64(amount) > available {
		return &InsufficientCombinationsError{Requested: amount, Available: available}
	}
	return nil
}

// NewSpace materializes every combination. Options are shared with the
// pools, not copied. Spaces above maxSpaceSize fail with *SpaceTooLargeError.
func NewSpace(pools []*Pool) (*Space, error) {
	for _, p := range pools {
		if p.Len() == 0 {
			return nil, fmt.Errorf("%w: %q", ErrEmptyCategory, p.category)
		}
	}

	size := Cardinality(pools)
	if size > maxSpaceSize {
		return nil, &SpaceTooLargeError{Size: size, Limit: maxSpaceSize}
	}
	combinations := make([]model.Combination, 0, size)
	if len(pools) == 0 {
		return &Space{pools: pools, combinations: combinations}, nil
	}

	// Odometer over pool indices; the last category varies fastest
	idx := make([]int, len(pools))
	for {
		options := make([]*model.TraitOption, len(pools))
		weight := 0.0
		for i, p := range pools {
			options[i] = p.options[idx[i]]
			weight += options[i].Weight
		}
		combinations = append(combinations, model.Combination{Options: options, Weight: weight})

		pos := len(pools) - 1
		for pos >= 0 {
			idx[pos]++
			if idx[pos] < pools[pos].Len() {
				break
			}
			idx[pos] = 0
			pos--
		}
		if pos < 0 {
			break
		}
	}

	return &Space{pools: pools, combinations: combinations}, nil
}

// Len returns the number of combinations in the space
func (s *Space) Len() int {
	return len(s.combinations)
}

// Combinations returns every combination in stable order. The slice must not be modified.
func (s *Space) Combinations() []model.Combination {
	return s.combinations
}

// Pools returns the pools the space was built from
func (s *Space) Pools() []*Pool {
	return s.pools
}
