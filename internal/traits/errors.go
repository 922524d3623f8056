package traits

import (
	"errors"
	"fmt"
)

// ErrEmptyCategory is returned when a category has no usable options after exclusions
var ErrEmptyCategory = errors.New("traits: category has no usable options")

// ErrDuplicateOption is returned when two files in a category share a stem
var ErrDuplicateOption = errors.New("traits: duplicate option name")

// ErrUnknownOption is returned when a weight override names no file in its category
var ErrUnknownOption = errors.New("traits: weight override for unknown option")

// ErrSpaceTooLarge is matched by *SpaceTooLargeError
var ErrSpaceTooLarge = errors.New("traits: combination space too large")

// ErrInsufficientCombinations is matched by *InsufficientCombinationsError
var ErrInsufficientCombinations = errors.New("traits: not enough combinations")

// InsufficientCombinationsError reports a requested amount the space cannot satisfy
type InsufficientCombinationsError struct {
	Requested int
	Available uint64
}

func (e *InsufficientCombinationsError) Error() string {
	return fmt.Sprintf("can't make %d artifacts, there are only %d possible combinations", e.Requested, e.Available)
}

// Is lets errors.Is match ErrInsufficientCombinations
func (e *InsufficientCombinationsError) Is(target error) bool {
	return target == ErrInsufficientCombinations
}

// SpaceTooLargeError reports a combination space that cannot be materialized
type SpaceTooLargeError struct {
	Size  uint64 // Saturates at math.MaxUint64
	Limit uint64
}

func (e *SpaceTooLargeError) Error() string {
	return fmt.Sprintf("combination space has %d combinations, at most %d are supported", e.Size, e.Limit)
}

// Is lets errors.Is match ErrSpaceTooLarge
func (e *SpaceTooLargeError) Is(target error) bool {
	return target == ErrSpaceTooLarge
}
