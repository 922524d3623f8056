// Package store holds the artifacts produced by a run, indexed by artifact number.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ppiankov/layerforge/internal/model"
)

var (
	// ErrOutOfRange is returned for artifact numbers outside [0, capacity)
	ErrOutOfRange = errors.New("store: artifact number out of range")
	// ErrDuplicate is returned when a slot is already filled
	ErrDuplicate = errors.New("store: artifact already stored")
	// ErrNotContiguous is returned by Append when the number is not the next one
	ErrNotContiguous = errors.New("store: artifact numbers must be contiguous")
)

// Results is an append-only, fixed-capacity sequence of artifacts. Distinct
// slots may be filled concurrently.
type Results struct {
	mu    sync.RWMutex
	slots []*model.Artifact
	count int
	next  int // Lowest number Append accepts
}

// NewResults creates a store for n artifacts numbered 0..n-1
func NewResults(n int) *Results {
	if n < 0 {
		n = 0
	}
	return &Results{slots: make([]*model.Artifact, n)}
}

// Put stores an artifact in the slot given by its number
func (r *Results) Put(a *model.Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.put(a)
}

// Append stores the artifact with the next contiguous number
func (r *Results) Append(a *model.Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.Number != r.next {
		return fmt.Errorf("%w: got %d, want %d", ErrNotContiguous, a.Number, r.next)
	}
	return r.put(a)
}

func (r *Results) put(a *model.Artifact) error {
	if a == nil {
		return fmt.Errorf("store: nil artifact")
	}
	if a.Number < 0 || a.Number >= len(r.slots) {
		return fmt.Errorf("%w: %d (capacity %d)", ErrOutOfRange, a.Number, len(r.slots))
	}
	if r.slots[a.Number] != nil {
		return fmt.Errorf("%w: %d", ErrDuplicate, a.Number)
	}
	r.slots[a.Number] = a
	r.count++
	for r.next < len(r.slots) && r.slots[r.next] != nil {
		r.next++
	}
	return nil
}

// Get returns the artifact with the given number
func (r *Results) Get(num int) (*model.Artifact, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if num < 0 || num >= len(r.slots) || r.slots[num] == nil {
		return nil, false
	}
	return r.slots[num], true
}

// All returns the stored artifacts in artifact-number order, skipping empty slots
func (r *Results) All() []*model.Artifact {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Artifact, 0, r.count)
	for _, a := range r.slots {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}

// Len returns the number of stored artifacts
func (r *Results) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Cap returns the number of slots
func (r *Results) Cap() int {
	return len(r.slots)
}

// Complete reports whether every slot is filled
func (r *Results) Complete() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count == len(r.slots)
}
