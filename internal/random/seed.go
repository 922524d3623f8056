// Package random provides seed generation for the sampler's PRNG.
//
// Seeds come from crypto/rand; the PRNG itself is not cryptographically
// secure. Reusing a seed with the same configuration reproduces a run.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
)

// NewSeed generates a non-zero random seed using crypto/rand.
func NewSeed() (uint64, error) {
	var b [8]byte
	for {
		if _, err := crand.Read(b[:]); err != nil {
			return 0, fmt.Errorf("read random seed: %w", err)
		}
		if seed := binary.LittleEndian.Uint64(b[:]); seed != 0 {
			return seed, nil
		}
	}
}

// New returns a PCG-backed generator for seed.
func New(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
