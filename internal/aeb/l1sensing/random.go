package l1sensing

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// RandomSource supplies every random draw the sensor stage makes.
// *rand.Rand from math/rand/v2 satisfies it.
type RandomSource interface {
	// Float64 returns a uniform value in [0, 1).
	Float64() float64
	// NormFloat64 returns a standard normal value.
	NormFloat64() float64
}

// NewSecureSource returns a ChaCha8 generator seeded from crypto/rand, for
// production runs where detection outcomes must not be predictable.
func NewSecureSource() *rand.Rand {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		// crypto/rand.Read does not fail on supported platforms.
		panic("l1sensing: crypto/rand unavailable: " + err.Error())
	}
	return rand.New(rand.NewChaCha8(seed))
}

// NewSeededSource returns a deterministic generator for tests, replays and
// reproducible validation runs.
func NewSeededSource(seed uint64) *rand.Rand {
	var s [32]byte
	binary.LittleEndian.PutUint64(s[:8], seed)
	binary.LittleEndian.PutUint64(s[8:16], ^seed)
	return rand.New(rand.NewChaCha8(s))
}
