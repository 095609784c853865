// Package numkey implements the numeric canonicalizer: a deterministic
// mapping from a bounded decimal numeral to a fixed-width hexadecimal key
// such that numeric order equals byte-lexicographic order of the key.
//
// This is what lets the byte machine treat NumericEquals and Range
// predicates as ordinary trie insertions over the canonical key's bytes
// instead of needing a separate numeric comparator at match time.
package numkey

import (
	"errors"
	"fmt"
	"math"

	"github.com/coregx/ruler/internal/bitscan"
)

// FiveBillion is the admissible magnitude bound: |x| <= FiveBillion.
const FiveBillion = 5_000_000_000.0

// scale preserves six decimal digits of fractional precision, per spec.
const scale = 1_000_000.0

// Width is the fixed width, in hex characters, of every canonical key.
// (FiveBillion*2)*scale = 1e16, which needs 14 hex digits (2^52 < 1e16 < 2^56).
const Width = 14

// maxTicks is the largest tick value a canonical key can represent.
const maxTicks = uint64(1)<<(4*Width) - 1

// ErrInvalidNumber is returned when a value cannot be canonicalized: it is
// not finite, or its magnitude exceeds FiveBillion.
var ErrInvalidNumber = errors.New("numkey: value out of admissible range")

// Canonicalize maps x to its fixed-width uppercase hex key.
//
// Canonicalize(x1) < Canonicalize(x2) (as byte-lexicographic strings) iff
// x1 < x2, for all x1, x2 with |x| <= FiveBillion.
func Canonicalize(x float64) (string, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return "", fmt.Errorf("%w: %v is not finite", ErrInvalidNumber, x)
	}
	if x < -FiveBillion || x > FiveBillion {
		return "", fmt.Errorf("%w: %v exceeds +/-%.0f", ErrInvalidNumber, x, FiveBillion)
	}

	shifted := x + FiveBillion // in [0, 2*FiveBillion]
	ticks := math.Round(shifted * scale)
	if ticks < 0 {
		ticks = 0
	}
	t := uint64(ticks)
	if t > maxTicks {
		t = maxTicks
	}
	return bitscan.EncodeHex(t, Width), nil
}

// MustCanonicalize is Canonicalize but panics on error; useful for
// compile-time-known constants such as range endpoints of +/-FiveBillion.
func MustCanonicalize(x float64) string {
	s, err := Canonicalize(x)
	if err != nil {
		panic(err)
	}
	return s
}

// LowerBound and UpperBound are the canonical keys of the admissible
// extremes, used by Range when an endpoint is unbounded (+/-infinity).
var (
	LowerBound = MustCanonicalize(-FiveBillion)
	UpperBound = MustCanonicalize(FiveBillion)
)
