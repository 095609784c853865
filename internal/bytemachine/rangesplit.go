package bytemachine

import (
	"strings"

	"github.com/coregx/ruler/internal/pattern"
)

// hexDigits is the alphabet numkey canonical keys are written in.
const hexDigits = "0123456789ABCDEF"

// decomposeRangeBounds turns a canonicalized Range into the minimal set of
// fixed-width-hex-prefixes whose union, inserted as Prefix-style entries
// into the numeric trie, covers exactly the admissible values in range.
// Adjusts for open bounds by incrementing/decrementing the boundary key.
func decomposeRangeBounds(r pattern.Range) []string {
	lo, hi := r.LowerCanon, r.UpperCanon
	if r.OpenLower {
		inc, ok := incHex(lo)
		if !ok {
			return nil
		}
		lo = inc
	}
	if r.OpenUpper {
		dec, ok := decHex(hi)
		if !ok {
			return nil
		}
		hi = dec
	}
	if lo > hi {
		return nil
	}
	return decomposeRange(lo, hi)
}

// decomposeRange returns the minimal set of prefixes of fixed-width hex
// strings whose union is exactly [lo, hi] (lexicographic, which equals
// numeric order for numkey's canonical keys).
func decomposeRange(lo, hi string) []string {
	if lo > hi {
		return nil
	}
	return decomposeDigits(toDigits(lo), toDigits(hi))
}

// decomposeDigits is the classic digit-range-to-minimal-prefix-set
// recursion (the same shape used for CIDR-block or interval-to-prefix
// decomposition): split off the fully-covered middle digits at the current
// position as bare prefixes, and recurse into the two partially-covered
// edges.
func decomposeDigits(lo, hi []int) []string {
	if len(lo) == 0 {
		return []string{""}
	}
	if equalDigits(lo, hi) {
		return []string{fromDigits(lo)}
	}
	if isAllDigit(lo, 0) && isAllDigit(hi, 15) {
		// The remaining range is the entire sub-domain at this depth: no
		// further digits are needed to disambiguate, so the empty prefix
		// (relative to this depth) covers it. Without this shortcut an
		// unbounded Range decomposes into thousands of single-digit
		// prefixes instead of one.
		return []string{""}
	}

	firstLo, firstHi := lo[0], hi[0]
	if firstLo == firstHi {
		rest := decomposeDigits(lo[1:], hi[1:])
		out := make([]string, len(rest))
		for i, r := range rest {
			out[i] = string(hexDigits[firstLo]) + r
		}
		return out
	}

	var out []string

	leftMax := allDigits(len(lo)-1, 15)
	for _, r := range decomposeDigits(lo[1:], leftMax) {
		out = append(out, string(hexDigits[firstLo])+r)
	}

	for d := firstLo + 1; d < firstHi; d++ {
		out = append(out, string(hexDigits[d]))
	}

	rightMin := allDigits(len(hi)-1, 0)
	for _, r := range decomposeDigits(rightMin, hi[1:]) {
		out = append(out, string(hexDigits[firstHi])+r)
	}

	return out
}

func toDigits(s string) []int {
	out := make([]int, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = strings.IndexByte(hexDigits, s[i])
	}
	return out
}

func fromDigits(ds []int) string {
	b := make([]byte, len(ds))
	for i, d := range ds {
		b[i] = hexDigits[d]
	}
	return string(b)
}

func allDigits(n, d int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = d
	}
	return out
}

func isAllDigit(ds []int, d int) bool {
	for _, x := range ds {
		if x != d {
			return false
		}
	}
	return true
}

func equalDigits(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// incHex increments a fixed-width uppercase hex string by one tick,
// reporting false on overflow (s is all 'F's).
func incHex(s string) (string, bool) {
	b := []byte(s)
	for i := len(b) - 1; i >= 0; i-- {
		idx := strings.IndexByte(hexDigits, b[i])
		if idx < 15 {
			b[i] = hexDigits[idx+1]
			return string(b), true
		}
		b[i] = '0'
	}
	return "", false
}

// decHex decrements a fixed-width uppercase hex string by one tick,
// reporting false on underflow (s is all '0's).
func decHex(s string) (string, bool) {
	b := []byte(s)
	for i := len(b) - 1; i >= 0; i-- {
		idx := strings.IndexByte(hexDigits, b[i])
		if idx > 0 {
			b[i] = hexDigits[idx-1]
			return string(b), true
		}
		b[i] = 'F'
	}
	return "", false
}
