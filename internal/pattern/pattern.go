// Package pattern implements the rule-matching engine's predicate model:
// a single tagged Pattern value per (field, predicate) pair, plus the
// canonicalized Range type.
//
// Equality and hashing are structural: two Patterns built from the same
// kind and operands are interchangeable, which is what lets the byte
// machine reference-count duplicate insertions (spec.md §3's "duplicate
// insertions are reference-counted" invariant).
//
// Modeled as a tagged struct (kind enum selecting which fields are valid)
// the way the teacher models nfa.State, rather than as an interface
// hierarchy — same shape, applied to predicates instead of automaton nodes.
package pattern

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/coregx/ruler/internal/numkey"
)

// Kind identifies which predicate a Pattern represents.
type Kind uint8

const (
	KindExact Kind = iota
	KindPrefix
	KindSuffix
	KindEqualsIgnoreCase
	KindWildcard
	KindNumericEquals
	KindRange
	KindAnythingButStrings
	KindAnythingButNumbers
	KindAnythingButPrefix
	KindExists
	KindAbsent
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindExact:
		return "Exact"
	case KindPrefix:
		return "Prefix"
	case KindSuffix:
		return "Suffix"
	case KindEqualsIgnoreCase:
		return "EqualsIgnoreCase"
	case KindWildcard:
		return "Wildcard"
	case KindNumericEquals:
		return "NumericEquals"
	case KindRange:
		return "Range"
	case KindAnythingButStrings:
		return "AnythingButStrings"
	case KindAnythingButNumbers:
		return "AnythingButNumbers"
	case KindAnythingButPrefix:
		return "AnythingButPrefix"
	case KindExists:
		return "Exists"
	case KindAbsent:
		return "Absent"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// ErrInvalidPattern is returned when pattern operands are structurally
// invalid (e.g. an out-of-range numeric operand).
var ErrInvalidPattern = errors.New("pattern: invalid pattern")

// Range is a (lower, upper) bound pair over the admissible double domain,
// stored as the canonicalized hex bytes of its endpoints so the byte
// machine can insert it as an ordinary trie range.
type Range struct {
	LowerCanon string
	UpperCanon string
	OpenLower  bool
	OpenUpper  bool
}

// Pattern is a single tagged predicate over one field's value.
type Pattern struct {
	kind Kind

	str string // Exact/Prefix/Suffix/EqualsIgnoreCase/Wildcard/AnythingButPrefix operand

	numCanon string // NumericEquals canonical key
	rng      Range  // Range

	strSet []string // AnythingButStrings operands, sorted+deduped
	numSet []string // AnythingButNumbers canonical keys, sorted+deduped
}

// Kind returns which predicate this Pattern represents.
func (p Pattern) Kind() Kind { return p.kind }

// Operand returns the literal string operand for Exact, Prefix, Suffix,
// EqualsIgnoreCase, Wildcard, and AnythingButPrefix patterns.
func (p Pattern) Operand() string { return p.str }

// NumericCanon returns the canonical hex key for a NumericEquals pattern.
func (p Pattern) NumericCanon() string { return p.numCanon }

// RangeBounds returns the canonicalized bounds of a Range pattern.
func (p Pattern) RangeBounds() Range { return p.rng }

// ExcludedStrings returns the sorted, deduplicated exclusion set of an
// AnythingButStrings pattern.
func (p Pattern) ExcludedStrings() []string { return p.strSet }

// ExcludedNumericCanons returns the sorted, deduplicated canonical keys of
// an AnythingButNumbers pattern.
func (p Pattern) ExcludedNumericCanons() []string { return p.numSet }

// NewExact builds an Exact(s) pattern: matches iff the value equals s
// byte-for-byte.
func NewExact(s string) Pattern { return Pattern{kind: KindExact, str: s} }

// NewPrefix builds a Prefix(s) pattern: matches iff the value starts with s.
func NewPrefix(s string) Pattern { return Pattern{kind: KindPrefix, str: s} }

// NewSuffix builds a Suffix(s) pattern: matches iff the value ends with s.
func NewSuffix(s string) Pattern { return Pattern{kind: KindSuffix, str: s} }

// NewEqualsIgnoreCase builds a case-insensitive exact-match pattern.
func NewEqualsIgnoreCase(s string) Pattern {
	return Pattern{kind: KindEqualsIgnoreCase, str: s}
}

// NewWildcard builds a Wildcard(s) pattern. s is stored verbatim; the byte
// machine splits it into literal segments at insertion time via
// internal/segment.
func NewWildcard(s string) Pattern { return Pattern{kind: KindWildcard, str: s} }

// NewAnythingButPrefix builds an AnythingBut{prefix} pattern: matches iff
// the value does NOT start with s.
func NewAnythingButPrefix(s string) Pattern {
	return Pattern{kind: KindAnythingButPrefix, str: s}
}

// NewExists builds an Exists pattern: matches iff the field is present,
// regardless of value.
func NewExists() Pattern { return Pattern{kind: KindExists} }

// NewAbsent builds an Absent pattern: matches iff the field is not present
// in the event at all. Never inserted into the byte machine (spec §4.4);
// handled at the driver level.
func NewAbsent() Pattern { return Pattern{kind: KindAbsent} }

// NewNumericEquals builds a NumericEquals(x) pattern.
// Returns ErrInvalidPattern (wrapping numkey.ErrInvalidNumber) if x is out
// of the admissible range.
func NewNumericEquals(x float64) (Pattern, error) {
	key, err := numkey.Canonicalize(x)
	if err != nil {
		return Pattern{}, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return Pattern{kind: KindNumericEquals, numCanon: key}, nil
}

// NewRange builds a Range pattern over [lower, upper] with the given
// openness at each end. Pass math.Inf(-1)/math.Inf(1) for an unbounded end;
// these are clamped to +/-numkey.FiveBillion internally.
func NewRange(lower, upper float64, openLower, openUpper bool) (Pattern, error) {
	if lower > upper {
		return Pattern{}, fmt.Errorf("%w: lower bound %v exceeds upper bound %v", ErrInvalidPattern, lower, upper)
	}
	lower = clampToAdmissible(lower)
	upper = clampToAdmissible(upper)

	lowerKey, err := numkey.Canonicalize(lower)
	if err != nil {
		return Pattern{}, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	upperKey, err := numkey.Canonicalize(upper)
	if err != nil {
		return Pattern{}, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return Pattern{
		kind: KindRange,
		rng: Range{
			LowerCanon: lowerKey,
			UpperCanon: upperKey,
			OpenLower:  openLower,
			OpenUpper:  openUpper,
		},
	}, nil
}

func clampToAdmissible(x float64) float64 {
	if x < -numkey.FiveBillion {
		return -numkey.FiveBillion
	}
	if x > numkey.FiveBillion {
		return numkey.FiveBillion
	}
	return x
}

// NewAnythingButStrings builds an AnythingBut{strings} pattern: matches iff
// the value is not equal to any of ss.
func NewAnythingButStrings(ss ...string) Pattern {
	set := dedupSortedStrings(ss)
	return Pattern{kind: KindAnythingButStrings, strSet: set}
}

// NewAnythingButNumbers builds an AnythingBut{numbers} pattern: matches iff
// the value, canonicalized, does not equal any canonicalization of xs.
func NewAnythingButNumbers(xs ...float64) (Pattern, error) {
	keys := make([]string, 0, len(xs))
	for _, x := range xs {
		key, err := numkey.Canonicalize(x)
		if err != nil {
			return Pattern{}, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
		}
		keys = append(keys, key)
	}
	return Pattern{kind: KindAnythingButNumbers, numSet: dedupSortedStrings(keys)}, nil
}

func dedupSortedStrings(in []string) []string {
	cp := append([]string(nil), in...)
	sort.Strings(cp)
	out := cp[:0]
	for i, s := range cp {
		if i == 0 || s != cp[i-1] {
			out = append(out, s)
		}
	}
	return out
}

// Equal reports whether p and o are structurally identical: same kind and
// same operands. Two equal Patterns are interchangeable for insertion and
// deletion purposes (spec.md §3).
func (p Pattern) Equal(o Pattern) bool {
	if p.kind != o.kind {
		return false
	}
	switch p.kind {
	case KindExact, KindPrefix, KindSuffix, KindEqualsIgnoreCase, KindWildcard, KindAnythingButPrefix:
		return p.str == o.str
	case KindNumericEquals:
		return p.numCanon == o.numCanon
	case KindRange:
		return p.rng == o.rng
	case KindAnythingButStrings:
		return stringSliceEqual(p.strSet, o.strSet)
	case KindAnythingButNumbers:
		return stringSliceEqual(p.numSet, o.numSet)
	case KindExists, KindAbsent:
		return true
	default:
		return false
	}
}

func stringSliceEqual(a, b []string) bool {
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

// CacheKey returns a stable string encoding the pattern's kind and
// operands, suitable as a map key (Patterns themselves are not comparable
// because some variants carry slices).
func (p Pattern) CacheKey() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d:", p.kind)
	switch p.kind {
	case KindExact, KindPrefix, KindSuffix, KindEqualsIgnoreCase, KindWildcard, KindAnythingButPrefix:
		b.WriteString(p.str)
	case KindNumericEquals:
		b.WriteString(p.numCanon)
	case KindRange:
		fmt.Fprintf(&b, "%s:%s:%v:%v", p.rng.LowerCanon, p.rng.UpperCanon, p.rng.OpenLower, p.rng.OpenUpper)
	case KindAnythingButStrings:
		b.WriteString(strings.Join(p.strSet, "\x00"))
	case KindAnythingButNumbers:
		b.WriteString(strings.Join(p.numSet, "\x00"))
	}
	return b.String()
}

// String returns a debug representation of the pattern.
func (p Pattern) String() string {
	return fmt.Sprintf("Pattern{%s, key=%q}", p.kind, p.CacheKey())
}
