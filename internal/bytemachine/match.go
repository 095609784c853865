package bytemachine

import (
	"github.com/coregx/ruler/internal/bytestate"
	"github.com/coregx/ruler/internal/namestate"
	"github.com/coregx/ruler/internal/numkey"
	"github.com/coregx/ruler/internal/pattern"
)

// MatchString evaluates a string-typed field value: Exact, Prefix, Suffix,
// EqualsIgnoreCase, Wildcard, Exists, and AnythingButPrefix/
// AnythingButStrings all participate. AnythingButNumbers also fires
// unconditionally here: a string value is never equal to any excluded
// number, so the "anything but" condition is trivially satisfied.
func (m *Machine) MatchString(value []byte) []*namestate.NameState {
	seen := make(map[bytestate.MatchID]struct{})
	var out []*namestate.NameState
	add := func(id bytestate.MatchID) {
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		out = append(out, m.matches[id].nameState)
	}

	for _, id := range walk(m.arena, m.forwardRoot, value) {
		// walk reports every match on the path. Exact must equal the value
		// byte for byte (its state can also be reached through a
		// case-insensitive branch); EqualsIgnoreCase holds only when the
		// whole value was consumed.
		switch p := m.matches[id].pattern; p.Kind() {
		case pattern.KindExact:
			if string(value) != p.Operand() {
				continue
			}
		case pattern.KindEqualsIgnoreCase:
			if len(value) != len(p.Operand()) {
				continue
			}
		}
		add(id)
	}
	for _, id := range walk(m.arena, m.suffixRoot, reverseBytes(value)) {
		add(id)
	}
	for id := range m.existsSet {
		add(id)
	}
	for id, entry := range m.anythingButPrefixes {
		if entry.matches(m.arena, value) {
			add(id)
		}
	}
	for id, entry := range m.exclusionStrings {
		if entry.matches(m.arena, value) {
			add(id)
		}
	}
	for id := range m.exclusionNumbers {
		add(id) // a string is never one of the excluded numbers
	}

	m.rebuildAC()
	if m.ac != nil {
		for _, id := range m.matchWildcards(value) {
			add(id)
		}
	}

	return out
}

// MatchNumber evaluates a number-typed field value: NumericEquals, Range,
// Exists, and AnythingButNumbers participate. AnythingButStrings fires
// unconditionally: a number is never equal to any excluded string.
// Wildcard and the other string-family predicates never apply to a
// number-typed value (AWS event-ruler's numeric and string predicate
// families act on disjoint typed representations of a field).
func (m *Machine) MatchNumber(x float64) []*namestate.NameState {
	seen := make(map[bytestate.MatchID]struct{})
	var out []*namestate.NameState
	add := func(id bytestate.MatchID) {
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		out = append(out, m.matches[id].nameState)
	}

	canon, err := numkey.Canonicalize(x)
	if err == nil {
		canonBytes := []byte(canon)
		for _, id := range walk(m.arena, m.numericRoot, canonBytes) {
			add(id)
		}
		for id, entry := range m.exclusionNumbers {
			if entry.matches(m.arena, canonBytes) {
				add(id)
			}
		}
	}

	for id := range m.existsSet {
		add(id)
	}
	for id := range m.exclusionStrings {
		add(id) // a number is never one of the excluded strings
	}

	return out
}
