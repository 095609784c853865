// Package bytemachine implements the per-field byte-level automaton: a
// shared forward trie (Exact/Prefix/EqualsIgnoreCase), a separate shared
// numeric trie (NumericEquals/Range) keyed on canonical hex, and a shared
// reversed-byte trie (Suffix) — all three over one bytestate.Arena — plus
// dedicated private chains for the three AnythingBut* divergence predicates
// and an Aho-Corasick-assisted index for Wildcard.
//
// Grounded on meta.Engine (_examples/coregx-coregex/meta/engine.go): one
// Machine per field plays the role the teacher's Engine plays per pattern
// set, coordinating several strategy-specific sub-structures behind a
// AddPattern/DeletePattern/MatchString/MatchNumber surface rather than exposing
// each internal structure to callers.
//
// MatchString is the entry point for string-typed field values, MatchNumber
// for number-typed ones; AWS event-ruler treats numeric predicates and
// string predicates as acting on disjoint typed representations of a
// field's value, and this Machine mirrors that. The numeric trie is kept
// in its own root specifically so a string value can never walk into a
// NumericEquals/Range match by having bytes that happen to collide with a
// canonical hex key (and symmetrically, MatchNumber never walks the
// forward trie). Exists fires from either entry point, since field
// presence is type-agnostic. AnythingButStrings/AnythingButNumbers also
// cross the type boundary deliberately: a number is never equal to any
// excluded string, and vice versa, so each exclusion kind trivially
// satisfies "anything but" when evaluated against the other kind's type.
package bytemachine

import (
	"fmt"

	"github.com/coregx/ahocorasick"
	"github.com/coregx/ruler/internal/bytestate"
	"github.com/coregx/ruler/internal/conv"
	"github.com/coregx/ruler/internal/namestate"
	"github.com/coregx/ruler/internal/pattern"
	"github.com/coregx/ruler/internal/segment"
)

type matchSlot struct {
	pattern   pattern.Pattern
	nameState *namestate.NameState
	refCount  int

	// sites are the shared-trie states this match was attached to (forward
	// and/or suffix root descendants). On deletion the match is detached
	// from each site, but the intermediate shared states themselves are
	// not reclaimed — see DESIGN.md's note on deletion.
	sites []bytestate.StateID

	// private are states allocated exclusively for this match (the
	// AnythingBut* divergence chains). These ARE freed on deletion.
	private []bytestate.StateID
}

// Machine is the byte-level automaton for a single field.
type Machine struct {
	arena       *bytestate.Arena
	forwardRoot bytestate.StateID
	suffixRoot  bytestate.StateID
	numericRoot bytestate.StateID

	reuse *namestate.ReuseCache

	matches      []matchSlot
	freeMatches  []bytestate.MatchID
	patternIndex map[string]bytestate.MatchID

	anythingButPrefixes map[bytestate.MatchID]anythingButPrefixEntry
	exclusionStrings    map[bytestate.MatchID]exclusionEntry
	exclusionNumbers    map[bytestate.MatchID]exclusionEntry
	existsSet           map[bytestate.MatchID]struct{}

	wildcards map[bytestate.MatchID]*segment.Seq
	ac        *ahocorasick.Automaton
	acDirty   bool
}

// New creates an empty Machine. reuse may be nil; when non-nil, it backs
// the additionalNameStateReuse configuration option.
func New(reuse *namestate.ReuseCache) *Machine {
	arena, root := bytestate.NewArena()
	suffixRoot := arena.Alloc()
	numericRoot := arena.Alloc()
	return &Machine{
		arena:               arena,
		forwardRoot:         root,
		suffixRoot:          suffixRoot,
		numericRoot:         numericRoot,
		reuse:               reuse,
		patternIndex:        make(map[string]bytestate.MatchID),
		anythingButPrefixes: make(map[bytestate.MatchID]anythingButPrefixEntry),
		exclusionStrings:    make(map[bytestate.MatchID]exclusionEntry),
		exclusionNumbers:    make(map[bytestate.MatchID]exclusionEntry),
		existsSet:           make(map[bytestate.MatchID]struct{}),
		wildcards:           make(map[bytestate.MatchID]*segment.Seq),
	}
}

// AddPattern inserts p (reference-counting an identical existing
// insertion) and returns the NameState callers should register sub-rules
// against. Absent is rejected: it carries no byte-level information and is
// the matching driver's responsibility.
func (m *Machine) AddPattern(p pattern.Pattern) (*namestate.NameState, error) {
	if p.Kind() == pattern.KindAbsent {
		return nil, fmt.Errorf("%w: Absent", ErrUnsupportedPattern)
	}

	key := p.CacheKey()
	if id, ok := m.patternIndex[key]; ok {
		slot := &m.matches[id]
		slot.refCount++
		return slot.nameState, nil
	}

	var wildcardSeq *segment.Seq
	if p.Kind() == pattern.KindWildcard {
		seq, err := segment.Split(p.Operand())
		if err != nil {
			return nil, fmt.Errorf("bytemachine: %w", err)
		}
		wildcardSeq = seq
	}

	id := m.allocMatch()
	slot := &m.matches[id]
	slot.pattern = p
	slot.refCount = 1
	if m.reuse != nil {
		slot.nameState = m.reuse.GetOrCreate(key)
	} else {
		slot.nameState = namestate.New()
	}
	m.patternIndex[key] = id

	switch p.Kind() {
	case pattern.KindExact, pattern.KindPrefix:
		slot.sites = []bytestate.StateID{insertChain(m.arena, m.forwardRoot, []byte(p.Operand()), id)}
	case pattern.KindSuffix:
		slot.sites = []bytestate.StateID{insertChain(m.arena, m.suffixRoot, reverseBytes([]byte(p.Operand())), id)}
	case pattern.KindEqualsIgnoreCase:
		slot.sites = []bytestate.StateID{insertCaseExpandedChain(m.arena, m.forwardRoot, []byte(p.Operand()), id)}
	case pattern.KindNumericEquals:
		slot.sites = []bytestate.StateID{insertChain(m.arena, m.numericRoot, []byte(p.NumericCanon()), id)}
	case pattern.KindRange:
		prefixes := decomposeRangeBounds(p.RangeBounds())
		sites := make([]bytestate.StateID, 0, len(prefixes))
		for _, pre := range prefixes {
			sites = append(sites, insertChain(m.arena, m.numericRoot, []byte(pre), id))
		}
		slot.sites = sites
	case pattern.KindAnythingButPrefix:
		entry, allocated := buildAnythingButPrefix(m.arena, []byte(p.Operand()))
		m.anythingButPrefixes[id] = entry
		slot.private = allocated
	case pattern.KindAnythingButStrings:
		entry, allocated := buildExclusionTrie(m.arena, p.ExcludedStrings())
		m.exclusionStrings[id] = entry
		slot.private = allocated
	case pattern.KindAnythingButNumbers:
		entry, allocated := buildExclusionTrie(m.arena, p.ExcludedNumericCanons())
		m.exclusionNumbers[id] = entry
		slot.private = allocated
	case pattern.KindWildcard:
		m.wildcards[id] = wildcardSeq
		m.acDirty = true
		m.rebuildAC()
	case pattern.KindExists:
		m.existsSet[id] = struct{}{}
	}
	return slot.nameState, nil
}

// DeletePattern decrements p's reference count and, once it reaches zero,
// detaches its match from every site it was attached to and frees any
// state it privately owned.
func (m *Machine) DeletePattern(p pattern.Pattern) {
	key := p.CacheKey()
	id, ok := m.patternIndex[key]
	if !ok {
		return
	}
	slot := &m.matches[id]
	slot.refCount--
	if slot.refCount > 0 {
		return
	}

	for _, site := range slot.sites {
		m.arena.Get(site).RemoveMatch(id)
	}
	for _, st := range slot.private {
		m.arena.Free(st)
	}

	switch slot.pattern.Kind() {
	case pattern.KindAnythingButPrefix:
		delete(m.anythingButPrefixes, id)
	case pattern.KindAnythingButStrings:
		delete(m.exclusionStrings, id)
	case pattern.KindAnythingButNumbers:
		delete(m.exclusionNumbers, id)
	case pattern.KindWildcard:
		delete(m.wildcards, id)
		m.acDirty = true
		m.rebuildAC()
	case pattern.KindExists:
		delete(m.existsSet, id)
	}

	if m.reuse != nil {
		m.reuse.Release(key)
	}
	delete(m.patternIndex, key)
	m.freeMatch(id)
}

// Contains reports whether an equal pattern is currently inserted.
func (m *Machine) Contains(p pattern.Pattern) bool {
	_, ok := m.patternIndex[p.CacheKey()]
	return ok
}

// IsEmpty reports whether the machine holds no patterns at all.
func (m *Machine) IsEmpty() bool { return len(m.patternIndex) == 0 }

// Stats is a point-in-time introspection snapshot, mirroring the shape of
// the teacher's own diagnostic counters (meta.Engine.Stats-style reporting)
// adapted to this package's structures.
type Stats struct {
	Patterns      int
	ArenaStates   int
	ArenaLive     int
	Wildcards     int
	AnythingButs  int
	ExistsEntries int
}

// Stats reports current machine size.
func (m *Machine) Stats() Stats {
	return Stats{
		Patterns:      len(m.patternIndex),
		ArenaStates:   m.arena.Len(),
		ArenaLive:     m.arena.LiveCount(),
		Wildcards:     len(m.wildcards),
		AnythingButs:  len(m.anythingButPrefixes) + len(m.exclusionStrings) + len(m.exclusionNumbers),
		ExistsEntries: len(m.existsSet),
	}
}

func (m *Machine) allocMatch() bytestate.MatchID {
	if n := len(m.freeMatches); n > 0 {
		id := m.freeMatches[n-1]
		m.freeMatches = m.freeMatches[:n-1]
		return id
	}
	id := bytestate.MatchID(conv.IntToUint32(len(m.matches)))
	m.matches = append(m.matches, matchSlot{})
	return id
}

func (m *Machine) freeMatch(id bytestate.MatchID) {
	m.matches[id] = matchSlot{}
	m.freeMatches = append(m.freeMatches, id)
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}
