// Package bytestate implements the node type of the byte-level automaton:
// a state's outgoing per-byte transitions, its "for all bytes" wildcard
// overlay, the matches attached directly to it, and shortcut residuals for
// compacted linear chains.
//
// Grounded on nfa.State and nfa.Builder (nfa/nfa.go, nfa/builder.go): the
// arena + stable-integer-ID technique replaces pointer-linked nodes so the
// owning arena can reuse slots and so states never need Go-GC-cycle
// bookkeeping. Where nfa.State is a tagged union selecting among several
// instruction shapes, State here is a tagged union over how its outgoing
// transitions are stored (empty / single / dense-256) — the same technique,
// applied to keep the common case (a handful of live transitions per trie
// node) cheap to allocate.
package bytestate

import "github.com/coregx/ruler/internal/conv"

// StateID identifies a State within an arena. InvalidState marks "no
// transition" or "no such state".
type StateID uint32

// InvalidState is the sentinel StateID meaning "absent".
const InvalidState StateID = 0xFFFFFFFF

// MatchID identifies a ByteMatch within a bytemachine's match table.
// bytestate never interprets MatchID values; it just stores and returns
// them, the way nfa.State stores pattern IDs it never interprets either.
type MatchID uint32

// NoMatch is the sentinel MatchID meaning "absent".
const NoMatch MatchID = 0xFFFFFFFF

type transitionShape uint8

const (
	shapeEmpty transitionShape = iota
	shapeSingle
	shapeDense
)

// Shortcut is a compacted linear chain: instead of materializing a run of
// single-child states for a literal suffix with no branching, the final
// branching state stores the residual bytes directly and the match (or
// next StateID) they lead to.
type Shortcut struct {
	Residual []byte
	Match    MatchID
	Next     StateID // InvalidState if the shortcut terminates in a match only
}

// State is one node of the byte-level automaton.
type State struct {
	shape      transitionShape
	singleByte byte
	singleNext StateID
	dense      *[256]StateID

	wildcardNext StateID

	matches []MatchID

	shortcuts map[byte]Shortcut
}

// New returns an empty State with no transitions, no wildcard overlay, and
// no matches.
func New() State {
	return State{shape: shapeEmpty, singleNext: InvalidState, wildcardNext: InvalidState}
}

// GetByte returns the explicit per-byte transition for b, or InvalidState.
func (s *State) GetByte(b byte) StateID {
	switch s.shape {
	case shapeSingle:
		if s.singleByte == b {
			return s.singleNext
		}
	case shapeDense:
		return s.dense[b]
	}
	return InvalidState
}

// SetByte installs an explicit transition on b to next, upgrading the
// internal storage shape if needed.
func (s *State) SetByte(b byte, next StateID) {
	switch s.shape {
	case shapeEmpty:
		s.shape = shapeSingle
		s.singleByte = b
		s.singleNext = next
	case shapeSingle:
		if s.singleByte == b {
			s.singleNext = next
			return
		}
		var dense [256]StateID
		for i := range dense {
			dense[i] = InvalidState
		}
		dense[s.singleByte] = s.singleNext
		dense[b] = next
		s.dense = &dense
		s.shape = shapeDense
	case shapeDense:
		s.dense[b] = next
	}
}

// RemoveByte removes the transition on b iff it currently points at expect.
// Reports whether a transition was removed.
func (s *State) RemoveByte(b byte, expect StateID) bool {
	switch s.shape {
	case shapeSingle:
		if s.singleByte == b && s.singleNext == expect {
			s.shape = shapeEmpty
			s.singleNext = InvalidState
			return true
		}
	case shapeDense:
		if s.dense[b] == expect {
			s.dense[b] = InvalidState
			return true
		}
	}
	return false
}

// HasByteTransitions reports whether any explicit per-byte transition is
// set (ignoring the wildcard overlay).
func (s *State) HasByteTransitions() bool {
	switch s.shape {
	case shapeSingle:
		return true
	case shapeDense:
		for _, v := range s.dense {
			if v != InvalidState {
				return true
			}
		}
	}
	return false
}

// SetWildcard installs the "for all bytes" overlay transition. Callers
// consult it as a fallback: an explicit GetByte(b) transition, if present,
// always takes precedence over the wildcard for that byte.
func (s *State) SetWildcard(next StateID) { s.wildcardNext = next }

// ClearWildcard removes the wildcard overlay transition.
func (s *State) ClearWildcard() { s.wildcardNext = InvalidState }

// WildcardNext returns the wildcard overlay's target, or InvalidState.
func (s *State) WildcardNext() StateID { return s.wildcardNext }

// AddMatch attaches m to this state if not already attached.
func (s *State) AddMatch(m MatchID) {
	for _, x := range s.matches {
		if x == m {
			return
		}
	}
	s.matches = append(s.matches, m)
}

// RemoveMatch detaches m from this state, if attached.
func (s *State) RemoveMatch(m MatchID) {
	for i, x := range s.matches {
		if x == m {
			s.matches = append(s.matches[:i], s.matches[i+1:]...)
			return
		}
	}
}

// Matches returns the matches attached directly at this state.
func (s *State) Matches() []MatchID { return s.matches }

// PutShortcut installs a compacted residual run keyed by its first byte.
func (s *State) PutShortcut(first byte, sc Shortcut) {
	if s.shortcuts == nil {
		s.shortcuts = make(map[byte]Shortcut)
	}
	s.shortcuts[first] = sc
}

// GetShortcut looks up the shortcut keyed by first, if any.
func (s *State) GetShortcut(first byte) (Shortcut, bool) {
	sc, ok := s.shortcuts[first]
	return sc, ok
}

// RemoveShortcut removes the shortcut keyed by first.
func (s *State) RemoveShortcut(first byte) {
	delete(s.shortcuts, first)
}

// HasShortcuts reports whether this state has any compacted residual runs.
func (s *State) HasShortcuts() bool { return len(s.shortcuts) > 0 }

// IsDead reports whether this state carries no information at all: no
// explicit transitions, no wildcard overlay, no matches, no shortcuts. Dead
// states are eligible for reclamation by the owning arena.
func (s *State) IsDead() bool {
	return s.shape == shapeEmpty && s.wildcardNext == InvalidState &&
		len(s.matches) == 0 && len(s.shortcuts) == 0
}

// HasOnlySelfReferentialTransition reports whether this state's only
// outgoing edge is a wildcard overlay back to itself (self is this state's
// own StateID) — the fixed point AnythingBut* encodings land on once the
// input has diverged from every excluded value: from here on, every byte
// loops back to the same state. The state itself carries no match.
func (s *State) HasOnlySelfReferentialTransition(self StateID) bool {
	return s.shape == shapeEmpty && s.wildcardNext == self
}

// Ceilings returns the sorted byte-value boundaries (each in [1,256]) where
// the per-byte transition function changes, the last entry always 256.
// A state whose transitions are uniform across all 256 bytes returns
// []int{256}.
func (s *State) Ceilings() []int {
	if s.shape != shapeDense {
		if s.shape == shapeSingle {
			ceilings := make([]int, 0, 3)
			b := int(s.singleByte)
			if b > 0 {
				ceilings = append(ceilings, b)
			}
			ceilings = append(ceilings, b+1)
			if b+1 < 256 {
				ceilings = append(ceilings, 256)
			}
			return ceilings
		}
		return []int{256}
	}
	ceilings := make([]int, 0, 8)
	cur := s.dense[0]
	for i := 1; i < 256; i++ {
		if s.dense[i] != cur {
			ceilings = append(ceilings, i)
			cur = s.dense[i]
		}
	}
	ceilings = append(ceilings, 256)
	return ceilings
}

// Arena owns a slice of States addressed by StateID, with a free list so
// deleted states' slots are recycled instead of leaking.
type Arena struct {
	states []State
	free   []StateID
}

// NewArena returns an Arena containing a single allocated root state at
// StateID(0).
func NewArena() (*Arena, StateID) {
	a := &Arena{states: []State{New()}}
	return a, StateID(0)
}

// Alloc returns the StateID of a fresh, empty state, reusing a freed slot
// if one is available.
func (a *Arena) Alloc() StateID {
	if n := len(a.free); n > 0 {
		id := a.free[n-1]
		a.free = a.free[:n-1]
		a.states[id] = New()
		return id
	}
	a.states = append(a.states, New())
	return StateID(conv.IntToUint32(len(a.states) - 1))
}

// Free clears id's state and returns its slot to the free list. It does
// not check IsDead(): whatever the state still holds is discarded. The
// caller is responsible for having already disconnected every incoming
// transition before calling Free.
func (a *Arena) Free(id StateID) {
	a.states[id] = State{}
	a.free = append(a.free, id)
}

// Get returns a pointer to the state at id, for in-place mutation.
func (a *Arena) Get(id StateID) *State {
	return &a.states[id]
}

// Len returns the number of allocated slots, including freed ones still
// held in the backing slice.
func (a *Arena) Len() int { return len(a.states) }

// LiveCount returns the number of slots not currently on the free list.
func (a *Arena) LiveCount() int { return len(a.states) - len(a.free) }
