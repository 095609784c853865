package bytemachine

import (
	"bytes"

	"github.com/coregx/ruler/internal/bytestate"
)

// insertChain inserts data into the trie rooted at start, attaching matchID
// at the terminal state. It uses shortcuts to avoid materializing a full
// run of single-child states for literal tails that don't (yet) branch;
// a later insertion sharing a prefix with an existing shortcut forces that
// shortcut to materialize into real states first.
func insertChain(arena *bytestate.Arena, start bytestate.StateID, data []byte, matchID bytestate.MatchID) bytestate.StateID {
	cur := start
	i := 0
	for i < len(data) {
		b := data[i]
		st := arena.Get(cur)

		if next := st.GetByte(b); next != bytestate.InvalidState {
			cur = next
			i++
			continue
		}

		if _, ok := st.GetShortcut(b); ok {
			materializeShortcut(arena, cur, b)
			continue // retry the same byte now that it's real states
		}

		remaining := data[i+1:]
		if len(remaining) == 0 {
			next := arena.Alloc()
			arena.Get(cur).SetByte(b, next) // Alloc may have moved st
			arena.Get(next).AddMatch(matchID)
			return next
		}

		tail := arena.Alloc()
		arena.Get(tail).AddMatch(matchID)
		arena.Get(cur).PutShortcut(b, bytestate.Shortcut{
			Residual: append([]byte(nil), remaining...),
			Match:    matchID,
			Next:     tail,
		})
		return tail
	}
	arena.Get(cur).AddMatch(matchID)
	return cur
}

// materializeShortcut expands the shortcut keyed by first at state into a
// real chain of single-child states, so a diverging insertion can branch
// partway through it.
func materializeShortcut(arena *bytestate.Arena, state bytestate.StateID, first byte) {
	st := arena.Get(state)
	sc, ok := st.GetShortcut(first)
	if !ok {
		return
	}
	st.RemoveShortcut(first)

	seq := append([]byte{first}, sc.Residual...)
	cur := state
	for i, b := range seq {
		if i == len(seq)-1 {
			arena.Get(cur).SetByte(b, sc.Next)
			return
		}
		next := arena.Alloc()
		arena.Get(cur).SetByte(b, next)
		cur = next
	}
}

// walk traverses the trie rooted at root against value, collecting every
// match attached to a state actually reached along the way (REACH
// semantics: a match fires as soon as its state is visited, whether or not
// traversal continues past it). That is the complete test for Prefix/
// Suffix/NumericEquals/Range; Exact and EqualsIgnoreCase hits are further
// required by MatchString to have consumed the whole value.
func walk(arena *bytestate.Arena, root bytestate.StateID, value []byte) []bytestate.MatchID {
	var matches []bytestate.MatchID
	cur := root
	i := 0
	for {
		st := arena.Get(cur)
		matches = append(matches, st.Matches()...)
		if i >= len(value) {
			return matches
		}
		b := value[i]
		if next := st.GetByte(b); next != bytestate.InvalidState {
			cur = next
			i++
			continue
		}
		if sc, ok := st.GetShortcut(b); ok {
			span := len(sc.Residual)
			if i+1+span <= len(value) && bytes.Equal(value[i+1:i+1+span], sc.Residual) {
				cur = sc.Next
				i += 1 + span
				continue
			}
		}
		return matches
	}
}

// insertCaseExpandedChain inserts s into the trie rooted at start,
// branching both the upper- and lower-case byte at every ASCII letter
// position so a single chain matches every case variant of s.
func insertCaseExpandedChain(arena *bytestate.Arena, start bytestate.StateID, s []byte, matchID bytestate.MatchID) bytestate.StateID {
	cur := start
	for _, b := range s {
		variants := caseVariants(b)
		for _, v := range variants {
			materializeShortcut(arena, cur, v) // no-op when no shortcut is keyed by v
		}
		st := arena.Get(cur)

		next := bytestate.InvalidState
		for _, v := range variants {
			if n := st.GetByte(v); n != bytestate.InvalidState {
				next = n
				break
			}
		}
		if next == bytestate.InvalidState {
			next = arena.Alloc()
			st = arena.Get(cur) // Alloc may have moved st
		}
		for _, v := range variants {
			st.SetByte(v, next)
		}
		cur = next
	}
	arena.Get(cur).AddMatch(matchID)
	return cur
}

func caseVariants(b byte) []byte {
	switch {
	case b >= 'a' && b <= 'z':
		return []byte{b, b - ('a' - 'A')}
	case b >= 'A' && b <= 'Z':
		return []byte{b, b + ('a' - 'A')}
	default:
		return []byte{b}
	}
}
