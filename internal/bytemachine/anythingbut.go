package bytemachine

import "github.com/coregx/ruler/internal/bytestate"

// anythingButPrefixEntry and exclusionEntry are NOT driven through the
// generic walk() in trie.go. walk() collects matches as soon as a state is
// *reached* (REACH semantics), which is correct for predicates that fire
// on "value starts with / equals this" but wrong for a divergence
// predicate: AnythingButPrefix(s) must fire only once the whole value has
// been consumed and found NOT to start with s, not at some intermediate
// node passed through along the way. So each of these gets its own
// privately-allocated chain (never shared across patterns) and its own
// matcher that inspects only the state reached after the value is fully
// consumed.
//
// The divergence itself is realized with bytestate's wildcard-as-fallback
// overlay routed to a self-looping sink state: once input has diverged
// from every excluded value, every subsequent byte loops back to the same
// state, so "did we ever diverge" reduces to comparing the final state
// with the excluded terminal(s) without needing to track history.

// anythingButPrefixEntry evaluates AnythingButPrefix(s): matches iff the
// value does not start with s.
type anythingButPrefixEntry struct {
	root             bytestate.StateID
	excludedTerminal bytestate.StateID
}

// buildAnythingButPrefix allocates a private chain for prefix: one state
// per byte of prefix, a sink reached the instant any byte diverges from
// prefix, and a self-loop at the chain's end so bytes following a full
// prefix match don't escape "excluded" status.
func buildAnythingButPrefix(arena *bytestate.Arena, prefix []byte) (anythingButPrefixEntry, []bytestate.StateID) {
	root := arena.Alloc()
	sink := arena.Alloc()
	arena.Get(sink).SetWildcard(sink)
	allocated := []bytestate.StateID{root, sink}

	cur := root
	for _, b := range prefix {
		arena.Get(cur).SetWildcard(sink)
		next := arena.Alloc()
		arena.Get(cur).SetByte(b, next)
		allocated = append(allocated, next)
		cur = next
	}
	arena.Get(cur).SetWildcard(cur) // fixed point: fully matched prefix stays excluded forever

	return anythingButPrefixEntry{root: root, excludedTerminal: cur}, allocated
}

func (e anythingButPrefixEntry) matches(arena *bytestate.Arena, value []byte) bool {
	return finalState(arena, e.root, value) != e.excludedTerminal
}

// exclusionEntry evaluates AnythingButStrings/AnythingButNumbers: matches
// iff value is not exactly equal to any member of the exclusion set.
type exclusionEntry struct {
	root              bytestate.StateID
	excludedTerminals map[bytestate.StateID]struct{}
}

// buildExclusionTrie allocates a private trie over excluded (which may
// share prefixes with each other; ["ab","abc"] branches naturally). Every
// node defaults to a wildcard fallback into a shared sink, so a value
// diverging from every excluded string at any position lands on the sink
// and stays there.
func buildExclusionTrie(arena *bytestate.Arena, excluded []string) (exclusionEntry, []bytestate.StateID) {
	root := arena.Alloc()
	sink := arena.Alloc()
	arena.Get(sink).SetWildcard(sink)
	arena.Get(root).SetWildcard(sink)
	allocated := []bytestate.StateID{root, sink}

	terminals := make(map[bytestate.StateID]struct{}, len(excluded))
	for _, s := range excluded {
		cur := root
		for i := 0; i < len(s); i++ {
			b := s[i]
			st := arena.Get(cur)
			next := st.GetByte(b)
			if next == bytestate.InvalidState {
				next = arena.Alloc()
				arena.Get(next).SetWildcard(sink)
				arena.Get(cur).SetByte(b, next) // Alloc may have moved st
				allocated = append(allocated, next)
			}
			cur = next
		}
		terminals[cur] = struct{}{}
	}
	return exclusionEntry{root: root, excludedTerminals: terminals}, allocated
}

func (e exclusionEntry) matches(arena *bytestate.Arena, value []byte) bool {
	_, excluded := e.excludedTerminals[finalState(arena, e.root, value)]
	return !excluded
}

// finalState walks value from root, following an explicit byte transition
// when one exists and the wildcard fallback otherwise, and returns the
// state reached after value is fully consumed.
func finalState(arena *bytestate.Arena, root bytestate.StateID, value []byte) bytestate.StateID {
	cur := root
	for _, b := range value {
		st := arena.Get(cur)
		if next := st.GetByte(b); next != bytestate.InvalidState {
			cur = next
			continue
		}
		cur = st.WildcardNext()
	}
	return cur
}
