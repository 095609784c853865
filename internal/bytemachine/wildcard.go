package bytemachine

import (
	"bytes"

	"github.com/coregx/ahocorasick"
	"github.com/coregx/ruler/internal/bytestate"
	"github.com/coregx/ruler/internal/segment"
)

// Wildcard matching lives entirely outside the trie: a Wildcard pattern
// needs true multi-segment, order-preserving, arbitrary-gap matching,
// which is what an NFA's frontier is for — and bytestate's State is
// deliberately a single deterministic per-byte function, not a frontier.
// Rather than complicate bytestate with NFA-style fan-out for the one
// predicate that needs it, segments are matched against a value using
// github.com/coregx/ahocorasick (the same bulk-occurrence pre-filter the
// teacher uses ahead of its own regex engine, see
// _examples/coregx-coregex/meta/compile.go and meta/find.go) as a
// multi-pattern occurrence finder, with a small greedy left-to-right
// scan choosing the earliest valid occurrence of each segment in turn.
// Earliest-first is sufficient here (no backtracking is ever needed):
// consuming a segment's earliest available occurrence only ever leaves
// equal-or-more room for every following segment. The one exception is the
// last segment of a pattern without a trailing '*', which is anchored at
// the end of the value instead.

type segOccurrence struct {
	start, end int
}

// rebuildAC rebuilds the shared Aho-Corasick automaton over the union of
// every currently-registered wildcard pattern's literal segments, if the
// set of wildcard patterns has changed since the last rebuild.
func (m *Machine) rebuildAC() {
	if !m.acDirty {
		return
	}
	m.acDirty = false

	seen := make(map[string]struct{})
	builder := ahocorasick.NewBuilder()
	any := false
	for _, seq := range m.wildcards {
		for i := 0; i < seq.Len(); i++ {
			seg := seq.Get(i)
			if len(seg) == 0 {
				continue
			}
			key := string(seg)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			builder.AddPattern(seg)
			any = true
		}
	}
	if !any {
		m.ac = nil
		return
	}
	auto, err := builder.Build()
	if err != nil {
		m.ac = nil
		return
	}
	m.ac = auto
}

// allSegmentOccurrences returns every (possibly overlapping) occurrence in
// value of any registered wildcard segment, scanning forward with the
// shared automaton.
func (m *Machine) allSegmentOccurrences(value []byte) []segOccurrence {
	if m.ac == nil {
		return nil
	}
	var out []segOccurrence
	pos := 0
	for pos <= len(value) {
		found := m.ac.Find(value, pos)
		if found == nil {
			break
		}
		out = append(out, segOccurrence{start: found.Start, end: found.End})
		if found.End > found.Start {
			pos = found.Start + 1 // allow overlapping segment occurrences
		} else {
			pos = found.End + 1
		}
	}
	return out
}

func (m *Machine) matchWildcards(value []byte) []bytestate.MatchID {
	if len(m.wildcards) == 0 {
		return nil
	}
	occ := m.allSegmentOccurrences(value)
	var out []bytestate.MatchID
	for id, seq := range m.wildcards {
		if matchesWildcardSeq(seq, value, occ) {
			out = append(out, id)
		}
	}
	return out
}

func matchesWildcardSeq(seq *segment.Seq, value []byte, occ []segOccurrence) bool {
	if seq.IsEmpty() {
		if seq.HasLeadingStar() || seq.HasTrailingStar() {
			return true // bare "*": matches any value
		}
		return len(value) == 0 // bare "": matches only the empty value
	}

	pos := 0
	for i := 0; i < seq.Len(); i++ {
		seg := seq.Get(i)
		if len(seg) == 0 {
			continue
		}

		if i == 0 && !seq.HasLeadingStar() {
			if !hasPrefixAt(value, seg, 0) {
				return false
			}
			pos = len(seg)
			continue
		}

		// The final segment of a non-trailing-star pattern must reach
		// exactly the end of value, not merely some occurrence at-or-after
		// pos: earliest-first is only safe when a later segment still has
		// room to match after it (see the design note above), which does
		// not hold for the last segment. Anchor it directly instead.
		if i == seq.Len()-1 && !seq.HasTrailingStar() {
			start := len(value) - len(seg)
			if start < pos || !hasPrefixAt(value, seg, start) {
				return false
			}
			pos = len(value)
			continue
		}

		end, ok := earliestOccurrence(occ, value, seg, pos)
		if !ok {
			return false
		}
		pos = end
	}

	if !seq.HasTrailingStar() && pos != len(value) {
		return false
	}
	return true
}

func hasPrefixAt(value, seg []byte, at int) bool {
	if at+len(seg) > len(value) {
		return false
	}
	return bytes.Equal(value[at:at+len(seg)], seg)
}

// earliestOccurrence returns the end offset of the earliest recorded
// occurrence of seg starting at or after minStart, if any.
func earliestOccurrence(occ []segOccurrence, value, seg []byte, minStart int) (end int, ok bool) {
	best := -1
	for _, o := range occ {
		if o.start < minStart {
			continue
		}
		if o.end-o.start != len(seg) {
			continue
		}
		if !bytes.Equal(value[o.start:o.end], seg) {
			continue
		}
		if best == -1 || o.start < best {
			best = o.start
			end = o.end
		}
	}
	return end, best != -1
}
