// Package namestate implements the per-field-name coordinator: it tracks
// which compound sub-rules have reached terminal completion at a given
// point in a field's byte machine, and the SubRuleContext handles those
// sub-rules are identified by.
//
// Grounded on meta.Engine's role as an orchestrator holding several
// strategy-specific sub-objects (here: terminal vs. non-terminal buckets)
// and on dfa/lazy's cache-by-canonical-key technique for state reuse
// (here: additionalNameStateReuse's ReuseCache).
package namestate

import "math"

// SubRuleContext is an opaque handle identifying one sub-rule instance —
// one conjunction of (field, pattern-alternatives) requirements
// contributing to a named rule. IDs are assigned from the smallest
// representable float64 upward via math.Nextafter, so two Generators
// produce identical ID sequences given the same call order.
type SubRuleContext struct {
	RuleName string
	ID       float64

	// TotalFields is the number of distinct field names this sub-rule
	// requires. The matching driver declares the sub-rule satisfied once
	// it has accumulated this many distinct-field hits for this ID.
	TotalFields int
}

// Generator produces monotonically ordered SubRuleContext IDs.
type Generator struct {
	next float64
}

// NewGenerator returns a Generator seeded at the smallest representable
// positive float64.
func NewGenerator() *Generator {
	return &Generator{next: math.SmallestNonzeroFloat64}
}

// Next returns a fresh SubRuleContext for ruleName and advances the
// generator to the next representable float64.
func (g *Generator) Next(ruleName string, totalFields int) SubRuleContext {
	id := g.next
	g.next = math.Nextafter(g.next, math.Inf(1))
	return SubRuleContext{RuleName: ruleName, ID: id, TotalFields: totalFields}
}

// NameState is a node per distinct (field-name, pattern) point reachable in
// a byte machine. It holds the sub-rules whose requirement for that point
// is satisfied by reaching this state, split into terminal (this was the
// last field this sub-rule's sorted field list requires) and non-terminal
// (earlier fields in that list) buckets.
//
// Because a byte machine keeps one NameState per distinct pattern on its
// field (keyed by the pattern's CacheKey, with both buckets in it), the
// buckets need not be re-keyed by Pattern the way spec.md §4.5 describes;
// which Pattern a registration belongs to is implicit in which NameState
// instance holds it.
type NameState struct {
	terminal    map[float64]SubRuleContext
	nonTerminal map[float64]SubRuleContext
}

// New creates an empty NameState.
func New() *NameState {
	return &NameState{
		terminal:    make(map[float64]SubRuleContext),
		nonTerminal: make(map[float64]SubRuleContext),
	}
}

// AddSubRule registers ctx in the terminal or non-terminal bucket.
func (n *NameState) AddSubRule(ctx SubRuleContext, terminal bool) {
	if terminal {
		n.terminal[ctx.ID] = ctx
	} else {
		n.nonTerminal[ctx.ID] = ctx
	}
}

// DeleteSubRule removes ctx from whichever bucket holds it.
// (ruleName, pattern) pairs that are already absent are a no-op by
// construction: deleting an ID not present in either map does nothing.
func (n *NameState) DeleteSubRule(ctx SubRuleContext) {
	delete(n.terminal, ctx.ID)
	delete(n.nonTerminal, ctx.ID)
}

// ContainsRule reports whether any sub-rule context for ruleName is
// registered at this state, in either bucket.
func (n *NameState) ContainsRule(ruleName string) bool {
	for _, c := range n.terminal {
		if c.RuleName == ruleName {
			return true
		}
	}
	for _, c := range n.nonTerminal {
		if c.RuleName == ruleName {
			return true
		}
	}
	return false
}

// IsEmpty reports whether no sub-rule is registered at this state — the
// condition under which the owning byte machine may drop the state
// entirely (spec.md §3's lifecycle invariant).
func (n *NameState) IsEmpty() bool {
	return len(n.terminal) == 0 && len(n.nonTerminal) == 0
}

// Terminal returns the sub-rule contexts registered as terminal here.
func (n *NameState) Terminal() []SubRuleContext { return values(n.terminal) }

// NonTerminal returns the sub-rule contexts registered as non-terminal here.
func (n *NameState) NonTerminal() []SubRuleContext { return values(n.nonTerminal) }

func values(m map[float64]SubRuleContext) []SubRuleContext {
	out := make([]SubRuleContext, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

// ReuseCache backs the additionalNameStateReuse configuration option: it
// hands out one reference-counted NameState per pattern CacheKey, so
// insertions of structurally identical patterns share one NameState
// instance.
type ReuseCache struct {
	states map[string]*NameState
}

// NewReuseCache creates an empty cache.
func NewReuseCache() *ReuseCache {
	return &ReuseCache{states: make(map[string]*NameState)}
}

// GetOrCreate returns the shared NameState for canonicalKey, creating one
// on first use.
func (c *ReuseCache) GetOrCreate(canonicalKey string) *NameState {
	if ns, ok := c.states[canonicalKey]; ok {
		return ns
	}
	ns := New()
	c.states[canonicalKey] = ns
	return ns
}

// Release drops canonicalKey from the cache once its NameState has become
// empty, so a later equivalent insertion allocates fresh state instead of
// resurrecting a vacated entry.
func (c *ReuseCache) Release(canonicalKey string) {
	if ns, ok := c.states[canonicalKey]; ok && ns.IsEmpty() {
		delete(c.states, canonicalKey)
	}
}

// Size reports how many canonical keys are currently cached. Exposed for
// tests and for Machine.Stats().
func (c *ReuseCache) Size() int {
	if c == nil {
		return 0
	}
	return len(c.states)
}
