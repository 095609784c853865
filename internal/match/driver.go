// Package match is the matching driver: it owns one bytemachine.Machine
// per field name, threads SubRuleContext bookkeeping through namestate, and
// evaluates events along the two paths spec.md §4.8 describes — the
// array-consistency-aware JSON-event path and the plain map-based
// compatibility path.
//
// Grounded on meta.Engine (_examples/coregx-coregex/meta/engine.go) for the
// "one coordinator holding several per-concern sub-structures behind a
// narrow public surface" shape, generalized here from "one engine over one
// pattern set" to "one driver over one field name's worth of pattern sets,
// replicated per field".
package match

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/coregx/ruler/internal/bytemachine"
	"github.com/coregx/ruler/internal/event"
	"github.com/coregx/ruler/internal/intmap"
	"github.com/coregx/ruler/internal/namestate"
	"github.com/coregx/ruler/internal/pattern"
)

// fieldSpec is one field's requirement within a registered sub-rule.
type fieldSpec struct {
	name   string
	absent bool // true iff this field's sole predicate is Absent

	// patterns/nameStates are parallel and empty when absent is true:
	// Absent carries no byte-level state (spec.md §4.4).
	patterns   []pattern.Pattern
	nameStates []*namestate.NameState
}

// subRuleEntry is one conjunction of field requirements contributing to a
// named rule.
type subRuleEntry struct {
	ctx    namestate.SubRuleContext
	fields []fieldSpec // sorted by field name
}

// Driver evaluates events against a registered set of rules.
//
// Deliberate deviation from spec.md §4.5's literal "NameStates threaded as
// nextNameState chain links" phrasing: each SubRuleContext instead carries
// a TotalFields count, and evaluation accumulates a running count of
// distinct satisfied field requirements per sub-rule (see rulesForFields).
// The terminal/non-terminal split namestate.NameState still exposes is
// honored at registration time (the lexicographically last required field
// is terminal, the rest non-terminal) but evaluation does not depend on
// which bucket a hit landed in — both are scanned uniformly. This is
// behaviorally equivalent for AND-conjunction satisfaction and avoids
// needing back-pointers from NameState to its owning field's successor.
type Driver struct {
	enableReuse bool
	machines    map[string]*bytemachine.Machine

	gen      *namestate.Generator
	subRules map[float64]*subRuleEntry

	byRule   map[string]map[float64]struct{}
	ruleBody map[string]map[string]float64 // ruleName -> bodyKey -> ctx.ID

	// ctxIndex assigns each SubRuleContext.ID a dense, small non-negative
	// int so the per-occurrence seenSteps pass (spec.md §4.8's "prunes
	// already-explored (state, field-index) pairs") can use internal/intmap
	// instead of a map[float64]bool.
	ctxIndex map[float64]int
	nextIdx  int
}

// NewDriver creates an empty Driver. enableReuse backs the
// additionalNameStateReuse configuration option (spec.md §6): when true,
// each field's byte machine gets its own namestate.ReuseCache. Equal
// patterns on the same field share one reference-counted NameState whether
// or not enableReuse is set, so the option does not change which
// NameStates rules are registered in.
func NewDriver(enableReuse bool) *Driver {
	return &Driver{
		enableReuse: enableReuse,
		machines:    make(map[string]*bytemachine.Machine),
		gen:         namestate.NewGenerator(),
		subRules:    make(map[float64]*subRuleEntry),
		byRule:      make(map[string]map[float64]struct{}),
		ruleBody:    make(map[string]map[string]float64),
		ctxIndex:    make(map[float64]int),
	}
}

// AddRule registers one sub-rule: a conjunction of field-path requirements,
// each satisfied by any one of its alternative patterns. Insertion is
// transactional at the rule granularity (spec.md §7): a failure partway
// through rolls back every pattern already inserted for this call.
func (d *Driver) AddRule(ruleName string, fields map[string][]pattern.Pattern) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: rule has no field requirements", ErrInvalidRule)
	}

	names := make([]string, 0, len(fields))
	for n := range fields {
		names = append(names, n)
	}
	sort.Strings(names)

	specs := make([]fieldSpec, len(names))
	for i, n := range names {
		ps := fields[n]
		absent := false
		for _, p := range ps {
			if p.Kind() == pattern.KindAbsent {
				absent = true
				break
			}
		}
		if absent && len(ps) > 1 {
			return fmt.Errorf("%w: field %q mixes an absent requirement with other predicates", ErrInvalidRule, n)
		}
		specs[i] = fieldSpec{name: n, absent: absent, patterns: ps}
	}

	ctx := d.gen.Next(ruleName, len(specs))
	d.indexFor(ctx.ID) // assigned here so evaluation only reads ctxIndex
	lastName := specs[len(specs)-1].name

	type undo struct {
		name string
		p    pattern.Pattern
		ns   *namestate.NameState
	}
	var done []undo
	rollback := func() {
		for _, u := range done {
			u.ns.DeleteSubRule(ctx)
			d.machines[u.name].DeletePattern(u.p)
		}
	}

	for i := range specs {
		fs := &specs[i]
		if fs.absent {
			continue
		}
		mach, ok := d.machines[fs.name]
		if !ok {
			var reuse *namestate.ReuseCache
			if d.enableReuse {
				reuse = namestate.NewReuseCache()
			}
			mach = bytemachine.New(reuse)
			d.machines[fs.name] = mach
		}
		terminal := fs.name == lastName
		fs.nameStates = make([]*namestate.NameState, len(fs.patterns))
		for j, p := range fs.patterns {
			ns, err := mach.AddPattern(p)
			if err != nil {
				rollback()
				return fmt.Errorf("%w: %v", ErrInvalidRule, err)
			}
			ns.AddSubRule(ctx, terminal)
			fs.nameStates[j] = ns
			done = append(done, undo{name: fs.name, p: p, ns: ns})
		}
	}

	d.subRules[ctx.ID] = &subRuleEntry{ctx: ctx, fields: specs}
	if d.byRule[ruleName] == nil {
		d.byRule[ruleName] = make(map[float64]struct{})
	}
	d.byRule[ruleName][ctx.ID] = struct{}{}
	if d.ruleBody[ruleName] == nil {
		d.ruleBody[ruleName] = make(map[string]float64)
	}
	d.ruleBody[ruleName][bodyKey(fields)] = ctx.ID
	return nil
}

// DeleteRule is the exact inverse of the AddRule call that registered
// fields under ruleName. A ruleName/fields pair with no matching
// registration is a no-op (spec.md §6).
func (d *Driver) DeleteRule(ruleName string, fields map[string][]pattern.Pattern) {
	key := bodyKey(fields)
	id, ok := d.ruleBody[ruleName][key]
	if !ok {
		return
	}
	entry := d.subRules[id]
	if entry != nil {
		for _, fs := range entry.fields {
			if fs.absent {
				continue
			}
			mach := d.machines[fs.name]
			for i, p := range fs.patterns {
				fs.nameStates[i].DeleteSubRule(entry.ctx)
				mach.DeletePattern(p)
			}
		}
	}
	delete(d.subRules, id)
	if d.byRule[ruleName] != nil {
		delete(d.byRule[ruleName], id)
		if len(d.byRule[ruleName]) == 0 {
			delete(d.byRule, ruleName)
		}
	}
	delete(d.ruleBody[ruleName], key)
	if len(d.ruleBody[ruleName]) == 0 {
		delete(d.ruleBody, ruleName)
	}
}

// indexFor returns id's dense index, assigning the next free one on first
// use.
func (d *Driver) indexFor(id float64) int {
	if idx, ok := d.ctxIndex[id]; ok {
		return idx
	}
	idx := d.nextIdx
	d.nextIdx++
	d.ctxIndex[id] = idx
	return idx
}

// IsEmpty reports whether every registered rule has been removed.
func (d *Driver) IsEmpty() bool { return len(d.subRules) == 0 }

// RuleNames returns the distinct registered rule names, sorted.
func (d *Driver) RuleNames() []string {
	names := make([]string, 0, len(d.byRule))
	for n := range d.byRule {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Stats is a point-in-time introspection snapshot across every field's
// byte machine and the sub-rule bookkeeping table.
type Stats struct {
	FieldCount    int
	ByteStateSum  int
	PatternSum    int
	SubRuleCount  int
}

// Stats reports current driver size.
func (d *Driver) Stats() Stats {
	s := Stats{FieldCount: len(d.machines), SubRuleCount: len(d.subRules)}
	for _, m := range d.machines {
		ms := m.Stats()
		s.ByteStateSum += ms.ArenaLive
		s.PatternSum += ms.Patterns
	}
	return s
}

func bodyKey(fields map[string][]pattern.Pattern) string {
	names := make([]string, 0, len(fields))
	for n := range fields {
		names = append(names, n)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, n := range names {
		b.WriteString(n)
		b.WriteByte(0)
		keys := make([]string, 0, len(fields[n]))
		for _, p := range fields[n] {
			keys = append(keys, p.CacheKey())
		}
		sort.Strings(keys)
		b.WriteString(strings.Join(keys, "\x01"))
		b.WriteByte(2)
	}
	return b.String()
}

// RulesForJSONEvent is the fast path (spec.md §4.8.1): it flattens data via
// internal/event and applies the array-consistency filter across a rule's
// contributing fields.
func (d *Driver) RulesForJSONEvent(data []byte) ([]string, error) {
	fields, err := event.Flatten(data)
	if err != nil {
		return nil, err
	}
	return d.rulesForFields(fields), nil
}

// candidate is one consistent partial assignment of occurrences to a
// sub-rule's field requirements: the union of their arrayMembership maps
// (pairwise agreeing on every shared arrayId) plus which field names have
// already contributed.
type candidate struct {
	membership map[int]int
	names      map[string]bool
	count      int
}

func (d *Driver) rulesForFields(fields []event.Field) []string {
	present := make(map[string]bool)
	byName := make(map[string][]event.Field)
	for _, f := range fields {
		present[f.Name] = true
		byName[f.Name] = append(byName[f.Name], f)
	}

	candidates := make(map[float64][]candidate)
	dead := make(map[float64]bool)

	for id, sr := range d.subRules {
		seed := candidate{membership: map[int]int{}, names: map[string]bool{}}
		ok := true
		for _, fs := range sr.fields {
			if !fs.absent {
				continue
			}
			if present[fs.name] {
				ok = false
				break
			}
			seed.count++
			seed.names[fs.name] = true
		}
		if !ok {
			dead[id] = true
			continue
		}
		candidates[id] = []candidate{seed}
	}

	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, name := range names {
		mach, ok := d.machines[name]
		if !ok {
			continue
		}
		for _, f := range byName[name] {
			// A single occurrence's value can land in several distinct
			// NameStates when a field has more than one alternative
			// pattern (e.g. both Exact("x") and Prefix("x") match "x").
			// seenSteps prunes the resulting duplicate (ctx, occurrence)
			// pairs so advance() runs at most once per occurrence per
			// sub-rule, mirroring spec.md §4.8's seenSteps memoization.
			seenSteps := intmap.New(4)
			for _, ns := range matchField(mach, f) {
				for _, ctx := range allSubRules(ns) {
					if dead[ctx.ID] {
						continue
					}
					idx := d.ctxIndex[ctx.ID]
					if seenSteps.Contains(idx) {
						continue
					}
					seenSteps.Put(idx, 1)
					d.advance(candidates, ctx, name, f.ArrayMembership)
				}
			}
		}
	}

	seenRule := make(map[string]bool)
	var out []string
	for id, cs := range candidates {
		if dead[id] {
			continue
		}
		sr := d.subRules[id]
		for _, c := range cs {
			if c.count == sr.ctx.TotalFields {
				if !seenRule[sr.ctx.RuleName] {
					seenRule[sr.ctx.RuleName] = true
					out = append(out, sr.ctx.RuleName)
				}
				break
			}
		}
	}
	return out
}

func (d *Driver) advance(candidates map[float64][]candidate, ctx namestate.SubRuleContext, name string, membership map[int]int) {
	existing := candidates[ctx.ID]
	if len(existing) == 0 {
		existing = []candidate{{membership: map[int]int{}, names: map[string]bool{}}}
	}
	var added []candidate
	for _, c := range existing {
		if c.names[name] {
			continue
		}
		if !compatibleMembership(c.membership, membership) {
			continue
		}
		nc := candidate{
			membership: mergeMembership(c.membership, membership),
			names:      cloneNames(c.names),
			count:      c.count + 1,
		}
		nc.names[name] = true
		added = append(added, nc)
	}
	candidates[ctx.ID] = append(existing, added...)
}

func compatibleMembership(a, b map[int]int) bool {
	for k, v := range a {
		if v2, ok := b[k]; ok && v2 != v {
			return false
		}
	}
	return true
}

func mergeMembership(a, b map[int]int) map[int]int {
	out := make(map[int]int, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func cloneNames(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func allSubRules(ns *namestate.NameState) []namestate.SubRuleContext {
	return append(ns.Terminal(), ns.NonTerminal()...)
}

func matchField(mach *bytemachine.Machine, f event.Field) []*namestate.NameState {
	switch f.Kind {
	case event.KindString:
		return mach.MatchString([]byte(f.Str))
	case event.KindNumber:
		return mach.MatchNumber(f.Num)
	case event.KindBool:
		return mach.MatchString([]byte(strconv.FormatBool(f.Bool)))
	case event.KindNull:
		return mach.MatchString(nil)
	default:
		return nil
	}
}

// RulesForEvent is the compatibility path (spec.md §4.8.2): it operates on
// an already-flattened name-to-values map with no array-consistency
// enforcement, and correspondingly broader matches than RulesForJSONEvent.
func (d *Driver) RulesForEvent(fields map[string][]event.Field) []string {
	present := make(map[string]bool)
	for name, vs := range fields {
		if len(vs) > 0 {
			present[name] = true
		}
	}

	dead := make(map[float64]bool)
	for id, sr := range d.subRules {
		for _, fs := range sr.fields {
			if fs.absent && present[fs.name] {
				dead[id] = true
				break
			}
		}
	}

	satisfied := make(map[float64]map[string]bool)
	for name, vs := range fields {
		mach, ok := d.machines[name]
		if !ok {
			continue
		}
		for _, f := range vs {
			for _, ns := range matchField(mach, f) {
				for _, ctx := range allSubRules(ns) {
					if dead[ctx.ID] {
						continue
					}
					m := satisfied[ctx.ID]
					if m == nil {
						m = make(map[string]bool)
						satisfied[ctx.ID] = m
					}
					m[name] = true
				}
			}
		}
	}

	seenRule := make(map[string]bool)
	var out []string
	for id, sr := range d.subRules {
		if dead[id] {
			continue
		}
		have := len(satisfied[id])
		for _, fs := range sr.fields {
			if fs.absent && !present[fs.name] {
				have++
			}
		}
		if have == sr.ctx.TotalFields && !seenRule[sr.ctx.RuleName] {
			seenRule[sr.ctx.RuleName] = true
			out = append(out, sr.ctx.RuleName)
		}
	}
	return out
}
