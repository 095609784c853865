package ruler

import (
	"fmt"

	"github.com/coregx/ruler/internal/event"
	"github.com/coregx/ruler/internal/match"
	"github.com/coregx/ruler/internal/pattern"
	"github.com/coregx/ruler/internal/ruleparse"
)

// Machine evaluates JSON events against a registered set of rules.
//
// A Machine is safe to use concurrently from multiple goroutines, except
// for AddRule and DeleteRule, which mutate internal state.
type Machine struct {
	driver *match.Driver
}

// New creates a Machine with the default configuration.
//
// Example:
//
//	m := ruler.New()
//	_ = m.AddRule("r1", []byte(`{"a":["x"]}`))
func New() *Machine {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a Machine using config.
//
// Example:
//
//	config := ruler.DefaultConfig()
//	config.AdditionalNameStateReuse = true
//	m := ruler.NewWithConfig(config)
func NewWithConfig(config Config) *Machine {
	return &Machine{
		driver: match.NewDriver(config.AdditionalNameStateReuse),
	}
}

// AddRule compiles ruleJSON and registers it under ruleName.
//
// ruleJSON mirrors the shape of the events it is meant to match: a leaf is
// either an array of exact alternatives or a predicate object (prefix,
// suffix, equals-ignore-case, wildcard, numeric, anything-but, exists).
// Insertion is transactional: a failure partway through compiling or
// registering the rule leaves no part of the rule registered, so events
// match exactly as they did before the call (spec.md §7). Byte machines and
// states allocated during the attempt are kept, so Stats may differ.
//
// Example:
//
//	err := m.AddRule("prod-only", []byte(`{"env":["prod"]}`))
func (m *Machine) AddRule(ruleName string, ruleJSON []byte) error {
	compiled, err := ruleparse.Compile(ruleJSON)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	// Only a single sub-rule is produced today (see ruleparse.Compile's
	// doc comment); registered and rolled back one at a time so a partial
	// multi-sub-rule compile can never leave the Machine half-registered.
	var done []map[string][]pattern.Pattern
	for _, c := range compiled {
		if err := m.driver.AddRule(ruleName, c.Fields); err != nil {
			for _, body := range done {
				m.driver.DeleteRule(ruleName, body)
			}
			return fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		done = append(done, c.Fields)
	}
	return nil
}

// DeleteRule removes the rule previously registered under ruleName with
// this exact ruleJSON body. A ruleName/ruleJSON pair with no matching
// registration is a no-op (spec.md §6).
//
// Example:
//
//	m.DeleteRule("prod-only", []byte(`{"env":["prod"]}`))
func (m *Machine) DeleteRule(ruleName string, ruleJSON []byte) error {
	compiled, err := ruleparse.Compile(ruleJSON)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	for _, c := range compiled {
		m.driver.DeleteRule(ruleName, c.Fields)
	}
	return nil
}

// RulesForJSONEvent flattens eventJSON and returns the names of every
// registered rule it satisfies, honoring array-consistency across a rule's
// contributing fields (spec.md §4.7/§4.8.1).
//
// Example:
//
//	names, err := m.RulesForJSONEvent([]byte(`{"env":"prod","host":"a1"}`))
func (m *Machine) RulesForJSONEvent(eventJSON []byte) ([]string, error) {
	names, err := m.driver.RulesForJSONEvent(eventJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return names, nil
}

// Kind identifies the JSON type of a flattened field value passed to
// RulesForEvent.
type Kind = event.Kind

// Kind values for FieldValue.Kind.
const (
	KindString = event.KindString
	KindNumber = event.KindNumber
	KindBool   = event.KindBool
	KindNull   = event.KindNull
)

// FieldValue is one already-flattened occurrence of a field, for callers
// that maintain their own event representation instead of JSON (spec.md
// §4.8.2's generic compatibility path).
type FieldValue struct {
	Kind Kind
	Str  string
	Num  float64
	Bool bool
}

// RulesForEvent is the compatibility path (spec.md §4.8.2): it evaluates
// an already-flattened name-to-values map with no array-consistency
// enforcement, and so can report matches RulesForJSONEvent would not for
// events containing arrays.
//
// Example:
//
//	fields := map[string][]ruler.FieldValue{
//	    "env": {{Kind: ruler.KindString, Str: "prod"}},
//	}
//	names := m.RulesForEvent(fields)
func (m *Machine) RulesForEvent(fields map[string][]FieldValue) []string {
	converted := make(map[string][]event.Field, len(fields))
	for name, vs := range fields {
		fs := make([]event.Field, len(vs))
		for i, v := range vs {
			fs[i] = event.Field{Name: name, Kind: v.Kind, Str: v.Str, Num: v.Num, Bool: v.Bool}
		}
		converted[name] = fs
	}
	return m.driver.RulesForEvent(converted)
}

// IsEmpty reports whether every registered rule has been removed.
func (m *Machine) IsEmpty() bool { return m.driver.IsEmpty() }

// ListRuleNames returns the distinct registered rule names, sorted.
//
// Example:
//
//	for _, name := range m.ListRuleNames() {
//	    fmt.Println(name)
//	}
func (m *Machine) ListRuleNames() []string { return m.driver.RuleNames() }

// MachineStats is a point-in-time introspection snapshot.
type MachineStats struct {
	// FieldCount is the number of fields that have a byte machine: one is
	// created for each field a rule tests with a non-Absent predicate, and
	// it is kept after the rules using it are deleted.
	FieldCount int
	// ByteStateCount is the sum of live byte-automaton states across all
	// fields' byte machines.
	ByteStateCount int
	// PatternCount is the sum of registered pattern alternatives across
	// all fields' byte machines.
	PatternCount int
	// SubRuleCount is the number of registered sub-rules (one per AddRule
	// call that succeeded).
	SubRuleCount int
}

// Stats reports current Machine size.
//
// Example:
//
//	stats := m.Stats()
//	fmt.Println(stats.SubRuleCount)
func (m *Machine) Stats() MachineStats {
	s := m.driver.Stats()
	return MachineStats{
		FieldCount:     s.FieldCount,
		ByteStateCount: s.ByteStateSum,
		PatternCount:   s.PatternSum,
		SubRuleCount:   s.SubRuleCount,
	}
}
