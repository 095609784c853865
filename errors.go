package ruler

import "errors"

// ErrInvalidRule is returned when a rule's JSON body cannot be compiled:
// malformed JSON, a non-object root, an unrecognized predicate key, a field
// mixing Absent with other alternatives, or a predicate operand the
// underlying pattern engine rejects.
var ErrInvalidRule = errors.New("ruler: invalid rule")

// ErrInvalidEvent is returned when an event's JSON body cannot be
// flattened: malformed JSON, a non-object root, or an unsupported JSON
// value type.
var ErrInvalidEvent = errors.New("ruler: invalid event")

// ErrInvalidNumber names the failure of a numeric operand outside the
// admissible range the canonicalizer can represent (spec.md §4.1/§7). No
// Machine method returns it: such an operand in a rule's numeric/range
// predicate is reported as ErrInvalidRule, and errors.Is(err,
// ErrInvalidNumber) is false for that error.
var ErrInvalidNumber = errors.New("ruler: invalid number")

// ErrInvalidPattern names the failure of a predicate operand that is
// structurally invalid for its kind (two adjacent '*' in a Wildcard, a
// Range with lower > upper). No Machine method returns it: such an operand
// is reported as ErrInvalidRule, and errors.Is(err, ErrInvalidPattern) is
// false for that error.
var ErrInvalidPattern = errors.New("ruler: invalid pattern")

// ErrInternalInvariant is returned if the Machine's own bookkeeping is
// found inconsistent (an orphaned sub-rule reference, a NameState with no
// owning byte machine). Reserved for defensive checks; well-formed use of
// the public API never triggers it.
var ErrInternalInvariant = errors.New("ruler: internal invariant violated")

// ConfigError reports an out-of-range Config field.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "ruler: invalid config: " + e.Field + ": " + e.Message
}
