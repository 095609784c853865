package match

import "errors"

// ErrInvalidRule is returned when a rule's field-pattern map cannot be
// registered: an empty rule body, a field mixing Absent with other
// alternatives, or a pattern the byte machine itself rejects (e.g. an
// ill-formed Wildcard operand).
var ErrInvalidRule = errors.New("match: invalid rule")
