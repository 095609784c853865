package bytemachine

import "errors"

// ErrUnsupportedPattern is returned by AddPattern for pattern kinds the byte
// machine itself never stores (Absent is resolved by the matching driver
// from field presence, not from any byte machine state).
var ErrUnsupportedPattern = errors.New("bytemachine: pattern kind not supported by the byte machine")
