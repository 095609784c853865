// Package ruleparse compiles a rule-definition JSON document (spec.md §6's
// boundary grammar) into the field-path → alternative-patterns map the
// matching driver registers against per-field byte machines.
//
// Mirrors internal/event's fastjson tree-walk style, since it is the same
// boundary's other JSON surface: a rule document mirrors the shape of the
// events it is meant to match, nested objects becoming dotted field paths
// exactly as internal/event flattens them.
package ruleparse

import (
	"errors"
	"fmt"

	"github.com/valyala/fastjson"

	"github.com/coregx/ruler/internal/numkey"
	"github.com/coregx/ruler/internal/pattern"
)

// ErrInvalidRule is returned for malformed or structurally invalid rule
// JSON.
var ErrInvalidRule = errors.New("ruleparse: invalid rule")

// Compiled is one sub-rule: a conjunction of field-path requirements, each
// satisfied by any one of its alternative patterns (the array-of-
// alternatives form at a single field is an OR within that field, not a
// separate sub-rule).
type Compiled struct {
	Fields map[string][]pattern.Pattern
}

// predicateKeys are the recognized leaf-object predicate keys. An object
// is treated as a predicate leaf iff every one of its keys is in this set;
// otherwise it is a nested field subtree.
var predicateKeys = map[string]bool{
	"prefix":              true,
	"suffix":              true,
	"equals-ignore-case":  true,
	"wildcard":            true,
	"numeric":             true,
	"anything-but":        true,
	"exists":              true,
}

// Compile parses ruleJSON and returns its sub-rules. Every test scenario
// in spec.md §8 compiles to exactly one sub-rule; the slice return leaves
// room for a future disjunction combinator without forcing callers to
// special-case today's always-length-1 result.
func Compile(ruleJSON []byte) ([]Compiled, error) {
	var p fastjson.Parser
	v, err := p.ParseBytes(ruleJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if v.Type() != fastjson.TypeObject {
		return nil, fmt.Errorf("%w: rule root must be a JSON object", ErrInvalidRule)
	}
	obj, err := v.Object()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	c := &Compiled{Fields: make(map[string][]pattern.Pattern)}
	var walkErr error
	obj.Visit(func(key []byte, val *fastjson.Value) {
		if walkErr != nil {
			return
		}
		walkErr = walk(string(key), val, c)
	})
	if walkErr != nil {
		return nil, walkErr
	}
	if len(c.Fields) == 0 {
		return nil, fmt.Errorf("%w: rule has no field requirements", ErrInvalidRule)
	}
	return []Compiled{*c}, nil
}

func walk(path string, v *fastjson.Value, c *Compiled) error {
	switch v.Type() {
	case fastjson.TypeObject:
		obj, err := v.Object()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		if isPredicateObject(obj) {
			pats, err := compileLeafObject(obj)
			if err != nil {
				return err
			}
			c.Fields[path] = append(c.Fields[path], pats...)
			return nil
		}
		var err2 error
		obj.Visit(func(key []byte, val *fastjson.Value) {
			if err2 != nil {
				return
			}
			err2 = walk(path+"."+string(key), val, c)
		})
		return err2

	case fastjson.TypeArray:
		arr, err := v.Array()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		for _, item := range arr {
			pats, err := compileArrayElement(item)
			if err != nil {
				return err
			}
			c.Fields[path] = append(c.Fields[path], pats...)
		}
		return nil

	default:
		return fmt.Errorf("%w: field %q: expected an array or a predicate object, got %s", ErrInvalidRule, path, v.Type())
	}
}

func isPredicateObject(obj *fastjson.Object) bool {
	count := 0
	allRecognized := true
	obj.Visit(func(key []byte, _ *fastjson.Value) {
		count++
		if !predicateKeys[string(key)] {
			allRecognized = false
		}
	})
	return count > 0 && allRecognized
}

func compileArrayElement(item *fastjson.Value) ([]pattern.Pattern, error) {
	switch item.Type() {
	case fastjson.TypeObject:
		obj, err := item.Object()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		if !isPredicateObject(obj) {
			return nil, fmt.Errorf("%w: array element object is not a recognized predicate", ErrInvalidRule)
		}
		return compileLeafObject(obj)
	case fastjson.TypeString:
		sb, err := item.StringBytes()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		return []pattern.Pattern{pattern.NewExact(string(sb))}, nil
	case fastjson.TypeNumber:
		n, err := item.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		p, err := pattern.NewNumericEquals(n)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		return []pattern.Pattern{p}, nil
	case fastjson.TypeTrue:
		return []pattern.Pattern{pattern.NewExact("true")}, nil
	case fastjson.TypeFalse:
		return []pattern.Pattern{pattern.NewExact("false")}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported array element type %s", ErrInvalidRule, item.Type())
	}
}

func compileLeafObject(obj *fastjson.Object) ([]pattern.Pattern, error) {
	var out []pattern.Pattern
	var err error
	obj.Visit(func(key []byte, val *fastjson.Value) {
		if err != nil {
			return
		}
		var p []pattern.Pattern
		p, err = compilePredicate(string(key), val)
		out = append(out, p...)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func compilePredicate(key string, v *fastjson.Value) ([]pattern.Pattern, error) {
	switch key {
	case "prefix":
		s, err := stringOperand(v)
		if err != nil {
			return nil, err
		}
		return []pattern.Pattern{pattern.NewPrefix(s)}, nil
	case "suffix":
		s, err := stringOperand(v)
		if err != nil {
			return nil, err
		}
		return []pattern.Pattern{pattern.NewSuffix(s)}, nil
	case "equals-ignore-case":
		s, err := stringOperand(v)
		if err != nil {
			return nil, err
		}
		return []pattern.Pattern{pattern.NewEqualsIgnoreCase(s)}, nil
	case "wildcard":
		s, err := stringOperand(v)
		if err != nil {
			return nil, err
		}
		return []pattern.Pattern{pattern.NewWildcard(s)}, nil
	case "exists":
		if v.Type() != fastjson.TypeTrue && v.Type() != fastjson.TypeFalse {
			return nil, fmt.Errorf("%w: exists requires a boolean", ErrInvalidRule)
		}
		b, err := v.Bool()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		if b {
			return []pattern.Pattern{pattern.NewExists()}, nil
		}
		return []pattern.Pattern{pattern.NewAbsent()}, nil
	case "numeric":
		return compileNumeric(v)
	case "anything-but":
		return compileAnythingBut(v)
	default:
		return nil, fmt.Errorf("%w: unrecognized predicate key %q", ErrInvalidRule, key)
	}
}

func stringOperand(v *fastjson.Value) (string, error) {
	if v.Type() != fastjson.TypeString {
		return "", fmt.Errorf("%w: expected a string operand, got %s", ErrInvalidRule, v.Type())
	}
	sb, err := v.StringBytes()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return string(sb), nil
}

type numericBound struct {
	op string
	x  float64
}

// compileNumeric parses the operator/value pair grammar ["=",x],
// [">",lo,"<=",hi], etc. into NumericEquals or Range.
func compileNumeric(v *fastjson.Value) ([]pattern.Pattern, error) {
	if v.Type() != fastjson.TypeArray {
		return nil, fmt.Errorf("%w: numeric predicate requires an array", ErrInvalidRule)
	}
	arr, err := v.Array()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if len(arr) == 0 || len(arr)%2 != 0 {
		return nil, fmt.Errorf("%w: numeric predicate requires operator/value pairs", ErrInvalidRule)
	}

	var bounds []numericBound
	for i := 0; i < len(arr); i += 2 {
		opVal, numVal := arr[i], arr[i+1]
		if opVal.Type() != fastjson.TypeString {
			return nil, fmt.Errorf("%w: numeric operator must be a string", ErrInvalidRule)
		}
		opBytes, err := opVal.StringBytes()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		if numVal.Type() != fastjson.TypeNumber {
			return nil, fmt.Errorf("%w: numeric operand must be a number", ErrInvalidRule)
		}
		x, err := numVal.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		bounds = append(bounds, numericBound{op: string(opBytes), x: x})
	}

	switch len(bounds) {
	case 1:
		return compileSingleBound(bounds[0])
	case 2:
		return compileBoundPair(bounds[0], bounds[1])
	default:
		return nil, fmt.Errorf("%w: numeric predicate supports 1 or 2 operator/value pairs", ErrInvalidRule)
	}
}

func compileSingleBound(b numericBound) ([]pattern.Pattern, error) {
	switch b.op {
	case "=":
		p, err := pattern.NewNumericEquals(b.x)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		return []pattern.Pattern{p}, nil
	case ">":
		return rangePattern(b.x, numkey.FiveBillion, true, false)
	case ">=":
		return rangePattern(b.x, numkey.FiveBillion, false, false)
	case "<":
		return rangePattern(-numkey.FiveBillion, b.x, false, true)
	case "<=":
		return rangePattern(-numkey.FiveBillion, b.x, false, false)
	default:
		return nil, fmt.Errorf("%w: unsupported numeric operator %q", ErrInvalidRule, b.op)
	}
}

func compileBoundPair(a, b numericBound) ([]pattern.Pattern, error) {
	var lower, upper *numericBound
	for _, bd := range []numericBound{a, b} {
		bd := bd
		switch bd.op {
		case ">", ">=":
			lower = &bd
		case "<", "<=":
			upper = &bd
		default:
			return nil, fmt.Errorf("%w: unsupported numeric operator %q in a range", ErrInvalidRule, bd.op)
		}
	}
	if lower == nil || upper == nil {
		return nil, fmt.Errorf("%w: numeric range requires one lower-bound and one upper-bound operator", ErrInvalidRule)
	}
	return rangePattern(lower.x, upper.x, lower.op == ">", upper.op == "<")
}

func rangePattern(lower, upper float64, openLower, openUpper bool) ([]pattern.Pattern, error) {
	p, err := pattern.NewRange(lower, upper, openLower, openUpper)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return []pattern.Pattern{p}, nil
}

// compileAnythingBut supports a bare string/number (single exclusion), an
// array of all-strings or all-numbers (set exclusion), and
// {"prefix": "..."} (prefix exclusion).
func compileAnythingBut(v *fastjson.Value) ([]pattern.Pattern, error) {
	switch v.Type() {
	case fastjson.TypeObject:
		obj, err := v.Object()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		prefixVal := obj.Get("prefix")
		if prefixVal == nil {
			return nil, fmt.Errorf("%w: anything-but object must have a %q key", ErrInvalidRule, "prefix")
		}
		s, err := stringOperand(prefixVal)
		if err != nil {
			return nil, err
		}
		return []pattern.Pattern{pattern.NewAnythingButPrefix(s)}, nil

	case fastjson.TypeString:
		s, err := stringOperand(v)
		if err != nil {
			return nil, err
		}
		return []pattern.Pattern{pattern.NewAnythingButStrings(s)}, nil

	case fastjson.TypeNumber:
		n, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		p, err := pattern.NewAnythingButNumbers(n)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		return []pattern.Pattern{p}, nil

	case fastjson.TypeArray:
		arr, err := v.Array()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		if len(arr) == 0 {
			return nil, fmt.Errorf("%w: anything-but array must not be empty", ErrInvalidRule)
		}
		switch arr[0].Type() {
		case fastjson.TypeString:
			ss := make([]string, 0, len(arr))
			for _, item := range arr {
				s, err := stringOperand(item)
				if err != nil {
					return nil, err
				}
				ss = append(ss, s)
			}
			return []pattern.Pattern{pattern.NewAnythingButStrings(ss...)}, nil
		case fastjson.TypeNumber:
			xs := make([]float64, 0, len(arr))
			for _, item := range arr {
				if item.Type() != fastjson.TypeNumber {
					return nil, fmt.Errorf("%w: anything-but array must not mix strings and numbers", ErrInvalidRule)
				}
				x, err := item.Float64()
				if err != nil {
					return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
				}
				xs = append(xs, x)
			}
			p, err := pattern.NewAnythingButNumbers(xs...)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
			}
			return []pattern.Pattern{p}, nil
		default:
			return nil, fmt.Errorf("%w: anything-but array must contain only strings or only numbers", ErrInvalidRule)
		}

	default:
		return nil, fmt.Errorf("%w: unsupported anything-but operand type %s", ErrInvalidRule, v.Type())
	}
}
