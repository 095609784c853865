// Package event flattens a JSON event tree into the ordered, dotted-name
// field list the matching driver walks field-by-field.
//
// No teacher equivalent exists (the teacher has no JSON boundary at all);
// github.com/valyala/fastjson is adopted because it appears across the
// retrieval pack's dependency surface and its zero-allocation tree-walking
// style (Object()/Array()/Visit) is the natural fit for "flatten an
// already-parsed tree", as opposed to a streaming token decoder.
package event

import (
	"errors"
	"fmt"
	"sort"

	"github.com/valyala/fastjson"
)

// ErrInvalidEvent is returned for malformed JSON, a non-object root, or a
// null root value.
var ErrInvalidEvent = errors.New("event: invalid event")

// Kind identifies the JSON type of a flattened field's value.
type Kind uint8

const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindNull
)

// Field is one leaf value of the flattened event tree.
type Field struct {
	Name string
	Kind Kind

	Str  string
	Num  float64
	Bool bool

	// ArrayMembership maps every enclosing array's id to the index this
	// field's value occupies within that array. Fields not inside any
	// array have an empty map.
	ArrayMembership map[int]int
}

// Flatten parses data as a JSON event and returns its fields in stable,
// lexicographic order by name.
func Flatten(data []byte) ([]Field, error) {
	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if v.Type() != fastjson.TypeObject {
		return nil, fmt.Errorf("%w: root must be a JSON object", ErrInvalidEvent)
	}
	obj, err := v.Object()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	fl := &flattener{}
	var walkErr error
	obj.Visit(func(key []byte, val *fastjson.Value) {
		if walkErr != nil {
			return
		}
		walkErr = fl.walk(string(key), val, map[int]int{})
	})
	if walkErr != nil {
		return nil, walkErr
	}

	sort.SliceStable(fl.fields, func(i, j int) bool { return fl.fields[i].Name < fl.fields[j].Name })
	return fl.fields, nil
}

type flattener struct {
	nextArrayID int
	fields      []Field
}

func (fl *flattener) walk(name string, v *fastjson.Value, membership map[int]int) error {
	switch v.Type() {
	case fastjson.TypeObject:
		obj, err := v.Object()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
		var err2 error
		obj.Visit(func(key []byte, val *fastjson.Value) {
			if err2 != nil {
				return
			}
			err2 = fl.walk(name+"."+string(key), val, membership)
		})
		return err2

	case fastjson.TypeArray:
		arr, err := v.Array()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
		arrayID := fl.nextArrayID
		fl.nextArrayID++
		for idx, elem := range arr {
			child := cloneMembership(membership)
			child[arrayID] = idx
			if err := fl.walk(name, elem, child); err != nil {
				return err
			}
		}
		return nil

	case fastjson.TypeString:
		sb, err := v.StringBytes()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
		fl.fields = append(fl.fields, Field{Name: name, Kind: KindString, Str: string(sb), ArrayMembership: membership})
		return nil

	case fastjson.TypeNumber:
		n, err := v.Float64()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
		fl.fields = append(fl.fields, Field{Name: name, Kind: KindNumber, Num: n, ArrayMembership: membership})
		return nil

	case fastjson.TypeTrue, fastjson.TypeFalse:
		b, err := v.Bool()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
		fl.fields = append(fl.fields, Field{Name: name, Kind: KindBool, Bool: b, ArrayMembership: membership})
		return nil

	case fastjson.TypeNull:
		fl.fields = append(fl.fields, Field{Name: name, Kind: KindNull, ArrayMembership: membership})
		return nil

	default:
		return fmt.Errorf("%w: unsupported JSON value type at %q", ErrInvalidEvent, name)
	}
}

func cloneMembership(m map[int]int) map[int]int {
	out := make(map[int]int, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
