// Package ruler evaluates JSON events against a set of declarative,
// field-matching rules and reports which rules fire.
//
// Rules are themselves JSON documents shaped like the events they are meant
// to match: a leaf is either an array of exact alternatives or a predicate
// object (prefix, suffix, equals-ignore-case, wildcard, numeric, anything-
// but, exists). A Machine compiles rules into a byte-level automaton per
// field and evaluates an event by walking each field value through that
// field's automaton once; anything-but, wildcard and exists predicates on
// the field are checked one by one, so their cost grows with how many of
// them are registered.
//
// Basic usage:
//
//	m := ruler.New()
//	err := m.AddRule("prod-only", []byte(`{"env":["prod"]}`))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	names, err := m.RulesForJSONEvent([]byte(`{"env":"prod","host":"a1"}`))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(names) // [prod-only]
//
// Custom configuration:
//
//	config := ruler.DefaultConfig()
//	config.AdditionalNameStateReuse = true
//	m := ruler.NewWithConfig(config)
//
// Limitations:
//   - Disjunction across fields (a cross-field "or") is not supported; the
//     array-of-alternatives form within one field is the only "or".
//   - A field's sole predicate being Absent cannot be combined with any
//     other predicate on that same field.
package ruler
