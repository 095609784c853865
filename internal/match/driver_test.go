package match

import (
	"sort"
	"testing"

	"github.com/coregx/ruler/internal/event"
	"github.com/coregx/ruler/internal/pattern"
)

func flattenToMap(t *testing.T, data string) map[string][]event.Field {
	t.Helper()
	fields, err := event.Flatten([]byte(data))
	if err != nil {
		t.Fatalf("event.Flatten: %v", err)
	}
	out := map[string][]event.Field{}
	for _, f := range fields {
		out[f.Name] = append(out[f.Name], f)
	}
	return out
}

func fieldsOf(pairs ...interface{}) map[string][]pattern.Pattern {
	out := map[string][]pattern.Pattern{}
	for i := 0; i < len(pairs); i += 2 {
		name := pairs[i].(string)
		ps := pairs[i+1].([]pattern.Pattern)
		out[name] = ps
	}
	return out
}

func exact(s string) []pattern.Pattern { return []pattern.Pattern{pattern.NewExact(s)} }

func sortedStrings(ss []string) []string {
	cp := append([]string(nil), ss...)
	sort.Strings(cp)
	return cp
}

func TestAddRuleAndMatchSingleField(t *testing.T) {
	d := NewDriver(false)
	if err := d.AddRule("r1", fieldsOf("a", exact("x"))); err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	got, err := d.RulesForJSONEvent([]byte(`{"a":"x"}`))
	if err != nil {
		t.Fatalf("RulesForJSONEvent: %v", err)
	}
	if len(got) != 1 || got[0] != "r1" {
		t.Fatalf("got = %v; want [r1]", got)
	}

	got, err = d.RulesForJSONEvent([]byte(`{"a":"y"}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("got = %v; want no match", got)
	}
}

func TestAddRuleConjunctionAcrossFields(t *testing.T) {
	d := NewDriver(false)
	if err := d.AddRule("r1", fieldsOf("a", exact("x"), "b", exact("y"))); err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	got, err := d.RulesForJSONEvent([]byte(`{"a":"x","b":"y"}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got = %v; want 1 match", got)
	}

	got, err = d.RulesForJSONEvent([]byte(`{"a":"x"}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("got = %v; missing field b should prevent match", got)
	}
}

func TestWithinFieldAlternativesAreOR(t *testing.T) {
	d := NewDriver(false)
	if err := d.AddRule("r1", fieldsOf("a", []pattern.Pattern{pattern.NewExact("x"), pattern.NewExact("y")})); err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	for _, v := range []string{"x", "y"} {
		got, err := d.RulesForJSONEvent([]byte(`{"a":"` + v + `"}`))
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 {
			t.Fatalf("value %q: got = %v; want match", v, got)
		}
	}
	got, err := d.RulesForJSONEvent([]byte(`{"a":"z"}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("value z: got = %v; want no match", got)
	}
}

func TestAbsentRequirement(t *testing.T) {
	d := NewDriver(false)
	if err := d.AddRule("r1", fieldsOf("a", []pattern.Pattern{pattern.NewAbsent()})); err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	got, err := d.RulesForJSONEvent([]byte(`{"b":"1"}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got = %v; want match when field a is absent", got)
	}

	got, err = d.RulesForJSONEvent([]byte(`{"a":"1"}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("got = %v; want no match when field a is present", got)
	}
}

func TestAbsentCombinedWithOtherFields(t *testing.T) {
	d := NewDriver(false)
	err := d.AddRule("r1", fieldsOf(
		"a", exact("x"),
		"b", []pattern.Pattern{pattern.NewAbsent()},
	))
	if err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	got, err := d.RulesForJSONEvent([]byte(`{"a":"x"}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got = %v; want match (a present and matching, b absent)", got)
	}

	got, err = d.RulesForJSONEvent([]byte(`{"a":"x","b":"present"}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("got = %v; want no match once b is present", got)
	}
}

func TestRejectsAbsentMixedWithOtherAlternatives(t *testing.T) {
	d := NewDriver(false)
	err := d.AddRule("r1", fieldsOf("a", []pattern.Pattern{pattern.NewAbsent(), pattern.NewExact("x")}))
	if err == nil {
		t.Fatalf("expected error mixing Absent with other alternatives")
	}
}

func TestAddRuleRollsBackOnInvalidWildcard(t *testing.T) {
	d := NewDriver(false)
	err := d.AddRule("r1", fieldsOf(
		"a", exact("x"),
		"b", []pattern.Pattern{pattern.NewWildcard("a**b")},
	))
	if err == nil {
		t.Fatalf("expected error for invalid wildcard operand")
	}
	// The field "a" insertion must have been rolled back: an event that
	// satisfies field "a" alone must match no rule.
	got, err := d.RulesForJSONEvent([]byte(`{"a":"x"}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("got = %v; want no rules registered after rollback", got)
	}
}

func TestDeleteRuleIsExactInverse(t *testing.T) {
	d := NewDriver(false)
	body := fieldsOf("a", exact("x"))
	if err := d.AddRule("r1", body); err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	d.DeleteRule("r1", body)
	if !d.IsEmpty() {
		t.Fatalf("expected driver to be empty after delete")
	}
	got, err := d.RulesForJSONEvent([]byte(`{"a":"x"}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("got = %v; want no match after delete", got)
	}
}

func TestDeleteUnknownRuleIsNoop(t *testing.T) {
	d := NewDriver(false)
	d.DeleteRule("nope", fieldsOf("a", exact("x")))
	if !d.IsEmpty() {
		t.Fatalf("expected no-op delete to leave driver empty")
	}
}

func TestArrayConsistencyRequiresSameArrayElement(t *testing.T) {
	d := NewDriver(false)
	err := d.AddRule("bandRule", fieldsOf(
		"songs.name", exact("Help!"),
		"songs.writer", exact("Lennon"),
	))
	if err != nil {
		t.Fatalf("AddRule: %v", err)
	}

	// Same song: name and writer line up at the same array index.
	consistent := `{"songs":[{"name":"Help!","writer":"Lennon"},{"name":"Satisfaction","writer":"Jagger"}]}`
	got, err := d.RulesForJSONEvent([]byte(consistent))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got = %v; want match (consistent array positions)", got)
	}

	// Cross-song: the name and writer that each match belong to different
	// songs; the rule must not fire.
	inconsistent := `{"songs":[{"name":"Help!","writer":"Jagger"},{"name":"Satisfaction","writer":"Lennon"}]}`
	got, err = d.RulesForJSONEvent([]byte(inconsistent))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("got = %v; want no match (array positions disagree)", got)
	}
}

func TestRulesForEventIgnoresArrayConsistency(t *testing.T) {
	d := NewDriver(false)
	err := d.AddRule("bandRule", fieldsOf(
		"songs.name", exact("Help!"),
		"songs.writer", exact("Lennon"),
	))
	if err != nil {
		t.Fatalf("AddRule: %v", err)
	}

	fields := flattenToMap(t, `{"songs":[{"name":"Help!","writer":"Jagger"},{"name":"Satisfaction","writer":"Lennon"}]}`)
	got := d.RulesForEvent(fields)
	if len(got) != 1 {
		t.Fatalf("got = %v; want the generic path to match without array consistency", got)
	}
}

func TestAnythingButPrefixMatchesDriver(t *testing.T) {
	d := NewDriver(false)
	err := d.AddRule("r1", fieldsOf("a", []pattern.Pattern{pattern.NewAnythingButPrefix("temp-")}))
	if err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	got, err := d.RulesForJSONEvent([]byte(`{"a":"prod-1"}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got = %v; want match", got)
	}
	got, err = d.RulesForJSONEvent([]byte(`{"a":"temp-1"}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("got = %v; want no match", got)
	}
}

func TestMultipleRulesReportedOnce(t *testing.T) {
	d := NewDriver(false)
	if err := d.AddRule("r1", fieldsOf("a", exact("x"))); err != nil {
		t.Fatal(err)
	}
	if err := d.AddRule("r2", fieldsOf("a", exact("x"))); err != nil {
		t.Fatal(err)
	}
	got, err := d.RulesForJSONEvent([]byte(`{"a":"x"}`))
	if err != nil {
		t.Fatal(err)
	}
	got = sortedStrings(got)
	if len(got) != 2 || got[0] != "r1" || got[1] != "r2" {
		t.Fatalf("got = %v; want [r1 r2]", got)
	}
}
