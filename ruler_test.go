package ruler

import (
	"sort"
	"testing"
)

func sortedNames(ss []string) []string {
	cp := append([]string(nil), ss...)
	sort.Strings(cp)
	return cp
}

// Scenario 1: prefix predicate.
func TestScenarioPrefixMatch(t *testing.T) {
	m := New()
	if err := m.AddRule("rule", []byte(`{"x":[{"prefix":"foo"}]}`)); err != nil {
		t.Fatalf("AddRule: %v", err)
	}

	got, err := m.RulesForJSONEvent([]byte(`{"x":"foobar"}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "rule" {
		t.Fatalf("got = %v; want [rule]", got)
	}

	got, err = m.RulesForJSONEvent([]byte(`{"x":"bar"}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("got = %v; want []", got)
	}
}

// Scenario 2: Exact vs. AnythingBut on the same value space.
func TestScenarioExactVsAnythingBut(t *testing.T) {
	m := New()
	if err := m.AddRule("r1", []byte(`{"a":["v"]}`)); err != nil {
		t.Fatalf("AddRule r1: %v", err)
	}
	if err := m.AddRule("r2", []byte(`{"a":[{"anything-but":"v"}]}`)); err != nil {
		t.Fatalf("AddRule r2: %v", err)
	}

	got, err := m.RulesForJSONEvent([]byte(`{"a":"v"}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "r1" {
		t.Fatalf("got = %v; want [r1]", got)
	}

	got, err = m.RulesForJSONEvent([]byte(`{"a":"w"}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "r2" {
		t.Fatalf("got = %v; want [r2]", got)
	}
}

// Scenario 3: array-consistency across a two-song Beatles/Stones-style event.
func TestScenarioArrayConsistency(t *testing.T) {
	event := []byte(`{
		"songs": [
			{"name": "Norwegian Wood", "writers": [{"first": "John"}]},
			{"name": "Satisfaction",   "writers": [{"first": "Keith"}]}
		]
	}`)

	johnRule := []byte(`{"songs":{"name":["Norwegian Wood"],"writers":{"first":["John"]}}}`)
	m := New()
	if err := m.AddRule("johnRule", johnRule); err != nil {
		t.Fatalf("AddRule johnRule: %v", err)
	}
	got, err := m.RulesForJSONEvent(event)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "johnRule" {
		t.Fatalf("got = %v; want [johnRule] (same-song match)", got)
	}

	m2 := New()
	keithRule := []byte(`{"songs":{"name":["Norwegian Wood"],"writers":{"first":["Keith"]}}}`)
	if err := m2.AddRule("keithRule", keithRule); err != nil {
		t.Fatalf("AddRule keithRule: %v", err)
	}
	got, err = m2.RulesForJSONEvent(event)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("got = %v; want [] (name and writer belong to different songs)", got)
	}
}

// Scenario 4: open/open numeric range.
func TestScenarioNumericRangeOpenOpen(t *testing.T) {
	m := New()
	if err := m.AddRule("r1", []byte(`{"a":[{"numeric":[">",1.11,"<",3.33]}]}`)); err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	for _, tc := range []struct {
		val   string
		match bool
	}{
		{"1.11", false},
		{"2.0", true},
		{"3.33", false},
	} {
		got, err := m.RulesForJSONEvent([]byte(`{"a":` + tc.val + `}`))
		if err != nil {
			t.Fatal(err)
		}
		if (len(got) == 1) != tc.match {
			t.Fatalf("value %s: got = %v; want match=%v", tc.val, got, tc.match)
		}
	}
}

// Scenario 5: equals-ignore-case.
func TestScenarioEqualsIgnoreCase(t *testing.T) {
	m := New()
	if err := m.AddRule("r1", []byte(`{"a":[{"equals-ignore-case":"jAVa"}]}`)); err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	for _, v := range []string{"JAVA", "jAvA", "java"} {
		got, err := m.RulesForJSONEvent([]byte(`{"a":"` + v + `"}`))
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 {
			t.Fatalf("value %q: got = %v; want match", v, got)
		}
	}
	for _, v := range []string{"javax", "ava"} {
		got, err := m.RulesForJSONEvent([]byte(`{"a":"` + v + `"}`))
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 0 {
			t.Fatalf("value %q: got = %v; want no match", v, got)
		}
	}
}

func TestAddRuleRejectsMalformedJSON(t *testing.T) {
	m := New()
	if err := m.AddRule("r1", []byte(`{not json`)); err == nil {
		t.Fatalf("expected error for malformed rule JSON")
	}
}

func TestRulesForJSONEventRejectsMalformedJSON(t *testing.T) {
	m := New()
	if err := m.AddRule("r1", []byte(`{"a":["x"]}`)); err != nil {
		t.Fatal(err)
	}
	if _, err := m.RulesForJSONEvent([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed event JSON")
	}
}

func TestDeleteRuleExactInverse(t *testing.T) {
	m := New()
	body := []byte(`{"a":["x"]}`)
	if err := m.AddRule("r1", body); err != nil {
		t.Fatal(err)
	}
	if err := m.DeleteRule("r1", body); err != nil {
		t.Fatal(err)
	}
	if !m.IsEmpty() {
		t.Fatalf("expected Machine to be empty after delete")
	}
	got, err := m.RulesForJSONEvent([]byte(`{"a":"x"}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("got = %v; want no match after delete", got)
	}
}

func TestDeleteUnknownRuleIsNoop(t *testing.T) {
	m := New()
	if err := m.DeleteRule("nope", []byte(`{"a":["x"]}`)); err != nil {
		t.Fatal(err)
	}
	if !m.IsEmpty() {
		t.Fatalf("expected no-op delete to leave Machine empty")
	}
}

func TestListRuleNamesSorted(t *testing.T) {
	m := New()
	if err := m.AddRule("zebra", []byte(`{"a":["x"]}`)); err != nil {
		t.Fatal(err)
	}
	if err := m.AddRule("apple", []byte(`{"b":["y"]}`)); err != nil {
		t.Fatal(err)
	}
	names := m.ListRuleNames()
	if len(names) != 2 || names[0] != "apple" || names[1] != "zebra" {
		t.Fatalf("names = %v; want [apple zebra]", names)
	}
}

func TestStatsReportsRegisteredRules(t *testing.T) {
	m := New()
	if err := m.AddRule("r1", []byte(`{"a":["x"],"b":["y"]}`)); err != nil {
		t.Fatal(err)
	}
	stats := m.Stats()
	if stats.SubRuleCount != 1 {
		t.Fatalf("SubRuleCount = %d; want 1", stats.SubRuleCount)
	}
	if stats.FieldCount != 2 {
		t.Fatalf("FieldCount = %d; want 2", stats.FieldCount)
	}
	if stats.PatternCount != 2 {
		t.Fatalf("PatternCount = %d; want 2", stats.PatternCount)
	}
}

func TestRejectsAbsentMixedWithOtherAlternatives(t *testing.T) {
	m := New()
	err := m.AddRule("r1", []byte(`{"a":[{"exists":false},{"prefix":"x"}]}`))
	if err == nil {
		t.Fatalf("expected error mixing exists:false with another predicate")
	}
}

func TestRulesForEventCompatibilityPath(t *testing.T) {
	m := New()
	if err := m.AddRule("r1", []byte(`{"a":["x"],"b":["y"]}`)); err != nil {
		t.Fatal(err)
	}
	fields := map[string][]FieldValue{
		"a": {{Kind: KindString, Str: "x"}},
		"b": {{Kind: KindString, Str: "y"}},
	}
	got := m.RulesForEvent(fields)
	if len(got) != 1 || got[0] != "r1" {
		t.Fatalf("got = %v; want [r1]", got)
	}
}

func TestConfigValidateIsAlwaysNilToday(t *testing.T) {
	config := DefaultConfig()
	if err := config.Validate(); err != nil {
		t.Fatalf("Validate() = %v; want nil", err)
	}
}

func TestMultipleRulesReportedOnce(t *testing.T) {
	m := New()
	if err := m.AddRule("r1", []byte(`{"a":["x"]}`)); err != nil {
		t.Fatal(err)
	}
	if err := m.AddRule("r2", []byte(`{"a":["x"]}`)); err != nil {
		t.Fatal(err)
	}
	got, err := m.RulesForJSONEvent([]byte(`{"a":"x"}`))
	if err != nil {
		t.Fatal(err)
	}
	got = sortedNames(got)
	if len(got) != 2 || got[0] != "r1" || got[1] != "r2" {
		t.Fatalf("got = %v; want [r1 r2]", got)
	}
}
