package event

import "testing"

func fieldByName(t *testing.T, fields []Field, name string) Field {
	t.Helper()
	for _, f := range fields {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("no field named %q in %v", name, fields)
	return Field{}
}

func TestFlattenFlatObject(t *testing.T) {
	fields, err := Flatten([]byte(`{"a":"x","b":2,"c":true,"d":null}`))
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if len(fields) != 4 {
		t.Fatalf("len(fields) = %d; want 4", len(fields))
	}
	// Stable, lexicographic order by name.
	want := []string{"a", "b", "c", "d"}
	for i, w := range want {
		if fields[i].Name != w {
			t.Fatalf("fields[%d].Name = %q; want %q", i, fields[i].Name, w)
		}
	}
	a := fieldByName(t, fields, "a")
	if a.Kind != KindString || a.Str != "x" {
		t.Fatalf("field a = %+v", a)
	}
	b := fieldByName(t, fields, "b")
	if b.Kind != KindNumber || b.Num != 2 {
		t.Fatalf("field b = %+v", b)
	}
	c := fieldByName(t, fields, "c")
	if c.Kind != KindBool || c.Bool != true {
		t.Fatalf("field c = %+v", c)
	}
	d := fieldByName(t, fields, "d")
	if d.Kind != KindNull {
		t.Fatalf("field d = %+v", d)
	}
}

func TestFlattenNestedObjectDottedNames(t *testing.T) {
	fields, err := Flatten([]byte(`{"x":{"y":{"z":"deep"}}}`))
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	f := fieldByName(t, fields, "x.y.z")
	if f.Str != "deep" {
		t.Fatalf("field x.y.z = %+v", f)
	}
}

func TestFlattenArrayMembership(t *testing.T) {
	fields, err := Flatten([]byte(`{"songs":[{"name":"A"},{"name":"B"}]}`))
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("len(fields) = %d; want 2", len(fields))
	}
	byValue := map[string]Field{}
	for _, f := range fields {
		byValue[f.Str] = f
	}
	a, b := byValue["A"], byValue["B"]
	if len(a.ArrayMembership) != 1 || len(b.ArrayMembership) != 1 {
		t.Fatalf("expected one array membership entry each: a=%v b=%v", a.ArrayMembership, b.ArrayMembership)
	}
	var arrayID int
	for id := range a.ArrayMembership {
		arrayID = id
	}
	if a.ArrayMembership[arrayID] != 0 || b.ArrayMembership[arrayID] != 1 {
		t.Fatalf("wrong indices: a=%v b=%v", a.ArrayMembership, b.ArrayMembership)
	}
}

func TestFlattenHeterogeneousArray(t *testing.T) {
	fields, err := Flatten([]byte(`{"items":["scalar",{"k":"v"},42]}`))
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if len(fields) != 3 {
		t.Fatalf("len(fields) = %d; want 3", len(fields))
	}
}

func TestFlattenScalarAndObjectSiblingsInArrayShareArrayID(t *testing.T) {
	fields, err := Flatten([]byte(`{"items":["a",{"k":"v"}]}`))
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	var scalar, nested Field
	for _, f := range fields {
		if f.Name == "items" {
			scalar = f
		} else {
			nested = f
		}
	}
	if len(scalar.ArrayMembership) != 1 || len(nested.ArrayMembership) != 1 {
		t.Fatalf("expected membership on both: scalar=%v nested=%v", scalar.ArrayMembership, nested.ArrayMembership)
	}
	for id := range scalar.ArrayMembership {
		if _, ok := nested.ArrayMembership[id]; !ok {
			t.Fatalf("scalar and nested sibling carry different array ids: scalar=%v nested=%v", scalar.ArrayMembership, nested.ArrayMembership)
		}
	}
}

func TestFlattenNestedArrays(t *testing.T) {
	fields, err := Flatten([]byte(`{"m":[["a","b"],["c"]]}`))
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if len(fields) != 3 {
		t.Fatalf("len(fields) = %d; want 3", len(fields))
	}
	for _, f := range fields {
		if len(f.ArrayMembership) != 2 {
			t.Fatalf("field %+v should carry membership in both the outer and inner array", f)
		}
	}
}

func TestFlattenRejectsNonObjectRoot(t *testing.T) {
	for _, input := range []string{`"just a string"`, `42`, `[1,2,3]`, `true`, `null`} {
		if _, err := Flatten([]byte(input)); err == nil {
			t.Fatalf("Flatten(%q) = nil error; want ErrInvalidEvent", input)
		}
	}
}

func TestFlattenRejectsMalformedJSON(t *testing.T) {
	if _, err := Flatten([]byte(`{not valid json`)); err == nil {
		t.Fatalf("Flatten(malformed) = nil error; want ErrInvalidEvent")
	}
}

func TestFlattenEmptyObject(t *testing.T) {
	fields, err := Flatten([]byte(`{}`))
	if err != nil {
		t.Fatalf("Flatten({}): %v", err)
	}
	if len(fields) != 0 {
		t.Fatalf("len(fields) = %d; want 0", len(fields))
	}
}
