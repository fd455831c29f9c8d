package engine

import (
	"math"
	"testing"
)

func TestValueKinds(t *testing.T) {
	cases := []struct {
		value Value
		kind  Kind
	}{
		{Undefined(), KindUndefined},
		{Null(), KindNull},
		{Boolean(true), KindBoolean},
		{Number(1.5), KindNumber},
		{String("x"), KindString},
		{Array(), KindArray},
		{Object(nil), KindObject},
		{Bytes(nil), KindBytes},
	}
	for _, tc := range cases {
		if tc.value.Kind() != tc.kind {
			t.Fatalf("%s: Kind() = %s, want %s", tc.value, tc.value.Kind(), tc.kind)
		}
	}
}

func TestValueEqual(t *testing.T) {
	a := Object(map[string]Value{
		"list":  Array(Number(1), String("two"), Null()),
		"nan":   Number(math.NaN()),
		"bytes": Bytes([]byte{1, 2}),
	})
	b := Object(map[string]Value{
		"list":  Array(Number(1), String("two"), Null()),
		"nan":   Number(math.NaN()),
		"bytes": Bytes([]byte{1, 2}),
	})
	if !a.Equal(b) {
		t.Fatalf("%s should equal %s", a, b)
	}
	if a.Equal(Object(map[string]Value{"list": Array()})) {
		t.Fatal("values with different shapes compared equal")
	}
	if Number(1).Equal(String("1")) {
		t.Fatal("number compared equal to string")
	}
	if Array(Number(1)).Equal(Array(Number(2))) {
		t.Fatal("arrays with different elements compared equal")
	}
	if Undefined().Equal(Null()) {
		t.Fatal("undefined compared equal to null")
	}
}

func TestValueConstructorsCopy(t *testing.T) {
	raw := []byte{1, 2, 3}
	v := Bytes(raw)
	raw[0] = 9
	if v.Buf()[0] != 1 {
		t.Fatal("Bytes shares the caller's backing array")
	}

	props := map[string]Value{"a": Number(1)}
	o := Object(props)
	props["a"] = Number(2)
	if !o.Props()["a"].Equal(Number(1)) {
		t.Fatal("Object shares the caller's map")
	}
}

func TestValueString(t *testing.T) {
	cases := []struct {
		value Value
		want  string
	}{
		{Undefined(), "undefined"},
		{Null(), "null"},
		{Boolean(false), "false"},
		{Number(3), "3"},
		{Number(0.5), "0.5"},
		{String("hi"), `"hi"`},
		{Array(Number(1), String("a")), `[1, "a"]`},
		{Object(map[string]Value{"b": Number(2), "a": Number(1)}), `{"a": 1, "b": 2}`},
		{Bytes([]byte{0, 1, 2}), "bytes(3)"},
	}
	for _, tc := range cases {
		if got := tc.value.String(); got != tc.want {
			t.Fatalf("String() = %q, want %q", got, tc.want)
		}
	}
}
