package kvtree

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/goccy/go-yaml"
)

type name string

func TestClassify(t *testing.T) {
	tests := []struct {
		v        any
		expected Kind
	}{
		{nil, KindPrimitive},
		{true, KindPrimitive},
		{"s", KindPrimitive},
		{42, KindPrimitive},
		{uint8(1), KindPrimitive},
		{1.5, KindPrimitive},
		{json.Number("1"), KindPrimitive},
		{name("x"), KindPrimitive},

		{[]any{}, KindArray},
		{[]int{1}, KindArray},
		{[2]string{}, KindArray},
		{[]name{}, KindArray},

		{Object{}, KindObject},
		{map[string]any{}, KindObject},
		{map[string]int{}, KindObject},
		{map[name]any{}, KindObject},
		{yaml.MapSlice{}, KindObject},

		{[]byte("x"), KindUnsupported},
		{[4]byte{}, KindUnsupported},
		{map[int]string{}, KindUnsupported},
		{point{}, KindUnsupported},
		{&point{}, KindUnsupported},
		{time.Time{}, KindUnsupported},
		{func() {}, KindUnsupported},
		{make(chan int), KindUnsupported},
	}
	for _, tt := range tests {
		if got := Classify(tt.v); got != tt.expected {
			t.Errorf("** Classify(%T) = %v, wanted %v", tt.v, got, tt.expected)
		}
	}
	// cached path
	deepEqual(t, Classify(point{}), KindUnsupported)
}

func TestKindString(t *testing.T) {
	deepEqual(t, KindPrimitive.String(), "primitive")
	deepEqual(t, KindArray.String(), "array")
	deepEqual(t, KindObject.String(), "object")
	deepEqual(t, KindUnsupported.String(), "unsupported")
	deepEqual(t, Kind(99).String(), "invalid kind 99")
}

func TestNormalizeLeaf(t *testing.T) {
	tests := []struct {
		v        any
		expected any
	}{
		{nil, nil},
		{int8(-3), int64(-3)},
		{uint(5), int64(5)},
		{uint64(math.MaxUint64), uint64(math.MaxUint64)},
		{uint64(math.MaxInt64), int64(math.MaxInt64)},
		{float32(1.5), 1.5},
		{json.Number("7"), int64(7)},
		{json.Number("1.25"), 1.25},
		{name("x"), "x"},
		{true, true},
	}
	for _, tt := range tests {
		deepEqual(t, normalizeLeaf(tt.v), tt.expected)
	}
}

func TestNormalize(t *testing.T) {
	v := map[string]any{
		"b": []int{1, 2},
		"a": yaml.MapSlice{{Key: "y", Value: uint64(1)}, {Key: 3, Value: "three"}},
	}
	deepEqual(t, must(Normalize(v)), any(Object{
		{"a", Object{{"y", int64(1)}, {"3", "three"}}},
		{"b", []any{int64(1), int64(2)}},
	}))
	deepEqual(t, must(Normalize(Object{})), any(Object{}))
	deepEqual(t, must(Normalize([]string{})), any([]any{}))

	_, err := Normalize(Object{{"a", []any{point{}}}})
	isSerializationErr(t, err)
	if se, _ := err.(*SerializationError); se == nil || se.Path != ".a.0" {
		t.Errorf("** error path = %v, wanted .a.0", err)
	}

	for _, bad := range []any{Object{{"", 1}}, Object{{"a.b", 1}}, map[string]any{`a\b`: 1}} {
		_, err := Normalize(bad)
		isSerializationErr(t, err)
	}
}

func TestObject(t *testing.T) {
	o := Object{{"a", 1}, {"b", 2}}
	v, found := o.Get("b")
	deepEqual(t, found, true)
	deepEqual(t, v, any(2))
	_, found = o.Get("c")
	deepEqual(t, found, false)
	deepEqual(t, o.Keys(), []string{"a", "b"})
}
