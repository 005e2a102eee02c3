package kvtree

import (
	"testing"
)

func TestApplyManifestDelta(t *testing.T) {
	obj := func(keys ...string) Descriptor {
		return Descriptor{Type: TypeObject, Keys: keys}
	}
	arr := func(n int) Descriptor {
		return Descriptor{Type: TypeArray, Length: n}
	}

	tests := []struct {
		name     string
		mode     manifestMode
		parent   Descriptor
		key      string
		expected Descriptor
		fails    bool
	}{
		{"object insert", manifestInsert, obj("a"), "b", obj("a", "b"), false},
		{"object insert existing", manifestInsert, obj("a", "b"), "a", obj("a", "b"), false},
		{"object remove", manifestRemove, obj("a", "b", "c"), "b", obj("a", "c"), false},
		{"object remove missing", manifestRemove, obj("a"), "z", obj("a"), false},
		{"array append", manifestInsert, arr(2), "2", arr(3), false},
		{"array overwrite", manifestInsert, arr(2), "0", arr(2), false},
		{"array past end", manifestInsert, arr(2), "5", arr(2), true},
		{"array non-index", manifestInsert, arr(2), "x", arr(2), true},
		{"array remove", manifestRemove, arr(2), "1", arr(1), false},
		{"array remove beyond", manifestRemove, arr(2), "5", arr(2), false},
		{"invalid type", manifestInsert, Descriptor{}, "a", Descriptor{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := applyManifestDelta(tt.mode, tt.parent, tt.key)
			if tt.fails {
				if err == nil {
					t.Fatalf("** %v %q succeeded, wanted error", tt.mode, tt.key)
				}
				return
			}
			ok(t, err)
			deepEqual(t, a, tt.expected)
		})
	}
}

func TestApplyManifestDelta_doesNotMutate(t *testing.T) {
	keys := make([]string, 2, 10)
	keys[0], keys[1] = "a", "b"
	parent := Descriptor{Type: TypeObject, Keys: keys}

	must(applyManifestDelta(manifestInsert, parent, "c"))
	must(applyManifestDelta(manifestRemove, parent, "a"))
	deepEqual(t, keys[:3], []string{"a", "b", ""})
	deepEqual(t, parent.Keys, []string{"a", "b"})
}

func TestParseIndex(t *testing.T) {
	for key, expected := range map[string]int{"0": 0, "7": 7, "12": 12} {
		i, valid := parseIndex(key)
		if !valid || i != expected {
			t.Errorf("** parseIndex(%q) = %d, %v, wanted %d", key, i, valid, expected)
		}
	}
	for _, key := range []string{"", "01", "-1", "+1", "a", "1.0"} {
		if _, valid := parseIndex(key); valid {
			t.Errorf("** parseIndex(%q) succeeded", key)
		}
	}
}

func TestDescriptor(t *testing.T) {
	o := Descriptor{Type: TypeObject, Root: true, Keys: []string{"a", "b"}}
	deepEqual(t, o.String(), "{type: object, root, keys: [a, b]}")
	deepEqual(t, o.Len(), 2)
	deepEqual(t, o.Has("a"), true)
	deepEqual(t, o.Has("0"), false)
	deepEqual(t, o.ChildKeys(), []string{"a", "b"})

	a := Descriptor{Type: TypeArray, Length: 3}
	deepEqual(t, a.String(), "{type: array, length: 3}")
	deepEqual(t, a.Len(), 3)
	deepEqual(t, a.Has("2"), true)
	deepEqual(t, a.Has("3"), false)
	deepEqual(t, a.Has("a"), false)
	deepEqual(t, a.ChildKeys(), []string{"0", "1", "2"})

	deepEqual(t, Descriptor{}.ChildKeys(), []string(nil))
	deepEqual(t, manifestRemove.String(), "remove")
}
