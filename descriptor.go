package kvtree

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ContainerType is the type of a container descriptor.
type ContainerType string

const (
	TypeObject ContainerType = "object"
	TypeArray  ContainerType = "array"
)

func (t ContainerType) valid() bool {
	return t == TypeObject || t == TypeArray
}

// Descriptor is the backend record that marks a path as a container and
// lists its children: Keys for objects, Length for arrays.
type Descriptor struct {
	Type   ContainerType
	Root   bool
	Keys   []string
	Length int
}

func newObjectDescriptor() Descriptor {
	return Descriptor{Type: TypeObject, Keys: []string{}}
}

func newArrayDescriptor() Descriptor {
	return Descriptor{Type: TypeArray}
}

// ChildKeys returns the segments of the children the descriptor declares.
func (d Descriptor) ChildKeys() []string {
	switch d.Type {
	case TypeObject:
		return slices.Clone(d.Keys)
	case TypeArray:
		keys := make([]string, d.Length)
		for i := range keys {
			keys[i] = strconv.Itoa(i)
		}
		return keys
	default:
		return nil
	}
}

// Len returns the number of declared children.
func (d Descriptor) Len() int {
	if d.Type == TypeArray {
		return d.Length
	}
	return len(d.Keys)
}

// Has reports whether the manifest declares a child named key.
func (d Descriptor) Has(key string) bool {
	switch d.Type {
	case TypeObject:
		return slices.Contains(d.Keys, key)
	case TypeArray:
		i, ok := parseIndex(key)
		return ok && i < d.Length
	default:
		return false
	}
}

func (d Descriptor) equal(o Descriptor) bool {
	return d.Type == o.Type && d.Root == o.Root && d.Length == o.Length && slices.Equal(d.Keys, o.Keys)
}

func (d Descriptor) String() string {
	var buf strings.Builder
	buf.WriteString("{type: ")
	buf.WriteString(string(d.Type))
	if d.Root {
		buf.WriteString(", root")
	}
	switch d.Type {
	case TypeObject:
		fmt.Fprintf(&buf, ", keys: [%s]", strings.Join(d.Keys, ", "))
	case TypeArray:
		fmt.Fprintf(&buf, ", length: %d", d.Length)
	}
	buf.WriteByte('}')
	return buf.String()
}

type manifestMode int

const (
	manifestInsert manifestMode = iota
	manifestRemove
)

func (m manifestMode) String() string {
	switch m {
	case manifestInsert:
		return "insert"
	case manifestRemove:
		return "remove"
	default:
		return fmt.Sprintf("invalid mode %d", int(m))
	}
}

// applyManifestDelta computes the parent descriptor that results from
// inserting or removing childKey. It performs no I/O.
//
// Array inserts accept an existing index (an overwrite, length unchanged) or
// the index one past the end (an append); array removals drop the last
// index, so the caller compacts later elements first.
func applyManifestDelta(mode manifestMode, parent Descriptor, childKey string) (Descriptor, error) {
	result := parent
	switch parent.Type {
	case TypeObject:
		switch mode {
		case manifestInsert:
			if !slices.Contains(parent.Keys, childKey) {
				result.Keys = append(slices.Clone(parent.Keys), childKey)
			}
		case manifestRemove:
			result.Keys = slices.DeleteFunc(slices.Clone(parent.Keys), func(k string) bool {
				return k == childKey
			})
		}
	case TypeArray:
		idx, ok := parseIndex(childKey)
		if !ok {
			return parent, fmt.Errorf("%q is not an array index", childKey)
		}
		switch mode {
		case manifestInsert:
			if idx > parent.Length {
				return parent, fmt.Errorf("index %d is past the end of array of length %d", idx, parent.Length)
			}
			if idx == parent.Length {
				result.Length++
			}
		case manifestRemove:
			if idx < parent.Length {
				result.Length--
			}
		}
	default:
		return parent, fmt.Errorf("invalid descriptor type %q", parent.Type)
	}
	return result, nil
}

// parseIndex parses a canonical non-negative array index ("0", "1", ...,
// never "01" or "-1").
func parseIndex(key string) (int, bool) {
	i, err := strconv.Atoi(key)
	if err != nil || i < 0 || strconv.Itoa(i) != key {
		return 0, false
	}
	return i, true
}

// location is the result of locateParent: the addressed node and the
// descriptor of the container that holds it.
type location struct {
	Path       string
	Subroot    string
	ParentKey  string
	ChildKey   string
	ParentPath string
	Parent     Descriptor
}

// locateParent finds the container that holds path. Every path other than the
// root must have one.
func (s *Store) locateParent(path string) (location, error) {
	segments, err := ParsePath(path)
	if err != nil {
		return location{}, err
	}
	n := len(segments)
	loc := location{
		Path:      path,
		ChildKey:  segments[n-1],
		ParentKey: segments[n-2],
		Subroot:   strings.Join(segments[:n-2], string(Sep)),
	}
	loc.ParentPath = must(JoinPath(loc.Subroot, loc.ParentKey))

	parent, found, err := s.readDescriptor(loc.ParentPath)
	if err != nil {
		return loc, deserializationErrf(path, nil, err, "reading parent %s", loc.ParentPath)
	}
	if !found {
		return loc, deserializationErrf(path, nil, nil, "parent %s is not a container", loc.ParentPath)
	}
	loc.Parent = parent
	return loc, nil
}

// Descriptor returns the container descriptor stored at path, if any.
func (s *Store) Descriptor(path string) (Descriptor, bool, error) {
	path, err := ResolvePath(path)
	if err != nil {
		return Descriptor{}, false, err
	}
	return s.readDescriptor(path)
}

func (s *Store) readDescriptor(path string) (Descriptor, bool, error) {
	rec, err := s.read(path)
	if err != nil {
		return Descriptor{}, false, err
	}
	if !rec.isContainer() {
		return Descriptor{}, false, nil
	}
	return rec.Desc, true, nil
}

// updateManifest re-reads the parent descriptor of loc, applies the delta and
// writes it back if it changed.
func (s *Store) updateManifest(mode manifestMode, loc location) error {
	parent, found, err := s.readDescriptor(loc.ParentPath)
	if err != nil {
		return err
	}
	if !found {
		return deserializationErrf(loc.Path, nil, nil, "parent %s disappeared", loc.ParentPath)
	}
	updated, err := applyManifestDelta(mode, parent, loc.ChildKey)
	if err != nil {
		return deserializationErrf(loc.Path, nil, err, "%s into %s", mode, loc.ParentPath)
	}
	if updated.equal(parent) {
		return nil
	}
	return s.write(loc.ParentPath, containerRecord(updated))
}
