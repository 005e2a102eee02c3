package kvtree

import (
	"strconv"
)

// Set stores value at path, replacing whatever subtree was there, and
// registers the path in its parent's manifest.
//
// Objects and arrays are written as a descriptor followed by one Set per
// child, so the descriptor always lists exactly the children written so far.
// A value that is, or contains, something unsupported is rejected before
// anything is written.
func (s *Store) Set(path string, value any) error {
	path, err := ResolvePath(path)
	if err != nil {
		return err
	}
	if path == RootPath {
		return s.setRoot(value)
	}

	loc, err := s.locateParent(path)
	if err != nil {
		return err
	}
	if err := checkChildKey(loc); err != nil {
		return err
	}
	if err := validateTree(s.enc, path, value); err != nil {
		return err
	}
	return s.set(loc, value)
}

// checkChildKey rejects child keys the parent container cannot hold.
func checkChildKey(loc location) error {
	if !isValidSegment(loc.ChildKey) {
		return deserializationErrf(loc.Path, nil, nil, "%q is not a valid path segment", loc.ChildKey)
	}
	if loc.Parent.Type == TypeArray {
		idx, ok := parseIndex(loc.ChildKey)
		if !ok {
			return deserializationErrf(loc.Path, nil, nil, "%s is an array and %q is not an index", loc.ParentPath, loc.ChildKey)
		}
		if idx > loc.Parent.Length {
			return deserializationErrf(loc.Path, nil, nil, "index %d is past the end of %s (length %d)", idx, loc.ParentPath, loc.Parent.Length)
		}
	}
	return nil
}

func childLocation(parentPath, key string) location {
	return location{
		Path:       childPath(parentPath, key),
		ParentPath: parentPath,
		ChildKey:   key,
	}
}

func (s *Store) set(loc location, value any) error {
	path := loc.Path
	old, err := s.read(path)
	if err != nil {
		return err
	}
	if old.Present {
		if err := s.clear(path, old); err != nil {
			return err
		}
	}

	switch Classify(value) {
	case KindObject:
		if err := s.write(path, containerRecord(newObjectDescriptor())); err != nil {
			return err
		}
		eachField(value, func(key string, item any) bool {
			err = s.set(childLocation(path, key), item)
			return err == nil
		})
	case KindArray:
		if err := s.write(path, containerRecord(newArrayDescriptor())); err != nil {
			return err
		}
		eachItem(value, func(i int, item any) bool {
			err = s.set(childLocation(path, strconv.Itoa(i)), item)
			return err == nil
		})
	case KindPrimitive:
		err = s.write(path, leafRecord(normalizeLeaf(value)))
	default:
		err = serializationErrf(path, value, nil, "unsupported value of type %T", value)
	}
	if err != nil {
		return err
	}

	return s.updateManifest(manifestInsert, loc)
}

// setRoot replaces the children of the root. The root stays an object.
func (s *Store) setRoot(value any) error {
	if Classify(value) != KindObject {
		return serializationErrf(RootPath, value, nil, "root can only be set to an object")
	}
	if err := validateTree(s.enc, RootPath, value); err != nil {
		return err
	}
	root, found, err := s.readDescriptor(RootPath)
	if err != nil {
		return err
	}
	if found {
		for _, key := range root.ChildKeys() {
			if err := s.clearPath(childPath(RootPath, key)); err != nil {
				return err
			}
		}
	}
	root = newObjectDescriptor()
	root.Root = true
	if err := s.write(RootPath, containerRecord(root)); err != nil {
		return err
	}

	eachField(value, func(key string, item any) bool {
		err = s.set(childLocation(RootPath, key), item)
		return err == nil
	})
	return err
}
