package kvtree

import (
	"strconv"
)

// Delete removes the value at path together with its entire subtree and
// drops the path from its parent's manifest. Deleting a missing value is a
// no-op. Deleting an array element moves the following elements down by one
// so indices stay contiguous.
func (s *Store) Delete(path string) error {
	path, err := ResolvePath(path)
	if err != nil {
		return err
	}
	if path == RootPath {
		return serializationErrf(path, nil, nil, "cannot delete the root")
	}

	loc, err := s.locateParent(path)
	if err != nil {
		return err
	}
	if !isValidSegment(loc.ChildKey) {
		return deserializationErrf(path, nil, nil, "%q is not a valid path segment", loc.ChildKey)
	}
	rec, err := s.read(path)
	if err != nil {
		return err
	}

	declared := loc.Parent.Has(loc.ChildKey)
	if !rec.Present && !declared {
		if s.verbose {
			s.logf("kvtree: DELETE.NOOP %s", path)
		}
		return nil
	}
	if s.verbose {
		s.logf("kvtree: DELETE %s", path)
	}

	if declared && loc.Parent.Type == TypeArray {
		idx, _ := parseIndex(loc.ChildKey)
		if idx < loc.Parent.Length-1 {
			return s.deleteArrayItem(loc, idx)
		}
	}

	if rec.Present {
		if err := s.clear(path, rec); err != nil {
			return err
		}
	}
	if !declared {
		return nil
	}
	return s.updateManifest(manifestRemove, loc)
}

// deleteArrayItem removes element idx of a non-empty array and shifts the
// elements after it down by one.
func (s *Store) deleteArrayItem(loc location, idx int) error {
	n := loc.Parent.Length
	if err := s.clearPath(loc.Path); err != nil {
		return err
	}
	for j := idx + 1; j < n; j++ {
		src := childPath(loc.ParentPath, strconv.Itoa(j))
		dst := childPath(loc.ParentPath, strconv.Itoa(j-1))
		if err := s.move(src, dst); err != nil {
			return err
		}
	}
	return s.updateManifest(manifestRemove, childLocation(loc.ParentPath, strconv.Itoa(n-1)))
}

// move copies the subtree at src to the empty slot dst and clears src.
func (s *Store) move(src, dst string) error {
	if err := s.copySubtree(src, dst); err != nil {
		return err
	}
	return s.clearPath(src)
}

func (s *Store) copySubtree(src, dst string) error {
	rec, err := s.read(src)
	if err != nil {
		return err
	}
	if !rec.Present {
		return nil
	}
	if err := s.write(dst, rec); err != nil {
		return err
	}
	if rec.isContainer() {
		for _, key := range rec.Desc.ChildKeys() {
			if err := s.copySubtree(childPath(src, key), childPath(dst, key)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) clearPath(path string) error {
	rec, err := s.read(path)
	if err != nil {
		return err
	}
	if !rec.Present {
		return nil
	}
	return s.clear(path, rec)
}

// clear tears down the subtree at path, children first, then the record
// itself. The parent's manifest is left alone.
func (s *Store) clear(path string, rec record) error {
	if rec.isContainer() {
		for _, key := range rec.Desc.ChildKeys() {
			if err := s.clearPath(childPath(path, key)); err != nil {
				return err
			}
		}
	}
	return s.remove(path)
}
