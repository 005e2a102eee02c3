package kvtree

import "strconv"

// Get returns the value stored at path. Leaves come back as normalized
// primitives (nil when nothing was written); containers come back as a new
// *View bound to path.
func (s *Store) Get(path string) (any, error) {
	path, err := ResolvePath(path)
	if err != nil {
		return nil, err
	}
	if path != RootPath {
		loc, err := s.locateParent(path)
		if err != nil {
			return nil, err
		}
		if !isValidSegment(loc.ChildKey) {
			return nil, deserializationErrf(path, nil, nil, "%q is not a valid path segment", loc.ChildKey)
		}
	}

	rec, err := s.read(path)
	if err != nil {
		return nil, err
	}
	if rec.isContainer() {
		if s.verbose {
			s.logf("kvtree: GET %s => %v", path, rec.Desc)
		}
		return s.newView(path, rec.Desc.Type), nil
	}
	if s.verbose {
		if rec.Present {
			s.logf("kvtree: GET %s => %s", path, loggableVal(rec.Value))
		} else {
			s.logf("kvtree: GET.NOTFOUND %s", path)
		}
	}
	return rec.Value, nil
}

// Root returns a view of the root container.
func (s *Store) Root() (*View, error) {
	v, err := s.Get(RootPath)
	if err != nil {
		return nil, err
	}
	view, ok := v.(*View)
	if !ok {
		return nil, deserializationErrf(RootPath, v, nil, "root is not a container")
	}
	return view, nil
}

// Has reports whether any record is stored at path, which tells a stored
// null apart from a missing value.
func (s *Store) Has(path string) (bool, error) {
	path, err := ResolvePath(path)
	if err != nil {
		return false, err
	}
	rec, err := s.read(path)
	if err != nil {
		return false, err
	}
	if s.verbose {
		s.logf("kvtree: EXISTS.%s %s", map[bool]string{false: "NO", true: "YES"}[rec.Present], path)
	}
	return rec.Present, nil
}

// Materialize reads the whole subtree at path into plain values: Object for
// objects, []any for arrays, normalized primitives for leaves.
func (s *Store) Materialize(path string) (any, error) {
	path, err := ResolvePath(path)
	if err != nil {
		return nil, err
	}
	if path != RootPath {
		loc, err := s.locateParent(path)
		if err != nil {
			return nil, err
		}
		if !isValidSegment(loc.ChildKey) {
			return nil, deserializationErrf(path, nil, nil, "%q is not a valid path segment", loc.ChildKey)
		}
	}
	rec, err := s.read(path)
	if err != nil {
		return nil, err
	}
	return s.materialize(path, rec)
}

func (s *Store) materialize(path string, rec record) (any, error) {
	if !rec.isContainer() {
		return rec.Value, nil
	}
	switch rec.Desc.Type {
	case TypeObject:
		obj := make(Object, 0, len(rec.Desc.Keys))
		for _, key := range rec.Desc.Keys {
			v, err := s.materializeChild(path, key)
			if err != nil {
				return nil, err
			}
			obj = append(obj, Field{key, v})
		}
		return obj, nil
	default:
		items := make([]any, 0, rec.Desc.Length)
		for i := range rec.Desc.Length {
			v, err := s.materializeChild(path, strconv.Itoa(i))
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	}
}

func (s *Store) materializeChild(path, key string) (any, error) {
	child := childPath(path, key)
	rec, err := s.read(child)
	if err != nil {
		return nil, err
	}
	return s.materialize(child, rec)
}
