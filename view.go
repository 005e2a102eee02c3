package kvtree

import (
	"strconv"
)

// View is a lazy handle over a container path. It owns no data; every
// access goes to the backend through its Store. Chained navigation like
// root.Get("a") → view.Get("b") never materializes the intermediate levels.
//
// A View stays usable until Store.RemoveView is called on it. After that,
// reads return nil and writes report false, without an error.
type View struct {
	store  *Store
	path   string
	typ    ContainerType
	active bool
}

func (s *Store) newView(path string, typ ContainerType) *View {
	v := &View{
		store:  s,
		path:   path,
		typ:    typ,
		active: true,
	}
	s.addView(v)
	return v
}

func (v *View) Path() string {
	return v.path
}

func (v *View) Type() ContainerType {
	return v.typ
}

func (v *View) Active() bool {
	return v.active
}

func (v *View) Store() *Store {
	return v.store
}

func (v *View) String() string {
	if !v.active {
		return "View(" + v.path + ", " + string(v.typ) + ", removed)"
	}
	return "View(" + v.path + ", " + string(v.typ) + ")"
}

// Get reads the child named key: a primitive, or a nested *View.
func (v *View) Get(key string) (any, error) {
	if !v.active {
		return nil, nil
	}
	if !isValidSegment(key) {
		return nil, deserializationErrf(v.path, key, nil, "property %q is not a valid path segment", key)
	}
	return v.store.Get(childPath(v.path, key))
}

// Index reads element i; it is Get(strconv.Itoa(i)).
func (v *View) Index(i int) (any, error) {
	if i < 0 {
		if !v.active {
			return nil, nil
		}
		return nil, deserializationErrf(v.path, i, nil, "negative index %d", i)
	}
	return v.Get(strconv.Itoa(i))
}

// Child returns the child named key if it is a container, or nil otherwise.
func (v *View) Child(key string) (*View, error) {
	child, err := v.Get(key)
	if err != nil {
		return nil, err
	}
	cv, _ := child.(*View)
	return cv, nil
}

// Set assigns a primitive to the child named key. Only leaves can be
// assigned through a View; nested structures go through Store.Set. Set
// returns false if the view has been removed.
func (v *View) Set(key string, value any) (bool, error) {
	if !v.active {
		return false, nil
	}
	if Classify(value) != KindPrimitive {
		return false, serializationErrf(childPath(v.path, key), value, nil, "type of value is not a primitive type")
	}
	if !isValidSegment(key) {
		return false, deserializationErrf(v.path, key, nil, "property %q is not a valid path segment", key)
	}
	if err := v.store.Set(childPath(v.path, key), value); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes the child named key. It returns false if the view has been
// removed.
func (v *View) Delete(key string) (bool, error) {
	if !v.active {
		return false, nil
	}
	if !isValidSegment(key) {
		return false, deserializationErrf(v.path, key, nil, "property %q is not a valid path segment", key)
	}
	if err := v.store.Delete(childPath(v.path, key)); err != nil {
		return false, err
	}
	return true, nil
}

// Len returns the number of children the container currently declares.
func (v *View) Len() (int, error) {
	d, err := v.descriptor()
	if err != nil {
		return 0, err
	}
	return d.Len(), nil
}

// Keys returns the child segments in manifest order.
func (v *View) Keys() ([]string, error) {
	d, err := v.descriptor()
	if err != nil {
		return nil, err
	}
	return d.ChildKeys(), nil
}

// Materialize reads the whole subtree under the view.
func (v *View) Materialize() (any, error) {
	if !v.active {
		return nil, nil
	}
	return v.store.Materialize(v.path)
}

// descriptor reads the current descriptor of the bound path. A removed view
// reports an empty descriptor.
func (v *View) descriptor() (Descriptor, error) {
	if !v.active {
		return Descriptor{}, nil
	}
	d, found, err := v.store.readDescriptor(v.path)
	if err != nil {
		return Descriptor{}, err
	}
	if !found {
		return Descriptor{}, deserializationErrf(v.path, nil, nil, "no longer a container")
	}
	return d, nil
}
