package kvtree

import "errors"

// ErrNoSetFunc is returned by Open when a Funcs backend has no SetFunc.
var ErrNoSetFunc = errors.New("kvtree: Funcs.SetFunc is required")

// Backend is the flat persistence layer a Store is built on. Each call must
// be committed and visible by the time it returns.
type Backend interface {
	// Get returns the value stored under key, or nil if there is none.
	Get(key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}

// Scanner is implemented by backends that can enumerate their keys. The
// consistency checker, Dump and Stats need it.
type Scanner interface {
	// Keys returns all keys starting with prefix, in lexicographic order.
	Keys(prefix string) ([]string, error)
}

// Funcs adapts three plain functions into a Backend. If DeleteFunc is nil,
// Delete stores an empty value, which reads back as absent.
type Funcs struct {
	GetFunc    func(key string) ([]byte, error)
	SetFunc    func(key string, value []byte) error
	DeleteFunc func(key string) error
}

var _ Backend = Funcs{}

func (f Funcs) Get(key string) ([]byte, error) {
	return f.GetFunc(key)
}

func (f Funcs) Set(key string, value []byte) error {
	return f.SetFunc(key, value)
}

func (f Funcs) Delete(key string) error {
	if f.DeleteFunc == nil {
		return f.SetFunc(key, nil)
	}
	return f.DeleteFunc(key)
}
