package kvtree

import (
	"fmt"
)

type (
	// Change describes one write the Store made to its backend.
	Change struct {
		op    Op
		path  string
		value record
		raw   []byte
	}

	Op int
)

const (
	OpNone   Op = 0
	OpSet    Op = 1
	OpDelete Op = 2
)

func (chg *Change) Op() Op {
	return chg.op
}
func (chg *Change) Path() string {
	return chg.path
}

// IsContainer reports whether a set wrote a container descriptor.
func (chg *Change) IsContainer() bool {
	return chg.value.isContainer()
}

// Descriptor returns the container descriptor written by a set.
func (chg *Change) Descriptor() (Descriptor, bool) {
	return chg.value.Desc, chg.value.isContainer()
}

// Raw returns the backend value a set wrote, exactly as written.
func (chg *Change) Raw() []byte {
	return chg.raw
}

// Value returns the leaf value written by a set.
func (chg *Change) Value() any {
	return chg.value.Value
}

func (chg *Change) String() string {
	switch {
	case chg.op == OpDelete:
		return fmt.Sprintf("%v %s", chg.op, chg.path)
	case chg.value.isContainer():
		return fmt.Sprintf("%v %s = %v", chg.op, chg.path, chg.value.Desc)
	default:
		return fmt.Sprintf("%v %s = %s", chg.op, chg.path, loggableVal(chg.value.Value))
	}
}

func (v Op) String() string {
	switch v {
	case OpNone:
		return "none"
	case OpSet:
		return "set"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("invalid op %d", int(v))
	}
}
