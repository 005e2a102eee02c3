package kvtree

import (
	"fmt"
	"strings"
)

// DataError reports a backend record whose bytes cannot be decoded.
type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x", e.Msg, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s: (%d) %x", e.Msg, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x...%x", e.Msg, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s: (%d) %x...%x", e.Msg, n, p, s)
		}
	}
}

// SerializationError is returned when a value cannot be committed to the
// backend: unsupported values, non-primitive writes through a View, escaped
// separators in paths, and attempts to replace or delete the root.
type SerializationError struct {
	Path  string
	Value any
	Msg   string
	Err   error
}

func serializationErrf(path string, value any, err error, format string, args ...any) error {
	return &SerializationError{path, value, fmt.Sprintf(format, args...), err}
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

func (e *SerializationError) Error() string {
	return formatPathError("serialization", e.Path, e.Value, e.Msg, e.Err)
}

// DeserializationError is returned when a path cannot be resolved against the
// existing backend state: the parent container is missing or malformed, an
// array index is out of range, or a View key is not a valid path segment.
type DeserializationError struct {
	Path  string
	Value any
	Msg   string
	Err   error
}

func deserializationErrf(path string, value any, err error, format string, args ...any) error {
	return &DeserializationError{path, value, fmt.Sprintf(format, args...), err}
}

func (e *DeserializationError) Unwrap() error {
	return e.Err
}

func (e *DeserializationError) Error() string {
	return formatPathError("deserialization", e.Path, e.Value, e.Msg, e.Err)
}

func formatPathError(kind, path string, value any, msg string, err error) string {
	var buf strings.Builder
	buf.WriteString("kvtree: ")
	buf.WriteString(kind)
	if path != "" {
		buf.WriteByte(' ')
		buf.WriteString(path)
	}
	if msg != "" {
		buf.WriteString(": ")
		buf.WriteString(msg)
	}
	if value != nil {
		fmt.Fprintf(&buf, " (%T)", value)
	}
	if err != nil {
		buf.WriteString(": ")
		buf.WriteString(err.Error())
	}
	return buf.String()
}
