package kvtree

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotScanner is returned by operations that need to enumerate backend
// keys when the backend does not implement Scanner.
var ErrNotScanner = errors.New("kvtree: backend cannot enumerate keys")

type Stats struct {
	Records int
	Objects int
	Arrays  int
	Leaves  int

	// Orphans are records not reachable from the root.
	Orphans int
}

func (st Stats) Containers() int {
	return st.Objects + st.Arrays
}

// Problem is a manifest consistency violation found by Check.
type Problem struct {
	Path string
	Msg  string
}

func (p Problem) String() string {
	return p.Path + ": " + p.Msg
}

// Check verifies that every container's manifest matches the records stored
// under it: every declared child exists, and (when the backend is a Scanner)
// no stored record is unreachable from the root.
func (s *Store) Check() ([]Problem, error) {
	w := walker{s: s, reachable: make(map[string]bool)}
	if err := w.walk(RootPath); err != nil {
		return nil, err
	}

	sc, ok := s.backend.(Scanner)
	if !ok {
		return w.problems, nil
	}
	keys, err := sc.Keys(RootPath)
	if err != nil {
		return nil, fmt.Errorf("kvtree: listing keys: %w", err)
	}
	for _, key := range keys {
		if !w.reachable[key] {
			w.problems = append(w.problems, Problem{key, "orphaned record, not declared by any container"})
		}
	}
	return w.problems, nil
}

// Stats counts records by kind. It needs a Scanner backend.
func (s *Store) Stats() (Stats, error) {
	sc, ok := s.backend.(Scanner)
	if !ok {
		return Stats{}, ErrNotScanner
	}
	w := walker{s: s, reachable: make(map[string]bool)}
	if err := w.walk(RootPath); err != nil {
		return Stats{}, err
	}
	keys, err := sc.Keys(RootPath)
	if err != nil {
		return Stats{}, fmt.Errorf("kvtree: listing keys: %w", err)
	}

	var st Stats
	for _, key := range keys {
		st.Records++
		if !w.reachable[key] {
			st.Orphans++
		}
		rec, err := s.read(key)
		if err != nil {
			return st, err
		}
		switch {
		case rec.Desc.Type == TypeObject:
			st.Objects++
		case rec.Desc.Type == TypeArray:
			st.Arrays++
		default:
			st.Leaves++
		}
	}
	return st, nil
}

type walker struct {
	s         *Store
	reachable map[string]bool
	problems  []Problem
}

func (w *walker) problemf(path, format string, args ...any) {
	w.problems = append(w.problems, Problem{path, fmt.Sprintf(format, args...)})
}

func (w *walker) walk(path string) error {
	w.reachable[path] = true
	rec, err := w.s.read(path)
	if err != nil {
		var de *DeserializationError
		if errors.As(err, &de) {
			w.problemf(path, "undecodable record: %v", de.Err)
			return nil
		}
		return err
	}
	if !rec.Present {
		return nil
	}
	if !rec.isContainer() {
		return nil
	}
	if rec.Desc.Root != (path == RootPath) {
		w.problemf(path, "root flag is %v", rec.Desc.Root)
	}

	seen := make(map[string]bool)
	for _, key := range rec.Desc.ChildKeys() {
		if seen[key] {
			w.problemf(path, "manifest lists %q twice", key)
			continue
		}
		seen[key] = true
		if !isValidSegment(key) {
			w.problemf(path, "manifest lists invalid segment %q", key)
			continue
		}
		child := childPath(path, key)
		raw, err := w.s.backend.Get(child)
		if err != nil {
			return fmt.Errorf("kvtree: get %s: %w", child, err)
		}
		if len(raw) == 0 {
			w.problemf(child, "declared by %s but missing", path)
			continue
		}
		if err := w.walk(child); err != nil {
			return err
		}
	}
	return nil
}

func formatProblems(problems []Problem) string {
	var buf strings.Builder
	for _, p := range problems {
		buf.WriteString(p.String())
		buf.WriteByte('\n')
	}
	return buf.String()
}
