package kvtree

import (
	"fmt"
	"strings"
)

type DumpFlags uint64

const (
	DumpTree = DumpFlags(1 << iota)
	DumpRaw
	DumpStats
	DumpViews
	DumpProblems

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)

	indentStep = "  "
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump renders the store for debugging. DumpRaw, DumpStats and
// DumpProblems list orphans only when the backend is a Scanner.
func (s *Store) Dump(f DumpFlags) string {
	var buf strings.Builder
	_, scannable := s.backend.(Scanner)

	if f.Contains(DumpTree) {
		fmt.Fprintln(&buf, dumpSep1)
		fmt.Fprintf(&buf, "TREE (v%v, %s)\n", s.meta.Version, s.enc)
		fmt.Fprintln(&buf, dumpSep2)
		s.dumpNode(&buf, "", RootPath, RootPath)
	}
	if f.Contains(DumpRaw) && scannable {
		fmt.Fprintln(&buf, dumpSep1)
		fmt.Fprintln(&buf, "RECORDS")
		fmt.Fprintln(&buf, dumpSep2)
		keys, err := s.backend.(Scanner).Keys("")
		if err != nil {
			fmt.Fprintf(&buf, "** ERROR: %v\n", err)
		}
		for _, key := range keys {
			if key == metadataKey {
				fmt.Fprintf(&buf, "%s = %s\n", rpad(key, 30, ' '), loggableVal(s.meta))
				continue
			}
			rec, err := s.read(key)
			if err != nil {
				fmt.Fprintf(&buf, "%s ** ERROR: %v\n", rpad(key, 30, ' '), err)
				continue
			}
			fmt.Fprintf(&buf, "%s = %s\n", rpad(key, 30, ' '), formatRecord(rec))
		}
	}
	if f.Contains(DumpStats) && scannable {
		fmt.Fprintln(&buf, dumpSep1)
		st, err := s.Stats()
		if err != nil {
			fmt.Fprintf(&buf, "stats: ** ERROR: %v\n", err)
		} else {
			fmt.Fprintf(&buf, "stats: records = %d, objects = %d, arrays = %d, leaves = %d, orphans = %d\n", st.Records, st.Objects, st.Arrays, st.Leaves, st.Orphans)
		}
		fmt.Fprintf(&buf, "stats: reads = %d, writes = %d, deletes = %d\n", s.ReadCount.Load(), s.WriteCount.Load(), s.DeleteCount.Load())
	}
	if f.Contains(DumpViews) {
		fmt.Fprintln(&buf, dumpSep1)
		buf.WriteString(s.DescribeViews())
	}
	if f.Contains(DumpProblems) {
		fmt.Fprintln(&buf, dumpSep1)
		problems, err := s.Check()
		switch {
		case err != nil:
			fmt.Fprintf(&buf, "check: ** ERROR: %v\n", err)
		case len(problems) == 0:
			fmt.Fprintln(&buf, "check: OK")
		default:
			buf.WriteString(formatProblems(problems))
		}
	}
	return buf.String()
}

func (s *Store) dumpNode(w *strings.Builder, indent, name, path string) {
	rec, err := s.read(path)
	if err != nil {
		fmt.Fprintf(w, "%s%s ** ERROR: %v\n", indent, name, err)
		return
	}
	if !rec.Present {
		fmt.Fprintf(w, "%s%s ** MISSING\n", indent, name)
		return
	}
	if !rec.isContainer() {
		fmt.Fprintf(w, "%s%s = %s\n", indent, name, loggableVal(rec.Value))
		return
	}
	fmt.Fprintf(w, "%s%s %s\n", indent, name, rec.Desc)
	for _, key := range rec.Desc.ChildKeys() {
		s.dumpNode(w, indent+indentStep, key, childPath(path, key))
	}
}

func formatRecord(rec record) string {
	switch {
	case !rec.Present:
		return "<absent>"
	case rec.isContainer():
		return rec.Desc.String()
	default:
		return loggableVal(rec.Value)
	}
}
