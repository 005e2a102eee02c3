package journal

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestJournal(t testing.TB, dir string, o Options) (*Journal, *testClock) {
	clock := &testClock{start}
	o.FileName = "j*.wal"
	o.Now = clock.Now
	o.Logger = slog.Default()
	o.Verbose = true
	return New(dir, o), clock
}

func TestJournal_trivial(t *testing.T) {
	dir := t.TempDir()
	j, clock := newTestJournal(t, dir, Options{})
	ensure(j.StartWriting())
	ensure(j.WriteRecord(0, []byte("hello")))
	ensure(j.WriteRecord(0, []byte("w")))
	clock.Advance(1000 * time.Second)
	ensure(j.WriteRecord(0, []byte("orld")))
	ensure(j.WriteRecord(0, nil))
	ensure(j.Commit())
	ensure(j.FinishWriting())

	deepEq(t, must(j.SegmentNames()), []string{"j000000000001-20240101T000000-0000000000000001.wal"})

	ts := uint32(start.Unix())
	deepEq(t, readAll(t, j), []Record{
		{1, ts, []byte("hello")},
		{2, ts, []byte("w")},
		{3, ts + 1000, []byte("orld")},
	})
}

func TestJournal_notWritable(t *testing.T) {
	j, _ := newTestJournal(t, t.TempDir(), Options{})
	if err := j.WriteRecord(0, []byte("x")); err != ErrNotWritable {
		t.Errorf("** WriteRecord before StartWriting = %v, wanted ErrNotWritable", err)
	}
	ensure(j.StartWriting())
	ensure(j.FinishWriting())
	if err := j.WriteRecord(0, []byte("x")); err != ErrNotWritable {
		t.Errorf("** WriteRecord after FinishWriting = %v, wanted ErrNotWritable", err)
	}
	deepEq(t, must(j.SegmentNames()), []string(nil))
}

func TestJournal_uncommittedTail(t *testing.T) {
	dir := t.TempDir()
	j, _ := newTestJournal(t, dir, Options{})
	ensure(j.StartWriting())
	ensure(j.WriteRecord(0, []byte("a")))
	ensure(j.Commit())
	ensure(j.WriteRecord(0, []byte("b")))
	ensure(j.Commit())
	ensure(j.FinishWriting())

	name := must(j.SegmentNames())[0]
	f := must(os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_WRONLY, 0))
	must(f.Write(appendRecordHeader(nil, 3, 0)))
	must(f.Write([]byte("xyz")))
	ensure(f.Close())

	ts := uint32(start.Unix())
	deepEq(t, readAll(t, j), []Record{{1, ts, []byte("a")}, {2, ts, []byte("b")}})

	// a restarted journal continues after the last committed record
	j2, _ := newTestJournal(t, dir, Options{})
	ensure(j2.StartWriting())
	ensure(j2.WriteRecord(0, []byte("c")))
	ensure(j2.FinishWriting())

	deepEq(t, len(must(j2.SegmentNames())), 2)
	deepEq(t, readAll(t, j2), []Record{{1, ts, []byte("a")}, {2, ts, []byte("b")}, {3, ts, []byte("c")}})
}

func TestJournal_badCommitChecksum(t *testing.T) {
	dir := t.TempDir()
	j, _ := newTestJournal(t, dir, Options{})
	ensure(j.StartWriting())
	ensure(j.WriteRecord(0, []byte("a")))
	ensure(j.Commit())
	ensure(j.WriteRecord(0, []byte("b")))
	ensure(j.FinishWriting())

	fn := filepath.Join(dir, must(j.SegmentNames())[0])
	data := must(os.ReadFile(fn))
	data[len(data)-1] ^= 0xFF
	ensure(os.WriteFile(fn, data, 0o666))

	deepEq(t, readAll(t, j), []Record{{1, uint32(start.Unix()), []byte("a")}})
}

func TestJournal_rotation(t *testing.T) {
	dir := t.TempDir()
	j, _ := newTestJournal(t, dir, Options{MaxFileSize: 100})
	ensure(j.StartWriting())
	for _, s := range []string{"one", "two", "three"} {
		ensure(j.WriteRecord(0, make([]byte, 40)))
		ensure(j.WriteRecord(0, []byte(s)))
		ensure(j.Commit())
	}
	ensure(j.FinishWriting())

	deepEq(t, must(j.SegmentNames()), []string{
		"j000000000001-20240101T000000-0000000000000001.wal",
		"j000000000002-20240101T000000-0000000000000003.wal",
		"j000000000003-20240101T000000-0000000000000005.wal",
	})
	recs := readAll(t, j)
	deepEq(t, len(recs), 6)
	deepEq(t, string(recs[5].Data), "three")
	deepEq(t, recs[5].ID, uint64(6))
}

func TestJournal_corruptedLastSegment(t *testing.T) {
	dir := t.TempDir()
	j, _ := newTestJournal(t, dir, Options{})
	ensure(j.StartWriting())
	ensure(j.WriteRecord(0, []byte("a")))
	ensure(j.FinishWriting())

	bad := "j000000000002-20240101T000000-0000000000000009.wal"
	ensure(os.WriteFile(filepath.Join(dir, bad), []byte("garbage"), 0o666))

	err := j.Read(func(Record) error { return nil })
	if !errors.Is(err, ErrCorrupted) {
		t.Errorf("** Read = %v, wanted ErrCorrupted", err)
	}

	j2, _ := newTestJournal(t, dir, Options{})
	ensure(j2.StartWriting())
	ensure(j2.WriteRecord(0, []byte("b")))
	ensure(j2.FinishWriting())

	deepEq(t, must(j2.SegmentNames()), []string{
		"j000000000001-20240101T000000-0000000000000001.wal",
		"j000000000002-20240101T000000-0000000000000002.wal",
	})
	deepEq(t, len(readAll(t, j2)), 2)
}

func TestJournal_incompatible(t *testing.T) {
	dir := t.TempDir()
	name := "j000000000001-20240101T000000-0000000000000001.wal"
	ensure(os.WriteFile(filepath.Join(dir, name), make([]byte, segmentHeaderSize), 0o666))

	j, _ := newTestJournal(t, dir, Options{})
	err := j.Read(func(Record) error { return nil })
	if !errors.Is(err, ErrIncompatible) {
		t.Errorf("** Read = %v, wanted ErrIncompatible", err)
	}
	if err := j.StartWriting(); !errors.Is(err, ErrIncompatible) {
		t.Errorf("** StartWriting = %v, wanted ErrIncompatible", err)
	}
	deepEq(t, j.Err(), error(ErrIncompatible))
}

func TestJournal_readStopsOnError(t *testing.T) {
	j, _ := newTestJournal(t, t.TempDir(), Options{})
	ensure(j.StartWriting())
	ensure(j.WriteRecord(0, []byte("a")))
	ensure(j.WriteRecord(0, []byte("b")))
	ensure(j.FinishWriting())

	stop := errors.New("stop")
	var seen int
	err := j.Read(func(Record) error {
		seen++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Errorf("** Read = %v, wanted stop", err)
	}
	deepEq(t, seen, 1)
}

func TestParseName(t *testing.T) {
	seq, ts, id, err := parseSegmentName("123-20230101T000000-11223344aabbccdd")
	if err != nil {
		t.Fatal(err)
	}
	if e := uint32(123); seq != e {
		t.Errorf("seq = %v, expected %v", seq, e)
	}
	if e := uint32(1672531200); ts != e {
		t.Errorf("ts = %v, expected %v", ts, e)
	}
	if e := uint64(0x11223344_aabbccdd); id != e {
		t.Errorf("id = %x, expected %x", id, e)
	}

	for _, bad := range []string{"", "x-20230101T000000-1", "1-bad-1", "1-20230101T000000-zz", "1-20230101T000000"} {
		if _, _, _, err := parseSegmentName(bad); err == nil {
			t.Errorf("parseSegmentName(%q) succeeded", bad)
		}
	}
}

func TestFormatName(t *testing.T) {
	name := formatSegmentName("x", "y", 123, 1672531200, 0x11223344_aabbccdd)
	exp := "x000000000123-20230101T000000-11223344aabbccddy"
	if name != exp {
		t.Errorf("name = %q, expected %q", name, exp)
	}
}

func readAll(t testing.TB, j *Journal) []Record {
	t.Helper()
	var recs []Record
	ensure(j.Read(func(rec Record) error {
		recs = append(recs, rec)
		return nil
	}))
	return recs
}

func deepEq[T any](t testing.TB, a, e T) bool {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
		return false
	}
	return true
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}
