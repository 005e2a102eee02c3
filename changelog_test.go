package kvtree

import (
	"log/slog"
	"testing"
	"time"

	"github.com/andreyvit/kvtree/journal"
)

func TestJournalReplay(t *testing.T) {
	dir := t.TempDir()
	opt := journal.Options{
		FileName: "changes-*.wal",
		Now:      func() time.Time { return testNow },
		Logger:   slog.Default(),
	}

	j := journal.New(dir, opt)
	ok(t, j.StartWriting())
	b := NewMemBackend()
	s := must(Open(b, Options{OnChange: JournalChanges(j)}))
	ok(t, s.Set("doc", sampleDoc))
	ok(t, s.Delete("doc.list.0"))
	ok(t, s.Set("doc.name", "renamed"))
	ok(t, s.Delete("doc.nested"))
	ok(t, j.FinishWriting())

	replayed := NewMemBackend()
	n := must(Replay(journal.New(dir, opt), replayed))
	if n == 0 {
		t.Fatalf("** nothing replayed")
	}
	deepEqual(t, n, int(s.WriteCount.Load()+s.DeleteCount.Load()))

	deepEqual(t, pathRecords(replayed), pathRecords(b))
	s2 := must(Open(replayed, Options{}))
	deepEqual(t, must(s2.Materialize(".")), must(s.Materialize(".")))
	noProblems(t, s2)
}

func TestJournalReplay_emptyDir(t *testing.T) {
	n := must(Replay(journal.New(t.TempDir(), journal.Options{}), NewMemBackend()))
	deepEqual(t, n, 0)
}

// pathRecords snapshots everything but the metadata record.
func pathRecords(b *MemBackend) map[string]string {
	m := snapshot(b)
	delete(m, metadataKey)
	return m
}
