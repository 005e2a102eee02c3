package kvtree

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/andreyvit/kvtree/journal"
)

// changeEntry is how a Change is stored in a journal record. Raw holds the
// backend value exactly as written, in the Store's encoding.
type changeEntry struct {
	_msgpack struct{} `msgpack:",as_array"`
	Op       Op
	Path     string
	Raw      []byte
}

// JournalChanges returns an OnChange hook that appends every change to j and
// commits it. Write errors stop the journal; check them with j.Err or
// j.FinishWriting.
func JournalChanges(j *journal.Journal) func(chg *Change) {
	return func(chg *Change) {
		data := must(msgpack.Marshal(&changeEntry{Op: chg.op, Path: chg.path, Raw: chg.raw}))
		if j.WriteRecord(0, data) == nil {
			j.Commit()
		}
	}
}

// Replay applies every committed change in j to backend, in order, and
// returns the number of changes applied. Records are copied byte for byte,
// so the backend must be opened with the encoding the journal was written in.
func Replay(j *journal.Journal, backend Backend) (int, error) {
	var n int
	err := j.Read(func(rec journal.Record) error {
		var e changeEntry
		if err := msgpack.Unmarshal(rec.Data, &e); err != nil {
			return dataErrf(rec.Data, 0, err, "journal record %d", rec.ID)
		}
		switch e.Op {
		case OpSet:
			if err := backend.Set(e.Path, e.Raw); err != nil {
				return fmt.Errorf("kvtree: replaying set %s: %w", e.Path, err)
			}
		case OpDelete:
			if err := backend.Delete(e.Path); err != nil {
				return fmt.Errorf("kvtree: replaying delete %s: %w", e.Path, err)
			}
		default:
			return dataErrf(rec.Data, 0, nil, "journal record %d has invalid op %v", rec.ID, e.Op)
		}
		n++
		return nil
	})
	return n, err
}
