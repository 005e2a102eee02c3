package kvtree

import (
	"path/filepath"
	"testing"

	"go.etcd.io/bbolt"
)

func TestBackends(t *testing.T) {
	backends := map[string]func(t *testing.T) Backend{
		"mem": func(t *testing.T) Backend {
			return NewMemBackend()
		},
		"bolt": func(t *testing.T) Backend {
			b := must(OpenBolt(filepath.Join(t.TempDir(), "test.db"), BoltOptions{IsTesting: true}))
			t.Cleanup(func() { b.Close() })
			return b
		},
		"badger": func(t *testing.T) Backend {
			b := must(OpenBadger(BadgerOptions{InMemory: true}))
			t.Cleanup(func() { b.Close() })
			return b
		},
		"funcs": func(t *testing.T) Backend {
			m := make(map[string][]byte)
			return Funcs{
				GetFunc: func(key string) ([]byte, error) {
					return m[key], nil
				},
				SetFunc: func(key string, value []byte) error {
					m[key] = value
					return nil
				},
			}
		},
	}
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			t.Run("contract", func(t *testing.T) {
				testBackendContract(t, open(t))
			})
			t.Run("store", func(t *testing.T) {
				s := must(Open(open(t), Options{}))
				ok(t, s.Set("doc", sampleDoc))
				ok(t, s.Delete("doc.list.1"))
				ok(t, s.Set("doc.list.1", "again"))

				want := must(Normalize(sampleDoc)).(Object)
				list := want[1].Value.([]any)
				want[1].Value = append([]any{list[0], "again"}, list[3:]...)
				deepEqual(t, must(s.Materialize("doc")), any(want))
				noProblems(t, s)
			})
		})
	}
}

func testBackendContract(t *testing.T, b Backend) {
	t.Helper()
	deepEqual(t, len(must(b.Get("a"))), 0)

	ok(t, b.Set(".a", []byte("1")))
	ok(t, b.Set(".a.b", []byte("2")))
	ok(t, b.Set(".ab", []byte("3")))
	ok(t, b.Set("other", []byte("4")))
	deepEqual(t, must(b.Get(".a")), []byte("1"))

	ok(t, b.Set(".a", []byte("5")))
	deepEqual(t, must(b.Get(".a")), []byte("5"))

	if sc, isScanner := b.(Scanner); isScanner {
		deepEqual(t, must(sc.Keys(".a")), []string{".a", ".a.b", ".ab"})
		deepEqual(t, must(sc.Keys("")), []string{".a", ".a.b", ".ab", "other"})
	}

	ok(t, b.Delete(".a"))
	deepEqual(t, len(must(b.Get(".a"))), 0)
	ok(t, b.Delete(".a"))
	ok(t, b.Delete("never"))
	deepEqual(t, must(b.Get(".a.b")), []byte("2"))

	if sc, isScanner := b.(Scanner); isScanner {
		deepEqual(t, must(sc.Keys(".a")), []string{".a.b", ".ab"})
	}
}

func TestFuncs_deleteFallsBackToSet(t *testing.T) {
	var sets []string
	f := Funcs{
		GetFunc: func(key string) ([]byte, error) { return nil, nil },
		SetFunc: func(key string, value []byte) error {
			sets = append(sets, key+"="+string(value))
			return nil
		},
	}
	ok(t, f.Delete("x"))
	deepEqual(t, sets, []string{"x="})

	var deleted []string
	f.DeleteFunc = func(key string) error {
		deleted = append(deleted, key)
		return nil
	}
	ok(t, f.Delete("y"))
	deepEqual(t, deleted, []string{"y"})
	deepEqual(t, len(sets), 1)
}

func TestMemBackend(t *testing.T) {
	b := NewMemBackend()
	value := []byte("abc")
	ok(t, b.Set("k", value))
	value[0] = 'X'
	deepEqual(t, must(b.Get("k")), []byte("abc"))

	got := must(b.Get("k"))
	got[0] = 'Y'
	deepEqual(t, must(b.Get("k")), []byte("abc"))
	deepEqual(t, b.Len(), 1)

	ok(t, b.Close())
	if _, err := b.Get("k"); err == nil {
		t.Errorf("** Get after Close succeeded")
	}
	if err := b.Set("k", nil); err == nil {
		t.Errorf("** Set after Close succeeded")
	}
}

func TestBoltBackend_sharedDB(t *testing.T) {
	bdb := must(bbolt.Open(filepath.Join(t.TempDir(), "shared.db"), 0666, nil))
	defer bdb.Close()

	b1 := must(NewBoltBackend(bdb, "one"))
	b2 := must(NewBoltBackend(bdb, "two"))
	if b1.Bolt() != bdb {
		t.Errorf("** Bolt() returned a different DB")
	}

	s1 := must(Open(b1, Options{}))
	s2 := must(Open(b2, Options{}))
	ok(t, s1.Set("a", 1))
	deepEqual(t, must(s2.Has("a")), false)
	if b1.Size() <= 0 {
		t.Errorf("** Size() = %d, wanted > 0", b1.Size())
	}

	ok(t, b1.Close())
	deepEqual(t, must(s1.Get("a")), any(int64(1)))
}

func TestBadgerBackend_persistence(t *testing.T) {
	dir := t.TempDir()
	b := must(OpenBadger(BadgerOptions{Dir: dir}))
	s := must(Open(b, Options{}))
	ok(t, s.Set("a", []any{"x"}))
	ok(t, b.Close())

	b = must(OpenBadger(BadgerOptions{Dir: dir}))
	defer b.Close()
	if b.Badger() == nil {
		t.Fatalf("** Badger() = nil")
	}
	s = must(Open(b, Options{}))
	deepEqual(t, must(s.Materialize("a")), any([]any{"x"}))

	if _, err := OpenBadger(BadgerOptions{}); err == nil {
		t.Errorf("** OpenBadger without Dir succeeded")
	}
}
