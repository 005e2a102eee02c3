package kvtree

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

type BadgerOptions struct {
	// Dir is the directory for BadgerDB data files. Required unless InMemory.
	Dir string

	// InMemory runs BadgerDB without disk persistence.
	InMemory bool

	// Logf receives badger warnings and errors. Debug and info output is
	// dropped. Nil means silence.
	Logf func(format string, args ...any)
}

// BadgerBackend stores records in BadgerDB, one key per record. Every Set and
// Delete is its own transaction.
type BadgerBackend struct {
	db *badger.DB
}

var (
	_ Backend = (*BadgerBackend)(nil)
	_ Scanner = (*BadgerBackend)(nil)
)

func OpenBadger(opt BadgerOptions) (*BadgerBackend, error) {
	if !opt.InMemory && opt.Dir == "" {
		return nil, errors.New("kvtree: BadgerOptions.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opt.Dir)
	if opt.InMemory {
		dbOpts = dbOpts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	dbOpts = dbOpts.WithLogger(badgerLogger{opt.Logf})
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("kvtree: %w", err)
	}
	return &BadgerBackend{db: db}, nil
}

func (b *BadgerBackend) Badger() *badger.DB {
	return b.db
}

func (b *BadgerBackend) Get(key string) ([]byte, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	return val, err
}

func (b *BadgerBackend) Set(key string, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (b *BadgerBackend) Delete(key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (b *BadgerBackend) Keys(prefix string) ([]string, error) {
	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.PrefetchValues = false
		iterOpts.Prefix = []byte(prefix)
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(iterOpts.Prefix); it.ValidForPrefix(iterOpts.Prefix); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, err
}

func (b *BadgerBackend) Close() error {
	return b.db.Close()
}

// badgerLogger routes badger's warnings and errors to a Logf function.
type badgerLogger struct {
	logf func(format string, args ...any)
}

func (l badgerLogger) Errorf(f string, v ...any) {
	if l.logf != nil {
		l.logf("badger: ERROR: "+f, v...)
	}
}

func (l badgerLogger) Warningf(f string, v ...any) {
	if l.logf != nil {
		l.logf("badger: WARN: "+f, v...)
	}
}

func (badgerLogger) Infof(string, ...any)  {}
func (badgerLogger) Debugf(string, ...any) {}
