package kvtree

import (
	"bytes"
	"fmt"
	"slices"
	"time"
	"unsafe"

	"go.etcd.io/bbolt"
)

// DefaultBoltBucket is the bucket BoltBackend uses when none is configured.
const DefaultBoltBucket = "kvtree"

type BoltOptions struct {
	// Bucket holds all records. Defaults to DefaultBoltBucket.
	Bucket string

	// IsTesting trades durability for speed.
	IsTesting bool

	MmapSize int
}

// BoltBackend stores records in a single Bolt bucket. Every Set and Delete
// runs in its own read-write transaction, so it is committed on return.
type BoltBackend struct {
	bdb    *bbolt.DB
	bucket []byte
	owned  bool
}

var (
	_ Backend = (*BoltBackend)(nil)
	_ Scanner = (*BoltBackend)(nil)
)

// OpenBolt opens (creating if needed) a Bolt database file.
func OpenBolt(path string, opt BoltOptions) (*BoltBackend, error) {
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("kvtree: %w", err)
	}
	b, err := NewBoltBackend(bdb, opt.Bucket)
	if err != nil {
		bdb.Close()
		return nil, err
	}
	b.owned = true
	return b, nil
}

// NewBoltBackend uses an already open Bolt database. Close does not close it.
func NewBoltBackend(bdb *bbolt.DB, bucket string) (*BoltBackend, error) {
	if bucket == "" {
		bucket = DefaultBoltBucket
	}
	b := &BoltBackend{bdb: bdb, bucket: []byte(bucket)}
	err := bdb.Update(func(btx *bbolt.Tx) error {
		_, err := btx.CreateBucketIfNotExists(b.bucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("kvtree: creating bucket %q: %w", bucket, err)
	}
	return b, nil
}

func (b *BoltBackend) Bolt() *bbolt.DB {
	return b.bdb
}

func (b *BoltBackend) Get(key string) ([]byte, error) {
	var value []byte
	err := b.bdb.View(func(btx *bbolt.Tx) error {
		// Bolt memory is only valid inside the transaction.
		value = slices.Clone(btx.Bucket(b.bucket).Get(unsafeBytesFromString(key)))
		return nil
	})
	return value, err
}

func (b *BoltBackend) Set(key string, value []byte) error {
	return b.bdb.Update(func(btx *bbolt.Tx) error {
		return btx.Bucket(b.bucket).Put([]byte(key), value)
	})
}

func (b *BoltBackend) Delete(key string) error {
	return b.bdb.Update(func(btx *bbolt.Tx) error {
		return btx.Bucket(b.bucket).Delete(unsafeBytesFromString(key))
	})
}

func (b *BoltBackend) Keys(prefix string) ([]string, error) {
	var keys []string
	err := b.bdb.View(func(btx *bbolt.Tx) error {
		p := unsafeBytesFromString(prefix)
		c := btx.Bucket(b.bucket).Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys, err
}

// Size returns the database size in bytes.
func (b *BoltBackend) Size() int64 {
	var size int64
	b.bdb.View(func(btx *bbolt.Tx) error {
		size = btx.Size()
		return nil
	})
	return size
}

func (b *BoltBackend) Close() error {
	if !b.owned {
		return nil
	}
	return b.bdb.Close()
}

func unsafeBytesFromString(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
