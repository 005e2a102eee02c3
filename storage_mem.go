package kvtree

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
)

// MemBackend is a transient in-memory Backend, mostly useful for tests. It
// keeps items sorted by key so it can serve prefix scans.
type MemBackend struct {
	mu     sync.Mutex
	items  []memKV // sorted by key
	closed bool
}

type memKV struct {
	key   string
	value []byte
}

var (
	_ Backend = (*MemBackend)(nil)
	_ Scanner = (*MemBackend)(nil)
)

func NewMemBackend() *MemBackend {
	return &MemBackend{}
}

func (b *MemBackend) Get(key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("storage closed")
	}
	i, ok := b.find(key)
	if !ok {
		return nil, nil
	}
	return slices.Clone(b.items[i].value), nil
}

func (b *MemBackend) Set(key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("storage closed")
	}
	value = slices.Clone(value)

	i, ok := b.find(key)
	if ok {
		b.items[i].value = value
		return nil
	}
	b.items = slices.Insert(b.items, i, memKV{key: key, value: value})
	return nil
}

func (b *MemBackend) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("storage closed")
	}
	i, ok := b.find(key)
	if !ok {
		return nil
	}
	b.items = slices.Delete(b.items, i, i+1)
	return nil
}

func (b *MemBackend) Keys(prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("storage closed")
	}
	i, _ := b.find(prefix)
	var keys []string
	for ; i < len(b.items) && strings.HasPrefix(b.items[i].key, prefix); i++ {
		keys = append(keys, b.items[i].key)
	}
	return keys, nil
}

// Len returns the number of stored keys.
func (b *MemBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

func (b *MemBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.items = nil
	return nil
}

func (b *MemBackend) find(key string) (idx int, ok bool) {
	items := b.items
	i := sort.Search(len(items), func(i int) bool {
		return items[i].key >= key
	})
	if i < len(items) && items[i].key == key {
		return i, true
	}
	return i, false
}
