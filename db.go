package kvtree

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	metadataKey = "kvtree_metadata"
)

var currentVersion = []int{1, 0, 0}

// Store provides hierarchical get/set/delete of primitives, objects and
// arrays on top of a flat Backend.
type Store struct {
	backend  Backend
	enc      Encoding
	logf     func(format string, args ...any)
	verbose  bool
	onChange func(chg *Change)
	meta     Metadata

	ReadCount   atomic.Uint64
	WriteCount  atomic.Uint64
	DeleteCount atomic.Uint64

	views     []*View
	viewsLock sync.Mutex
}

type Options struct {
	Logf     func(format string, args ...any)
	Verbose  bool
	Encoding Encoding

	// OnChange is called after every backend write, in order.
	OnChange func(chg *Change)

	Now func() time.Time
}

// Metadata is stored once per backend, next to the root.
type Metadata struct {
	Version []int `msgpack:"version" json:"version"`
	Created int64 `msgpack:"created" json:"created"` // unix milliseconds
}

func (m Metadata) CreatedTime() time.Time {
	return time.UnixMilli(m.Created)
}

// Open wraps backend in a Store, creating the metadata record and the root
// container if the backend does not have them yet.
func Open(backend Backend, opt Options) (*Store, error) {
	if backend == nil {
		return nil, errors.New("kvtree: nil backend")
	}
	if f, ok := backend.(Funcs); ok && (f.GetFunc == nil || f.SetFunc == nil) {
		return nil, ErrNoSetFunc
	}
	s := &Store{
		backend:  backend,
		enc:      opt.Encoding,
		logf:     opt.Logf,
		verbose:  opt.Verbose,
		onChange: opt.OnChange,
	}
	if s.logf == nil {
		s.logf = defaultLogf
	}
	now := opt.Now
	if now == nil {
		now = time.Now
	}

	if err := s.loadMetadata(now()); err != nil {
		return nil, err
	}
	if err := s.ensureRoot(); err != nil {
		return nil, err
	}
	return s, nil
}

func defaultLogf(format string, args ...any) {
	slog.Debug(fmt.Sprintf(format, args...))
}

func (s *Store) Backend() Backend {
	return s.backend
}

func (s *Store) Encoding() Encoding {
	return s.enc
}

func (s *Store) Metadata() Metadata {
	return s.meta
}

func (s *Store) loadMetadata(now time.Time) error {
	raw, err := s.backend.Get(metadataKey)
	if err != nil {
		return fmt.Errorf("kvtree: reading metadata: %w", err)
	}
	if len(raw) > 0 {
		if err := s.enc.decodeMetadata(raw, &s.meta); err != nil {
			return dataErrf(raw, 0, err, "kvtree: decoding metadata")
		}
		return nil
	}

	s.meta = Metadata{
		Version: slices.Clone(currentVersion),
		Created: now.UnixMilli(),
	}
	raw, err = s.enc.encodeMetadata(s.meta)
	if err != nil {
		return err
	}
	if err := s.backend.Set(metadataKey, raw); err != nil {
		return fmt.Errorf("kvtree: writing metadata: %w", err)
	}
	if s.verbose {
		s.logf("kvtree: METADATA created v%v at %d", s.meta.Version, s.meta.Created)
	}
	return nil
}

func (enc Encoding) encodeMetadata(m Metadata) ([]byte, error) {
	if enc == JSON {
		return json.Marshal(m)
	}
	return msgpack.Marshal(&m)
}

func (enc Encoding) decodeMetadata(raw []byte, m *Metadata) error {
	if enc == JSON {
		return json.Unmarshal(raw, m)
	}
	return msgpack.Unmarshal(raw, m)
}

func (s *Store) ensureRoot() error {
	rec, err := s.read(RootPath)
	if err != nil {
		return err
	}
	if rec.Present {
		if !rec.isContainer() || rec.Desc.Type != TypeObject {
			return deserializationErrf(RootPath, rec.Value, nil, "root is not an object container")
		}
		return nil
	}
	root := newObjectDescriptor()
	root.Root = true
	return s.write(RootPath, containerRecord(root))
}

// read fetches and decodes the record at a resolved path.
func (s *Store) read(path string) (record, error) {
	raw, err := s.backend.Get(path)
	s.ReadCount.Add(1)
	if err != nil {
		return record{}, fmt.Errorf("kvtree: get %s: %w", path, err)
	}
	rec, err := s.enc.DecodeRecord(raw)
	if err != nil {
		return record{}, deserializationErrf(path, nil, err, "decoding record")
	}
	return rec, nil
}

func (s *Store) write(path string, rec record) error {
	raw, err := s.enc.EncodeRecord(nil, rec)
	if err != nil {
		return serializationErrf(path, rec.Value, err, "encoding record")
	}
	if err := s.backend.Set(path, raw); err != nil {
		return fmt.Errorf("kvtree: set %s: %w", path, err)
	}
	s.WriteCount.Add(1)
	if s.verbose {
		if rec.isContainer() {
			s.logf("kvtree: PUT %s => %v", path, rec.Desc)
		} else {
			s.logf("kvtree: PUT %s => %s", path, loggableVal(rec.Value))
		}
	}
	s.notify(OpSet, path, rec, raw)
	return nil
}

func (s *Store) remove(path string) error {
	if err := s.backend.Delete(path); err != nil {
		return fmt.Errorf("kvtree: delete %s: %w", path, err)
	}
	s.DeleteCount.Add(1)
	if s.verbose {
		s.logf("kvtree: DEL %s", path)
	}
	s.notify(OpDelete, path, record{}, nil)
	return nil
}

func (s *Store) notify(op Op, path string, rec record, raw []byte) {
	if s.onChange != nil {
		s.onChange(&Change{op: op, path: path, value: rec, raw: raw})
	}
}

func (s *Store) addView(v *View) {
	s.viewsLock.Lock()
	defer s.viewsLock.Unlock()
	s.views = append(s.views, v)
}

// RemoveView deactivates v and forgets it. It never touches backend data.
// Removing a view twice is harmless.
func (s *Store) RemoveView(v *View) {
	if v == nil {
		return
	}
	v.active = false

	s.viewsLock.Lock()
	defer s.viewsLock.Unlock()

	found := slices.Index(s.views, v)
	if found < 0 {
		return
	}
	n := len(s.views)
	s.views[found] = s.views[n-1]
	s.views[n-1] = nil // ensure it gets collected
	s.views = s.views[:n-1]
}

// Views returns the views handed out and not yet removed.
func (s *Store) Views() []*View {
	s.viewsLock.Lock()
	defer s.viewsLock.Unlock()
	return slices.Clone(s.views)
}

// RemoveAllViews deactivates every outstanding view.
func (s *Store) RemoveAllViews() {
	for _, v := range s.Views() {
		s.RemoveView(v)
	}
}

func (s *Store) DescribeViews() string {
	views := s.Views()
	if len(views) == 0 {
		return "NO OPEN VIEWS"
	}
	slices.SortFunc(views, func(a, b *View) int {
		return strings.Compare(a.path, b.path)
	})

	var buf strings.Builder
	fmt.Fprintf(&buf, "%d OPEN VIEWS:\n", len(views))
	for _, v := range views {
		fmt.Fprintf(&buf, "%s (%s)\n", v.path, v.typ)
	}
	return buf.String()
}
