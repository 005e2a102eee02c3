// Package journal implements append-only segment files of checksummed
// records. kvtree uses it to log every backend write a Store makes, so that a
// backend can be rebuilt by replaying the log.
//
// Records are grouped into commits. A reader only ever sees committed
// records; anything after the last valid commit of a segment (a torn write,
// a crash mid-commit) is dropped.
//
// # File format
//
//   - file = segmentHeader (record* commit)*
//   - segmentHeader = magic:64 version:8 pad:8 flags:16 pad:32 ordinal:32 timestamp:32 firstRecord:64 reserved:64*4 checksum:64
//   - record = (size<<1):uvarint tsDelta:uvarint bytes*
//   - commit = checksum:64, lowest bit set
//
// Every checksum is the xxhash64 of all segment bytes before it. Segment
// files are named prefix + ordinal + timestamp + first record ID + suffix, so
// lexical order is write order.
package journal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

var (
	ErrIncompatible       = errors.New("incompatible journal")
	ErrUnsupportedVersion = errors.New("unsupported journal version")
	ErrCorrupted          = errors.New("corrupted journal segment file")
	ErrNotWritable        = errors.New("journal is not open for writing")
)

type Options struct {
	FileName    string // e.g. "changes-*.wal"
	MaxFileSize int64  // new segment after this size
	DebugName   string
	Now         func() time.Time

	// Sync makes every Commit wait for the data to reach stable storage.
	Sync bool

	Logger  *slog.Logger
	Verbose bool
}

const DefaultMaxFileSize = 4 * 1024 * 1024

const (
	magic          = 0x474f4c4545525456 // "VTREELOG" as little-endian uint64
	version0 uint8 = 0

	segmentHeaderSize = 9 * 8
	maxRecordSize     = 1 << 30
)

type segmentHeader struct {
	Magic          uint64
	Version        uint8
	_              uint8
	Flags          uint16
	_              uint32
	SegmentOrdinal uint32
	Timestamp      uint32
	FirstRecord    uint64
	_              [4]uint64
	Checksum       uint64
}

const (
	recordFlagCommit byte = 1
	recordFlagShift       = 1
	timestampFmt          = "20060102T150405"
)

// Record is one committed journal record.
type Record struct {
	ID        uint64
	Timestamp uint32
	Data      []byte
}

func (r Record) Time() time.Time {
	return time.Unix(int64(r.Timestamp), 0).UTC()
}

// Journal is a directory of segment files.
type Journal struct {
	maxFileSize    int64
	fileNamePrefix string
	fileNameSuffix string
	debugName      string
	dir            string
	now            func() time.Time
	logger         *slog.Logger
	sync           bool
	verbose        bool

	writeLock sync.Mutex
	writable  bool
	writeErr  error
	writeSeg  uint32
	writeRec  uint64
	segWriter *segmentWriter
}

func New(dir string, o Options) *Journal {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.FileName == "" {
		o.FileName = "*"
	}
	prefix, suffix, _ := strings.Cut(o.FileName, "*")
	if o.DebugName == "" {
		o.DebugName = "journal"
	}
	if o.MaxFileSize == 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return &Journal{
		maxFileSize:    o.MaxFileSize,
		fileNamePrefix: prefix,
		fileNameSuffix: suffix,
		debugName:      o.DebugName,
		dir:            dir,
		now:            o.Now,
		logger:         o.Logger,
		sync:           o.Sync,
		verbose:        o.Verbose,
	}
}

// Now returns the current time as a record timestamp.
func (j *Journal) Now() uint32 {
	v := j.now().Unix()
	if v < 0 {
		panic("time travel disallowed")
	}
	u := uint64(v)
	if u&0xFFFF_FFFF_0000_0000 != 0 {
		panic("time travel disallowed both ways")
	}
	return uint32(u)
}

func (j *Journal) String() string {
	return j.debugName
}

func (j *Journal) Dir() string {
	return j.dir
}

// StartWriting prepares the journal for appending. The directory is created
// if needed. Writes always go to a fresh segment following the last existing
// one; a last segment with a corrupted header is deleted.
func (j *Journal) StartWriting() error {
	j.writeLock.Lock()
	defer j.writeLock.Unlock()
	if j.writeErr != nil {
		return j.writeErr
	}
	if j.writable {
		return nil
	}
	return j.fail(j.prepareToWrite_locked())
}

func (j *Journal) prepareToWrite_locked() error {
	if err := os.MkdirAll(j.dir, 0o777); err != nil {
		return err
	}

	names, err := j.SegmentNames()
	if err != nil {
		return err
	}
	for len(names) > 0 {
		lastName := names[len(names)-1]
		seq, _, _, err := j.parseFileName(lastName)
		if err != nil {
			return err
		}

		var committed int
		h, err := j.readSegment(lastName, seq, func(Record) error {
			committed++
			return nil
		})
		if err == ErrCorrupted {
			j.logger.Warn("journal: deleting corrupted file", "jrnl", j.debugName, "file", lastName)
			if err := os.Remove(filepath.Join(j.dir, lastName)); err != nil {
				return fmt.Errorf("journal: failed to delete corrupted file: %w", err)
			}
			names = names[:len(names)-1]
			continue
		} else if err != nil {
			return err
		}
		j.writeSeg = h.SegmentOrdinal
		j.writeRec = h.FirstRecord + uint64(committed) - 1
		break
	}
	j.writable = true
	return nil
}

// FinishWriting commits pending records and closes the current segment. It
// returns the first write error the journal ran into, if any.
func (j *Journal) FinishWriting() error {
	j.writeLock.Lock()
	defer j.writeLock.Unlock()
	if j.segWriter != nil && j.writeErr == nil {
		j.fail(j.segWriter.commit(j.sync))
	}
	j.finishWriting_locked()
	return j.writeErr
}

func (j *Journal) finishWriting_locked() {
	j.writable = false
	if j.segWriter != nil {
		j.segWriter.close()
		j.segWriter = nil
	}
}

// Err returns the error that stopped the journal from writing.
func (j *Journal) Err() error {
	j.writeLock.Lock()
	defer j.writeLock.Unlock()
	return j.writeErr
}

func (j *Journal) fail(err error) error {
	if err == nil {
		return nil
	}

	j.logger.Error("journal: failed", "jrnl", j.debugName, "err", err)

	j.finishWriting_locked()

	if j.writeErr == nil {
		j.writeErr = err
	}
	return err
}

func (j *Journal) openFile(name string, writable bool) (*os.File, error) {
	fn := filepath.Join(j.dir, name)
	if writable {
		return os.OpenFile(fn, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
	} else {
		return os.Open(fn)
	}
}

// SegmentNames lists segment file names in write order. A missing directory
// has no segments.
func (j *Journal) SegmentNames() ([]string, error) {
	ents, err := os.ReadDir(j.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var names []string
	for _, ent := range ents {
		if !ent.Type().IsRegular() {
			continue
		}
		name := ent.Name()
		if !strings.HasPrefix(name, j.fileNamePrefix) || !strings.HasSuffix(name, j.fileNameSuffix) {
			continue
		}
		if len(name) <= len(j.fileNamePrefix)+len(j.fileNameSuffix) {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// WriteRecord appends a record to the current commit. A zero timestamp means
// now.
func (j *Journal) WriteRecord(timestamp uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	j.writeLock.Lock()
	defer j.writeLock.Unlock()

	if j.writeErr != nil {
		return j.writeErr
	}
	if !j.writable {
		return ErrNotWritable
	}

	if timestamp == 0 {
		timestamp = j.Now()
	}

	if j.segWriter != nil && !j.segWriter.uncommitted && j.segWriter.size >= j.maxFileSize {
		j.segWriter.close()
		j.segWriter = nil
	}

	j.writeRec++

	if j.segWriter == nil {
		j.writeSeg++

		sw, err := startSegment(j, j.writeSeg, timestamp, j.writeRec)
		if err != nil {
			return j.fail(err)
		}
		j.segWriter = sw
	}

	if j.verbose {
		j.logger.Debug("journal: record", "jrnl", j.debugName, "id", j.writeRec, "size", len(data))
	}
	return j.fail(j.segWriter.writeRecord(timestamp, data))
}

// Commit makes every record written so far visible to readers.
func (j *Journal) Commit() error {
	j.writeLock.Lock()
	defer j.writeLock.Unlock()
	if j.writeErr != nil {
		return j.writeErr
	}
	if j.segWriter == nil {
		return nil
	}
	return j.fail(j.segWriter.commit(j.sync))
}

// Read calls fn for every committed record in write order and stops at the
// first error fn returns.
func (j *Journal) Read(fn func(rec Record) error) error {
	names, err := j.SegmentNames()
	if err != nil {
		return err
	}
	for _, name := range names {
		seq, _, _, err := j.parseFileName(name)
		if err != nil {
			return err
		}
		if _, err := j.readSegment(name, seq, fn); err != nil {
			return fmt.Errorf("%v: %s: %w", j.debugName, name, err)
		}
	}
	return nil
}

func (j *Journal) readSegment(name string, expectedSeq uint32, fn func(rec Record) error) (segmentHeader, error) {
	var h segmentHeader
	f, err := j.openFile(name, false)
	if err != nil {
		return h, err
	}
	defer f.Close()

	sr := &segmentReader{r: bufio.NewReader(f)}
	sr.hash.Reset()
	if err := sr.readHeader(&h, expectedSeq); err != nil {
		return h, err
	}

	ts := h.Timestamp
	id := h.FirstRecord
	var pending []Record
	for {
		b, err := sr.r.Peek(1)
		if err == io.EOF {
			break
		} else if err != nil {
			return h, err
		}

		if b[0]&recordFlagCommit != 0 {
			if !sr.readCommit() {
				break
			}
			for _, rec := range pending {
				if err := fn(rec); err != nil {
					return h, err
				}
			}
			pending = pending[:0]
			continue
		}

		data, tsDelta, ok := sr.readRecord()
		if !ok {
			break
		}
		ts += tsDelta
		pending = append(pending, Record{ID: id, Timestamp: ts, Data: data})
		id++
	}

	if len(pending) > 0 || sr.r.Buffered() > 0 {
		j.logger.Warn("journal: ignoring uncommitted tail", "jrnl", j.debugName, "file", name, "records", len(pending))
	}
	return h, nil
}

type segmentReader struct {
	r    *bufio.Reader
	hash xxhash.Digest
}

func (sr *segmentReader) ReadByte() (byte, error) {
	b, err := sr.r.ReadByte()
	if err == nil {
		sr.hash.Write([]byte{b})
	}
	return b, err
}

func (sr *segmentReader) readHeader(h *segmentHeader, expectedSeq uint32) error {
	var buf [segmentHeaderSize]byte
	_, err := io.ReadFull(sr.r, buf[:])
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return ErrCorrupted
	} else if err != nil {
		return err
	}
	n, err := binary.Decode(buf[:], binary.LittleEndian, h)
	if err != nil {
		panic(err)
	}
	if n != len(buf) {
		panic("internal size mismatch")
	}

	if h.Magic != magic {
		return ErrIncompatible
	}
	checksum := xxhash.Sum64(buf[:segmentHeaderSize-8])
	if checksum != h.Checksum {
		return ErrCorrupted
	}
	if expectedSeq != h.SegmentOrdinal {
		return ErrCorrupted
	}
	if h.Version > version0 {
		return ErrUnsupportedVersion
	}
	sr.hash.Write(buf[:])
	return nil
}

func (sr *segmentReader) readCommit() bool {
	var buf, expected [8]byte
	if _, err := io.ReadFull(sr.r, buf[:]); err != nil {
		return false
	}
	binary.LittleEndian.PutUint64(expected[:], sr.hash.Sum64())
	expected[0] |= recordFlagCommit
	if buf != expected {
		return false
	}
	sr.hash.Write(buf[:])
	return true
}

func (sr *segmentReader) readRecord() (data []byte, tsDelta uint32, ok bool) {
	sizeAndFlags, err := binary.ReadUvarint(sr)
	if err != nil {
		return nil, 0, false
	}
	size := sizeAndFlags >> recordFlagShift
	if size > maxRecordSize {
		return nil, 0, false
	}
	delta, err := binary.ReadUvarint(sr)
	if err != nil || delta > 0xFFFF_FFFF {
		return nil, 0, false
	}
	data = make([]byte, size)
	if _, err := io.ReadFull(sr.r, data); err != nil {
		return nil, 0, false
	}
	sr.hash.Write(data)
	return data, uint32(delta), true
}

type segmentWriter struct {
	f           *os.File
	seg         uint32
	ts          uint32
	size        int64
	hash        xxhash.Digest
	uncommitted bool
}

func startSegment(j *Journal, seg, ts uint32, rec uint64) (*segmentWriter, error) {
	name := formatSegmentName(j.fileNamePrefix, j.fileNameSuffix, seg, ts, rec)

	f, err := j.openFile(name, true)
	if err != nil {
		return nil, err
	}

	var ok bool
	defer closeAndDeleteUnlessOK(f, &ok)

	sw := &segmentWriter{
		f:    f,
		seg:  seg,
		ts:   ts,
		size: segmentHeaderSize,
	}
	sw.hash.Reset()

	var hbuf [segmentHeaderSize]byte
	fillSegmentHeader(hbuf[:], seg, ts, rec, &sw.hash)

	_, err = f.Write(hbuf[:])
	if err != nil {
		return nil, err
	}

	if j.verbose {
		j.logger.Debug("journal: new segment", "jrnl", j.debugName, "file", name)
	}
	ok = true
	return sw, nil
}

const maxRecHeaderLen = binary.MaxVarintLen64 + binary.MaxVarintLen32

func (sw *segmentWriter) writeRecord(ts uint32, data []byte) error {
	var tsDelta uint32
	if ts > sw.ts {
		tsDelta = ts - sw.ts
		sw.ts = ts
	}
	sw.uncommitted = true

	var hbuf [maxRecHeaderLen]byte
	h := appendRecordHeader(hbuf[:0], len(data), tsDelta)

	sw.hash.Write(h)
	if _, err := sw.f.Write(h); err != nil {
		return err
	}

	sw.hash.Write(data)
	if _, err := sw.f.Write(data); err != nil {
		return err
	}
	sw.size += int64(len(h) + len(data))
	return nil
}

func (sw *segmentWriter) commit(durable bool) error {
	if !sw.uncommitted {
		return nil
	}
	sw.uncommitted = false

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], sw.hash.Sum64())
	buf[0] |= recordFlagCommit

	sw.hash.Write(buf[:])
	if _, err := sw.f.Write(buf[:]); err != nil {
		return err
	}
	sw.size += int64(len(buf))

	if durable {
		return Fdatasync(sw.f)
	}
	return nil
}

func (sw *segmentWriter) close() {
	if sw.f == nil {
		return
	}
	sw.f.Close()
	sw.f = nil
}

func closeAndDeleteUnlessOK(f *os.File, ok *bool) {
	if *ok {
		return
	}
	f.Close()
	os.Remove(f.Name())
}

func fillSegmentHeader(buf []byte, seg, ts uint32, rec uint64, hash *xxhash.Digest) {
	h := segmentHeader{
		Magic:          magic,
		Version:        version0,
		SegmentOrdinal: seg,
		Timestamp:      ts,
		FirstRecord:    rec,
	}

	n, err := binary.Encode(buf[:], binary.LittleEndian, h)
	if err != nil {
		panic(err)
	}
	if n != len(buf) {
		panic("internal size mismatch")
	}

	hash.Write(buf[:segmentHeaderSize-8])
	binary.LittleEndian.PutUint64(buf[segmentHeaderSize-8:], hash.Sum64())
	hash.Write(buf[segmentHeaderSize-8 : segmentHeaderSize])
}

func appendRecordHeader(b []byte, size int, tsDelta uint32) []byte {
	b = binary.AppendUvarint(b, uint64(size)<<recordFlagShift)
	b = binary.AppendUvarint(b, uint64(tsDelta))
	return b
}

func (j *Journal) parseFileName(name string) (seq, ts uint32, id uint64, err error) {
	core := strings.TrimSuffix(strings.TrimPrefix(name, j.fileNamePrefix), j.fileNameSuffix)
	return parseSegmentName(core)
}

func formatSegmentName(prefix, suffix string, seq, ts uint32, id uint64) string {
	t := time.Unix(int64(uint64(ts)), 0).UTC()
	return fmt.Sprintf("%s%012d-%s-%016x%s", prefix, seq, t.Format(timestampFmt), id, suffix)
}

func parseSegmentName(name string) (seq, ts uint32, id uint64, err error) {
	seqStr, rem, ok := strings.Cut(name, "-")
	if !ok {
		return 0, 0, 0, fmt.Errorf("invalid segment file name %q", name)
	}
	v, err := strconv.ParseUint(seqStr, 10, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid segment file name %q (invalid segment number)", name)
	}
	seq = uint32(v)

	tsStr, idStr, ok := strings.Cut(rem, "-")
	if !ok {
		return 0, 0, 0, fmt.Errorf("invalid segment file name %q", name)
	}
	t, err := time.ParseInLocation(timestampFmt, tsStr, time.UTC)
	if err != nil {
		return seq, 0, 0, fmt.Errorf("invalid segment file name %q (invalid timestamp)", name)
	}
	ts = uint32(t.Unix())

	id, err = strconv.ParseUint(idStr, 16, 64)
	if err != nil {
		return seq, 0, 0, fmt.Errorf("invalid segment file name %q (invalid record identifier)", name)
	}
	return
}
