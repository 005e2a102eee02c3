package kvtree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Encoding selects how records are serialized into backend values.
type Encoding int

const (
	MsgPack Encoding = iota
	JSON

	defaultEncoding = MsgPack
)

func (enc Encoding) String() string {
	switch enc {
	case MsgPack:
		return "msgpack"
	case JSON:
		return "json"
	default:
		return fmt.Sprintf("invalid encoding %d", int(enc))
	}
}

// ParseEncoding maps "msgpack" or "json" to an Encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(s) {
	case "", "msgpack":
		return MsgPack, nil
	case "json":
		return JSON, nil
	default:
		return 0, fmt.Errorf("unknown encoding %q", s)
	}
}

// record is the decoded content of one backend slot.
type record struct {
	Present bool
	Desc    Descriptor
	Value   any
}

func leafRecord(v any) record {
	return record{Present: true, Value: v}
}

func containerRecord(d Descriptor) record {
	return record{Present: true, Desc: d}
}

func (r record) isContainer() bool {
	return r.Present && r.Desc.Type != ""
}

// wire returns the generic value that gets encoded for r.
func (r record) wire() any {
	if !r.isContainer() {
		return r.Value
	}
	m := map[string]any{
		"type": string(r.Desc.Type),
	}
	if r.Desc.Root {
		m["root"] = true
	}
	switch r.Desc.Type {
	case TypeObject:
		keys := r.Desc.Keys
		if keys == nil {
			keys = []string{}
		}
		m["keys"] = keys
	case TypeArray:
		m["length"] = r.Desc.Length
	}
	return m
}

func (enc Encoding) EncodeRecord(buf []byte, rec record) ([]byte, error) {
	v := rec.wire()
	switch enc {
	case MsgPack:
		bb := bytesBuilder{buf}
		e := msgpack.GetEncoder()
		e.ResetDict(&bb, nil)
		e.SetSortMapKeys(true)
		err := e.Encode(v)
		msgpack.PutEncoder(e)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %T using MsgPack: %w", v, err)
		}
		return bb.Buf, nil
	case JSON:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %T to JSON: %w", v, err)
		}
		return appendRaw(buf, raw), nil
	default:
		panic("unsupported encoding")
	}
}

// DecodeRecord decodes a backend value. Empty input is an absent record.
func (enc Encoding) DecodeRecord(buf []byte) (record, error) {
	if len(buf) == 0 {
		return record{}, nil
	}
	var v any
	switch enc {
	case MsgPack:
		var r bytes.Reader
		r.Reset(buf)
		dec := msgpack.GetDecoder()
		dec.ResetDict(&r, nil)
		var err error
		v, err = dec.DecodeInterfaceLoose()
		msgpack.PutDecoder(dec)
		if err != nil {
			return record{}, dataErrf(buf, 0, err, "failed to decode msgpack record")
		}
	case JSON:
		dec := json.NewDecoder(bytes.NewReader(buf))
		dec.UseNumber()
		if err := dec.Decode(&v); err != nil {
			return record{}, dataErrf(buf, 0, err, "failed to decode JSON record")
		}
	default:
		panic("unsupported encoding")
	}
	return recordFromWire(buf, v)
}

func recordFromWire(buf []byte, v any) (record, error) {
	var m map[string]any
	switch v := v.(type) {
	case map[string]any:
		m = v
	case map[any]any:
		m = make(map[string]any, len(v))
		for k, val := range v {
			m[fmt.Sprint(k)] = val
		}
	case []any:
		return record{}, dataErrf(buf, 0, nil, "record is an array")
	default:
		if Classify(v) != KindPrimitive {
			return record{}, dataErrf(buf, 0, nil, "record holds unsupported %T", v)
		}
		return leafRecord(normalizeLeaf(v)), nil
	}

	typ, _ := m["type"].(string)
	d := Descriptor{Type: ContainerType(typ)}
	if !d.Type.valid() {
		return record{}, dataErrf(buf, 0, nil, "record is not a container descriptor (type %q)", typ)
	}
	d.Root, _ = m["root"].(bool)
	switch d.Type {
	case TypeObject:
		rawKeys, _ := m["keys"].([]any)
		d.Keys = make([]string, 0, len(rawKeys))
		for _, k := range rawKeys {
			s, ok := k.(string)
			if !ok {
				return record{}, dataErrf(buf, 0, nil, "object descriptor key is %T, not a string", k)
			}
			d.Keys = append(d.Keys, s)
		}
	case TypeArray:
		n, ok := toLength(m["length"])
		if !ok {
			return record{}, dataErrf(buf, 0, nil, "array descriptor has invalid length %v", m["length"])
		}
		d.Length = n
	}
	return containerRecord(d), nil
}

func toLength(v any) (int, bool) {
	if Classify(v) != KindPrimitive {
		return 0, false
	}
	switch v := normalizeLeaf(v).(type) {
	case int64:
		if v < 0 || v > math.MaxInt32 {
			return 0, false
		}
		return int(v), true
	case float64:
		if v < 0 || v > math.MaxInt32 || v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}
