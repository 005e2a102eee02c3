package kvtree

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"sync"

	"github.com/goccy/go-yaml"
)

// Kind is the storage category of a Go value.
type Kind int

const (
	KindPrimitive Kind = iota
	KindArray
	KindObject
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindUnsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("invalid kind %d", int(k))
	}
}

// Object is an ordered string-keyed container. Use it instead of a map when
// key order matters; maps are stored in sorted key order.
type Object []Field

type Field struct {
	Key   string
	Value any
}

// Get returns the value of the first field named key.
func (o Object) Get(key string) (any, bool) {
	for _, f := range o {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

func (o Object) Keys() []string {
	keys := make([]string, len(o))
	for i, f := range o {
		keys[i] = f.Key
	}
	return keys
}

var kindCache sync.Map

// Classify categorizes v. Primitives are checked first, then arrays, then
// plain objects; anything else is unsupported.
func Classify(v any) Kind {
	switch v.(type) {
	case nil, bool, string, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, uintptr,
		float32, float64:
		return KindPrimitive
	case []any:
		return KindArray
	case Object, map[string]any, yaml.MapSlice:
		return KindObject
	case []byte:
		return KindUnsupported
	}
	return classifyType(reflect.TypeOf(v))
}

func classifyType(typ reflect.Type) Kind {
	if v, ok := kindCache.Load(typ); ok {
		return v.(Kind)
	}
	kind := classifyTypeWithoutCache(typ)
	actual, _ := kindCache.LoadOrStore(typ, kind)
	return actual.(Kind)
}

func classifyTypeWithoutCache(typ reflect.Type) Kind {
	switch typ.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return KindPrimitive
	case reflect.Slice, reflect.Array:
		if typ.Elem().Kind() == reflect.Uint8 {
			return KindUnsupported
		}
		return KindArray
	case reflect.Map:
		if typ.Key().Kind() == reflect.String {
			return KindObject
		}
		return KindUnsupported
	default:
		return KindUnsupported
	}
}

// validateTree rejects v if it or anything nested inside it is unsupported,
// or is a leaf enc cannot represent.
func validateTree(enc Encoding, path string, v any) error {
	switch Classify(v) {
	case KindPrimitive:
		if enc == JSON {
			if f, ok := normalizeLeaf(v).(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
				return serializationErrf(path, v, nil, "JSON cannot store %v", f)
			}
		}
		return nil
	case KindArray:
		var err error
		eachItem(v, func(i int, item any) bool {
			err = validateTree(enc, childPath(path, strconv.Itoa(i)), item)
			return err == nil
		})
		return err
	case KindObject:
		var err error
		eachField(v, func(key string, item any) bool {
			if !isValidSegment(key) {
				err = serializationErrf(childPath(path, key), v, nil, "object key %q is not a valid path segment", key)
				return false
			}
			err = validateTree(enc, childPath(path, key), item)
			return err == nil
		})
		return err
	default:
		return serializationErrf(path, v, nil, "unsupported value of type %T", v)
	}
}

// eachItem iterates over the elements of a KindArray value.
func eachItem(v any, f func(i int, item any) bool) {
	if items, ok := v.([]any); ok {
		for i, item := range items {
			if !f(i, item) {
				return
			}
		}
		return
	}
	rv := reflect.ValueOf(v)
	for i, n := 0, rv.Len(); i < n; i++ {
		if !f(i, rv.Index(i).Interface()) {
			return
		}
	}
}

// eachField iterates over the fields of a KindObject value in storage order.
func eachField(v any, f func(key string, item any) bool) {
	switch v := v.(type) {
	case Object:
		for _, fld := range v {
			if !f(fld.Key, fld.Value) {
				return
			}
		}
		return
	case yaml.MapSlice:
		for _, item := range v {
			if !f(fmt.Sprint(item.Key), item.Value) {
				return
			}
		}
		return
	}
	rv := reflect.ValueOf(v)
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	for _, k := range keys {
		if !f(k.String(), rv.MapIndex(k).Interface()) {
			return
		}
	}
}

// normalizeLeaf converts a primitive to the representation Get returns:
// int64 for integers (uint64 when it does not fit), float64 for floats,
// string for string kinds.
func normalizeLeaf(v any) any {
	switch v := v.(type) {
	case nil, bool, string, int64, float64:
		return v
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint:
		return normalizeUint(uint64(v))
	case uint64:
		return normalizeUint(v)
	case uintptr:
		return normalizeUint(uint64(v))
	case float32:
		return float64(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if n, err := strconv.ParseUint(string(v), 10, 64); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return normalizeUint(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	panic(fmt.Errorf("normalizeLeaf: %T is not a primitive", v))
}

func normalizeUint(v uint64) any {
	if v <= math.MaxInt64 {
		return int64(v)
	}
	return v
}

// Normalize returns a copy of a supported value with every leaf normalized
// the way Get returns it, maps converted to Object (sorted keys) and arrays to
// []any. It is the shape Materialize produces for the same data.
func Normalize(v any) (any, error) {
	if err := validateTree(MsgPack, "", v); err != nil {
		return nil, err
	}
	return normalizeTree(v), nil
}

func normalizeTree(v any) any {
	switch Classify(v) {
	case KindArray:
		items := []any{}
		eachItem(v, func(_ int, item any) bool {
			items = append(items, normalizeTree(item))
			return true
		})
		return items
	case KindObject:
		obj := Object{}
		eachField(v, func(key string, item any) bool {
			obj = append(obj, Field{key, normalizeTree(item)})
			return true
		})
		return obj
	default:
		return normalizeLeaf(v)
	}
}
