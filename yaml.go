package kvtree

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/goccy/go-yaml"
)

// ImportYAML parses a YAML (or JSON) document and stores it at path. Mapping
// key order is preserved.
func (s *Store) ImportYAML(path string, data []byte) error {
	var v any
	if err := yaml.UnmarshalWithOptions(data, &v, yaml.UseOrderedMap()); err != nil {
		return fmt.Errorf("kvtree: parsing YAML: %w", err)
	}
	return s.Set(path, v)
}

// ExportYAML renders the subtree at path as YAML.
func (s *Store) ExportYAML(path string) ([]byte, error) {
	v, err := s.Materialize(path)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(v)
}

// ExportJSON renders the subtree at path as indented JSON.
func (s *Store) ExportJSON(path string) ([]byte, error) {
	v, err := s.Materialize(path)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(v, "", "  ")
}

// ParseValue parses a single YAML scalar or flow value, the way the CLI reads
// values given on the command line ("1", "true", "{a: 1}", "[1, 2]").
func ParseValue(s string) (any, error) {
	var v any
	if err := yaml.UnmarshalWithOptions([]byte(s), &v, yaml.UseOrderedMap()); err != nil {
		return nil, err
	}
	return v, nil
}

// MarshalYAML keeps field order when an Object is rendered as YAML.
func (o Object) MarshalYAML() (any, error) {
	ms := make(yaml.MapSlice, len(o))
	for i, f := range o {
		ms[i] = yaml.MapItem{Key: f.Key, Value: f.Value}
	}
	return ms, nil
}

// MarshalJSON keeps field order when an Object is rendered as JSON.
func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
