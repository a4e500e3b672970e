package collect

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Entry is one collected category.
type Entry struct {
	Label  string
	Output string
}

// CollectionMap maps category labels to raw command output. Keys are unique
// and iterate in insertion order; the JSON encoding keeps that order.
type CollectionMap struct {
	entries []Entry
	index   map[string]int
}

// NewCollectionMap builds a map from entries. A repeated label overwrites the
// earlier value in place.
func NewCollectionMap(entries ...Entry) CollectionMap {
	var m CollectionMap
	for _, e := range entries {
		m.set(e.Label, e.Output)
	}
	return m
}

func (m *CollectionMap) set(label, output string) {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if i, ok := m.index[label]; ok {
		m.entries[i].Output = output
		return
	}
	m.index[label] = len(m.entries)
	m.entries = append(m.entries, Entry{Label: label, Output: output})
}

// Len returns the number of categories.
func (m CollectionMap) Len() int { return len(m.entries) }

// Get returns the output for label.
func (m CollectionMap) Get(label string) (string, bool) {
	i, ok := m.index[label]
	if !ok {
		return "", false
	}
	return m.entries[i].Output, true
}

// Labels returns the labels in order.
func (m CollectionMap) Labels() []string {
	labels := make([]string, len(m.entries))
	for i, e := range m.entries {
		labels[i] = e.Label
	}
	return labels
}

// Entries returns a copy of the entries in order.
func (m CollectionMap) Entries() []Entry {
	return append([]Entry(nil), m.entries...)
}

// MarshalJSON encodes the map as a JSON object in insertion order.
func (m CollectionMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Label)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Output)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving key order.
func (m *CollectionMap) UnmarshalJSON(data []byte) error {
	*m = CollectionMap{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("collection map: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		label, ok := tok.(string)
		if !ok {
			return fmt.Errorf("collection map: expected string key, got %v", tok)
		}
		var output string
		if err := dec.Decode(&output); err != nil {
			return fmt.Errorf("collection map: value for %q: %w", label, err)
		}
		m.set(label, output)
	}
	_, err = dec.Token()
	return err
}
