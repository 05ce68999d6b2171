package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// MemoryEntry is one original -> replacement pair.
type MemoryEntry struct {
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
}

// Memory is the transformation memory: an insertion-ordered mapping whose keys
// compare case-insensitively. Overwriting a key keeps its original position.
// It is not safe for concurrent mutation.
type Memory struct {
	order []string          // lower-cased keys in insertion order
	items map[string]MemoryEntry
}

// NewMemory builds a memory from pairs, in order.
func NewMemory(entries ...MemoryEntry) *Memory {
	m := &Memory{items: map[string]MemoryEntry{}}
	for _, e := range entries {
		m.Set(e.Original, e.Replacement)
	}
	return m
}

// Set adds or replaces a transformation. Blank originals are ignored.
func (m *Memory) Set(original, replacement string) bool {
	original = strings.TrimSpace(original)
	if original == "" {
		return false
	}
	if m.items == nil {
		m.items = map[string]MemoryEntry{}
	}
	key := strings.ToLower(original)
	if _, ok := m.items[key]; !ok {
		m.order = append(m.order, key)
	}
	m.items[key] = MemoryEntry{Original: original, Replacement: replacement}
	return true
}

// Get looks a replacement up by original, ignoring case.
func (m *Memory) Get(original string) (string, bool) {
	if m == nil {
		return "", false
	}
	e, ok := m.items[strings.ToLower(strings.TrimSpace(original))]
	return e.Replacement, ok
}

// Delete removes a transformation and reports whether it existed.
func (m *Memory) Delete(original string) bool {
	if m == nil {
		return false
	}
	key := strings.ToLower(strings.TrimSpace(original))
	if _, ok := m.items[key]; !ok {
		return false
	}
	delete(m.items, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// Entries returns a copy of the pairs in application order.
func (m *Memory) Entries() []MemoryEntry {
	if m == nil {
		return nil
	}
	out := make([]MemoryEntry, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.items[k])
	}
	return out
}

func (m *Memory) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// Reset drops every transformation.
func (m *Memory) Reset() {
	m.order = nil
	m.items = map[string]MemoryEntry{}
}

// MarshalJSON writes a JSON object preserving insertion order.
func (m *Memory) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.Entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Original)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Replacement)
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

// UnmarshalJSON reads a JSON object keeping the key order of the document.
func (m *Memory) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("transformation memory must be a JSON object")
	}
	m.Reset()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected key %v", keyTok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("transformation %q: %w", key, err)
		}
		m.Set(key, value)
	}
	_, err = dec.Token()
	return err
}
