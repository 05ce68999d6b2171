package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	t.Run("ShouldKeepInsertionOrder", func(t *testing.T) {
		m := NewMemory(
			MemoryEntry{Original: "pulgadas", Replacement: "plg"},
			MemoryEntry{Original: "metros", Replacement: "m"},
		)
		m.Set("centimetros", "cm")
		got := m.Entries()
		require.Len(t, got, 3)
		assert.Equal(t, "pulgadas", got[0].Original)
		assert.Equal(t, "metros", got[1].Original)
		assert.Equal(t, "centimetros", got[2].Original)
	})

	t.Run("ShouldTreatKeysCaseInsensitively", func(t *testing.T) {
		m := NewMemory(MemoryEntry{Original: "Pulgadas", Replacement: "plg"})
		m.Set("metros", "m")
		m.Set("PULGADAS", "in")
		require.Equal(t, 2, m.Len())
		v, ok := m.Get("pulgadas")
		require.True(t, ok)
		assert.Equal(t, "in", v)
		assert.Equal(t, "PULGADAS", m.Entries()[0].Original)
	})

	t.Run("ShouldDeleteEntries", func(t *testing.T) {
		m := NewMemory(MemoryEntry{Original: "a", Replacement: "b"}, MemoryEntry{Original: "c", Replacement: "d"})
		assert.True(t, m.Delete("A"))
		assert.False(t, m.Delete("A"))
		require.Equal(t, 1, m.Len())
		assert.Equal(t, "c", m.Entries()[0].Original)
	})

	t.Run("ShouldIgnoreBlankOriginals", func(t *testing.T) {
		m := NewMemory()
		assert.False(t, m.Set("  ", "x"))
		assert.Equal(t, 0, m.Len())
	})

	t.Run("ShouldRoundTripJSONInOrder", func(t *testing.T) {
		m := NewMemory(
			MemoryEntry{Original: "zeta", Replacement: "z"},
			MemoryEntry{Original: "alfa", Replacement: "a"},
		)
		data, err := json.Marshal(m)
		require.NoError(t, err)
		assert.Equal(t, `{"zeta":"z","alfa":"a"}`, string(data))

		var back Memory
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, m.Entries(), back.Entries())
	})

	t.Run("ShouldRejectNonObjectJSON", func(t *testing.T) {
		var m Memory
		assert.Error(t, json.Unmarshal([]byte(`["a"]`), &m))
	})
}

func TestMissingColumns(t *testing.T) {
	missing := MissingColumns([]string{"titulo_sistema", " familia "}, []string{"titulo_sistema", "departamento", "familia", "categoria"})
	assert.Equal(t, []string{"departamento", "categoria"}, missing)

	err := &FormatError{Source: "batch", Found: []string{"a"}, Required: []string{"a", "b"}, Missing: []string{"b"}}
	assert.Contains(t, err.Error(), "missing required columns: b")
	assert.Contains(t, err.Error(), "found: a")
}
