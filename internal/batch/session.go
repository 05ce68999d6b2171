package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/callmeahab/catalog-titles/internal/catalog"
)

// Stats are the per-run counters. They are reset at the start of every run.
type Stats struct {
	TotalProcessed int `json:"total_processed"`
	Passed         int `json:"validation_passed"`
	Corrected      int `json:"validation_corrected"`
	Warnings       int `json:"validation_warnings"`
	Failed         int `json:"validation_failed"`
}

func (s *Stats) add(status catalog.Status) {
	s.TotalProcessed++
	switch status {
	case catalog.StatusPassed:
		s.Passed++
	case catalog.StatusCorrected:
		s.Corrected++
	default:
		s.Warnings++
	}
}

// Session owns the state shared by the runs of one user: the transformation
// memory and the statistics of the latest run. Memory edits are safe from
// concurrent goroutines; runs are serialized.
type Session struct {
	ID uuid.UUID

	mu     sync.RWMutex
	memory *catalog.Memory
	stats  Stats

	runMu sync.Mutex
}

// NewSession starts a session around mem, or an empty memory.
func NewSession(mem *catalog.Memory) *Session {
	if mem == nil {
		mem = catalog.NewMemory()
	}
	return &Session{ID: uuid.New(), memory: mem}
}

// LoadMemory replaces the memory with a JSON object read from r.
func (s *Session) LoadMemory(r io.Reader) error {
	mem := catalog.NewMemory()
	if err := json.NewDecoder(r).Decode(mem); err != nil {
		return fmt.Errorf("failed to load transformation memory: %w", err)
	}
	s.mu.Lock()
	s.memory = mem
	s.mu.Unlock()
	return nil
}

// SetTransformation adds or replaces one memory entry.
func (s *Session) SetTransformation(original, replacement string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memory.Set(original, replacement)
}

// DeleteTransformation removes one memory entry.
func (s *Session) DeleteTransformation(original string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memory.Delete(original)
}

// ClearTransformations empties the memory.
func (s *Session) ClearTransformations() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memory.Reset()
}

// Memory returns a snapshot that later edits do not affect.
func (s *Session) Memory() *catalog.Memory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return catalog.NewMemory(s.memory.Entries()...)
}

func (s *Session) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Reset clears the statistics. The memory is kept.
func (s *Session) Reset() {
	s.mu.Lock()
	s.stats = Stats{}
	s.mu.Unlock()
}

func (s *Session) setStats(st Stats) {
	s.mu.Lock()
	s.stats = st
	s.mu.Unlock()
}
