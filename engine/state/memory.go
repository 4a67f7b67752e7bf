package state

import "sync/atomic"

// MemoryStore keeps values for the life of the process only.
type MemoryStore struct {
	*prefs
	flushes atomic.Int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{prefs: newPrefs(nil)}
}

func (s *MemoryStore) Flush() error {
	s.snapshot()
	s.flushes.Add(1)
	return nil
}

// Flushes reports how many times Flush was called.
func (s *MemoryStore) Flushes() int64 {
	return s.flushes.Load()
}

func (s *MemoryStore) Close() error {
	return nil
}
