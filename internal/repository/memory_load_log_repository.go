package repository

import (
	"context"
	"sync"

	"github.com/rpattn/chargemap/internal/domain"
)

// memoryLoadLogRepository keeps the most recent entries in a ring when no
// database is configured.
type memoryLoadLogRepository struct {
	mu       sync.RWMutex
	capacity int
	entries  []domain.LoadLogEntry
}

// NewMemoryLoadLogRepository keeps at most capacity entries in memory.
func NewMemoryLoadLogRepository(capacity int) LoadLogRepository {
	if capacity <= 0 {
		capacity = 100
	}
	return &memoryLoadLogRepository{capacity: capacity}
}

func (r *memoryLoadLogRepository) Record(ctx context.Context, entry domain.LoadLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, entry)
	if overflow := len(r.entries) - r.capacity; overflow > 0 {
		r.entries = append([]domain.LoadLogEntry{}, r.entries[overflow:]...)
	}
	return nil
}

func (r *memoryLoadLogRepository) List(ctx context.Context, limit int, offset int) ([]domain.LoadLogEntry, error) {
	limit, offset = clampPage(limit, offset)

	r.mu.RLock()
	defer r.mu.RUnlock()

	// newest first, matching the database ordering
	logs := []domain.LoadLogEntry{}
	for idx := len(r.entries) - 1 - offset; idx >= 0 && len(logs) < limit; idx-- {
		logs = append(logs, r.entries[idx])
	}
	return logs, nil
}
