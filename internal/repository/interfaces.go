package repository

import (
	"context"

	"github.com/rpattn/chargemap/internal/domain"
)

// LoadLogRepository records dataset load attempts.
type LoadLogRepository interface {
	Record(ctx context.Context, entry domain.LoadLogEntry) error
	List(ctx context.Context, limit int, offset int) ([]domain.LoadLogEntry, error)
}
