package session

import (
	"context"

	"github.com/rpattn/chargemap/internal/ingestion"

	"github.com/google/uuid"
)

// Datasets resolves the dataset a session is looking at: its upload when
// present, the default dataset otherwise.
type Datasets struct {
	store    *Store
	defaults *DefaultSource
}

// NewDatasets combines the session store with the default source.
func NewDatasets(store *Store, defaults *DefaultSource) *Datasets {
	return &Datasets{store: store, defaults: defaults}
}

// Store returns the underlying session store.
func (d *Datasets) Store() *Store {
	return d.store
}

// Default returns the default dataset load result.
func (d *Datasets) Default(ctx context.Context) ingestion.Result {
	return d.defaults.Get(ctx)
}

// ForSessions resolves several sessions at once. uuid.Nil stands for a
// request without a session.
func (d *Datasets) ForSessions(ctx context.Context, ids []uuid.UUID) []ingestion.Result {
	uploads := d.store.GetMany(ids)

	results := make([]ingestion.Result, len(ids))
	var fallback *ingestion.Result
	for i, id := range ids {
		if upload, ok := uploads[id]; ok {
			results[i] = upload
			continue
		}
		if fallback == nil {
			def := d.defaults.Get(ctx)
			fallback = &def
		}
		results[i] = *fallback
	}
	return results
}

// ForSession resolves a single session.
func (d *Datasets) ForSession(ctx context.Context, id uuid.UUID) ingestion.Result {
	return d.ForSessions(ctx, []uuid.UUID{id})[0]
}
