package datasetloader

import (
	"context"
	"fmt"

	"github.com/rpattn/chargemap/internal/ingestion"
	"github.com/rpattn/chargemap/internal/session"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"
)

// DatasetLoader resolves session datasets once per request. Its cache keeps
// every lookup made while serving a request on the same snapshot.
type DatasetLoader struct {
	Loader *dataloader.Loader
}

// NewDatasetLoader batches dataset lookups by session id. An empty key
// resolves to the default dataset.
func NewDatasetLoader(datasets *session.Datasets) *DatasetLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		// Convert keys to []uuid.UUID
		ids := make([]uuid.UUID, len(keys))
		for i, k := range keys {
			if k.String() == "" {
				ids[i] = uuid.Nil
				continue
			}
			id, err := uuid.Parse(k.String())
			if err != nil {
				results := make([]*dataloader.Result, len(keys))
				for j := range results {
					results[j] = &dataloader.Result{Error: fmt.Errorf("invalid session id: %w", err)}
				}
				return results
			}
			ids[i] = id
		}

		resolved := datasets.ForSessions(ctx, ids)

		results := make([]*dataloader.Result, len(keys))
		for i := range ids {
			results[i] = &dataloader.Result{Data: resolved[i]}
		}
		return results
	}

	// A request resolves one session, so dispatch at once instead of waiting
	// for a batch to fill.
	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithBatchCapacity(1))

	return &DatasetLoader{Loader: loader}
}

// Load resolves the dataset for a session through loader.
func Load(ctx context.Context, loader *dataloader.Loader, id uuid.UUID) (ingestion.Result, error) {
	key := ""
	if id != uuid.Nil {
		key = id.String()
	}
	data, err := loader.Load(ctx, dataloader.StringKey(key))()
	if err != nil {
		return ingestion.Result{}, err
	}
	result, ok := data.(ingestion.Result)
	if !ok {
		return ingestion.Result{}, fmt.Errorf("unexpected dataset payload %T", data)
	}
	return result, nil
}
