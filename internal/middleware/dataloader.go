package middleware

import (
	"context"
	"net/http"

	"github.com/rpattn/chargemap/internal/datasetloader"
	"github.com/rpattn/chargemap/internal/session"

	"github.com/graph-gophers/dataloader"
)

type ctxKey string

const datasetLoaderKey ctxKey = "datasetLoader"

// DataLoaderMiddleware attaches a dataset loader to the request context so
// every lookup made while serving the request sees the same snapshot.
func DataLoaderMiddleware(datasets *session.Datasets) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := datasetloader.NewDatasetLoader(datasets)

			ctx := context.WithValue(r.Context(), datasetLoaderKey, loader.Loader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DatasetLoaderFromContext retrieves the dataloader from context
func DatasetLoaderFromContext(ctx context.Context) *dataloader.Loader {
	if l, ok := ctx.Value(datasetLoaderKey).(*dataloader.Loader); ok {
		return l
	}
	return nil
}
