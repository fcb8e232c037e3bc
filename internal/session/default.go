package session

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/rpattn/chargemap/internal/ingestion"

	"github.com/fsnotify/fsnotify"
)

// DefaultSource lazily loads the configured dataset file and caches it until
// the file changes.
type DefaultSource struct {
	loader *ingestion.Loader
	path   string

	mu       sync.RWMutex
	cached   *ingestion.Result
	watching bool
}

// NewDefaultSource creates a source for path. Nothing is read until Get.
func NewDefaultSource(loader *ingestion.Loader, path string) *DefaultSource {
	return &DefaultSource{loader: loader, path: filepath.Clean(path)}
}

// Path returns the file backing the source.
func (d *DefaultSource) Path() string {
	return d.path
}

// Get returns the cached load result, loading the file when needed. Failures
// are only cached while the file is being watched, so an unwatched source
// retries on the next call.
func (d *DefaultSource) Get(ctx context.Context) ingestion.Result {
	d.mu.RLock()
	if d.cached != nil {
		result := *d.cached
		d.mu.RUnlock()
		return result
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cached != nil {
		return *d.cached
	}

	result := d.loader.LoadFile(ctx, d.path)
	if result.OK() || d.watching {
		d.cached = &result
	}
	return result
}

// Invalidate drops the cached result.
func (d *DefaultSource) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}

// Watch invalidates the cache whenever the file is written, created, renamed
// or removed. It blocks until ctx is cancelled.
func (d *DefaultSource) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			log.Printf("[WATCH] failed to close watcher: %v", err)
		}
	}()

	// Watch the directory so atomic replacements (write temp + rename) are seen.
	dir := filepath.Dir(d.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	d.mu.Lock()
	d.watching = true
	d.cached = nil
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.watching = false
		d.mu.Unlock()
	}()

	log.Printf("[WATCH] watching %s for changes", d.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != d.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				log.Printf("[WATCH] %s changed (%s), reloading on next request", d.path, event.Op)
				d.Invalidate()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[WATCH] watcher error: %v", err)
		}
	}
}
