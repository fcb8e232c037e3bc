// Package session keeps the dataset each browser session is looking at.
//
// A session starts on the default dataset. Uploading a file replaces it for
// that session only; resetting drops the upload again. Entries expire after an
// idle TTL and the store never holds more than its configured maximum.
package session

import (
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rpattn/chargemap/internal/ingestion"

	"github.com/google/uuid"
)

// CookieName carries the session id.
const CookieName = "chargemap_session"

type entry struct {
	result    ingestion.Result
	touchedAt time.Time
}

// Store maps session ids to uploaded datasets.
type Store struct {
	mu         sync.RWMutex
	entries    map[uuid.UUID]*entry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewStore creates a store. Non-positive limits fall back to one hour and
// 256 sessions.
func NewStore(ttl time.Duration, maxEntries int) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &Store{
		entries:    make(map[uuid.UUID]*entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Put stores the result of an upload for id.
func (s *Store) Put(id uuid.UUID, result ingestion.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[id] = &entry{result: result, touchedAt: s.now()}
	s.evictLocked()
}

// Get returns the upload stored for id.
func (s *Store) Get(id uuid.UUID) (ingestion.Result, bool) {
	results := s.GetMany([]uuid.UUID{id})
	result, ok := results[id]
	return result, ok
}

// GetMany returns the uploads stored for ids, skipping unknown or expired ones.
func (s *Store) GetMany(ids []uuid.UUID) map[uuid.UUID]ingestion.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	found := make(map[uuid.UUID]ingestion.Result, len(ids))
	for _, id := range ids {
		e, ok := s.entries[id]
		if !ok {
			continue
		}
		if now.Sub(e.touchedAt) > s.ttl {
			delete(s.entries, id)
			continue
		}
		e.touchedAt = now
		found[id] = e.result
	}
	return found
}

// Delete drops the upload stored for id.
func (s *Store) Delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) evictLocked() {
	now := s.now()
	for id, e := range s.entries {
		if now.Sub(e.touchedAt) > s.ttl {
			delete(s.entries, id)
		}
	}
	if len(s.entries) <= s.maxEntries {
		return
	}

	ids := make([]uuid.UUID, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.entries[ids[i]].touchedAt.Before(s.entries[ids[j]].touchedAt)
	})
	for _, id := range ids[:len(ids)-s.maxEntries] {
		delete(s.entries, id)
	}
	log.Printf("[SESSION] evicted %d idle sessions", len(ids)-s.maxEntries)
}

// IDFromRequest reads the session id cookie.
func IDFromRequest(r *http.Request) (uuid.UUID, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(cookie.Value)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Ensure returns the session id of r, issuing a new cookie when missing.
func Ensure(w http.ResponseWriter, r *http.Request) uuid.UUID {
	if id, ok := IDFromRequest(r); ok {
		return id
	}
	id := uuid.New()
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id.String(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
