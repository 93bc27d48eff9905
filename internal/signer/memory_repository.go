package signer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu       sync.RWMutex
	storage  map[string]Record
	mirrored map[string]string
}

// NewMemoryRepository constructs an in-memory repository for tests and
// development. It reproduces the upsert conflict semantics of the
// PostgreSQL implementation.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		storage:  make(map[string]Record),
		mirrored: make(map[string]string),
	}
}

func (r *memoryRepository) Get(_ context.Context, userID string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.storage[userID]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return rec, nil
}

func (r *memoryRepository) Upsert(_ context.Context, rec Record) (Record, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, exists := r.storage[rec.UserID]
	if exists && stored.Status == StatusReady {
		// Stored ready winner is retained, regardless of the incoming status.
		return stored, false, nil
	}
	rec = r.identify(rec, stored, exists)
	r.storage[rec.UserID] = rec
	return rec, true, nil
}

func (r *memoryRepository) Replace(_ context.Context, rec Record) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, exists := r.storage[rec.UserID]
	rec = r.identify(rec, stored, exists)
	r.storage[rec.UserID] = rec
	return rec, nil
}

func (r *memoryRepository) MirrorAddress(_ context.Context, userID, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mirrored[userID] = address
	return nil
}

// MirroredAddress exposes the compatibility mirror for assertions.
func (r *memoryRepository) MirroredAddress(userID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mirrored[userID]
}

func (r *memoryRepository) identify(rec, stored Record, exists bool) Record {
	now := time.Now().UTC()
	if exists {
		rec.ID = stored.ID
		rec.CreatedAt = stored.CreatedAt
	} else {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
	}
	rec.UpdatedAt = now
	return rec
}
