package automation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Profile
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Profile)}
}

func (r *memoryRepository) Create(_ context.Context, profile Profile) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	if profile.Status == "" {
		profile.Status = StatusActive
	}
	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	r.storage[profile.ID] = profile
	return profile, nil
}

func (r *memoryRepository) ListByUser(_ context.Context, userID string) ([]Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var profiles []Profile
	for _, p := range r.storage {
		if p.UserID == userID {
			profiles = append(profiles, p)
		}
	}
	return profiles, nil
}

func (r *memoryRepository) PauseAllActive(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	paused := 0
	for id, p := range r.storage {
		if p.UserID == userID && p.Status == StatusActive {
			p.Status = StatusPaused
			p.UpdatedAt = time.Now().UTC()
			r.storage[id] = p
			paused++
		}
	}
	return paused, nil
}
