package infrastructure

import (
	"context"
	"sync"
	"time"

	"github.com/northcart/order-system/orchestrator-service/domain"
	"github.com/northcart/order-system/shared/models"
)

// MemoryPreferenceStore keeps per-user preference profiles in memory
type MemoryPreferenceStore struct {
	mu       sync.Mutex
	profiles map[models.ID]domain.PreferenceProfile
}

// NewMemoryPreferenceStore creates an empty preference store
func NewMemoryPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{
		profiles: make(map[models.ID]domain.PreferenceProfile),
	}
}

// Apply stores the user's preference profile
func (s *MemoryPreferenceStore) Apply(ctx context.Context, userID models.ID, preferences domain.Preferences) (domain.PreferenceProfile, error) {
	profile := domain.PreferenceProfile{
		UserID:      userID,
		Preferences: preferences,
		SetupAt:     time.Now(),
	}

	s.mu.Lock()
	s.profiles[userID] = profile
	s.mu.Unlock()

	return profile, nil
}

// Get returns the stored profile for a user
func (s *MemoryPreferenceStore) Get(userID models.ID) (domain.PreferenceProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[userID]
	return profile, ok
}
