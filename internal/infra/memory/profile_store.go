package memory

import (
	"context"
	"sort"
	"sync"

	"glassmind-quiz-service/internal/domain"
)

// ProfileStore is an in-memory implementation of app.ProfileRepository.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]domain.PlayerProfile
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[string]domain.PlayerProfile)}
}

func (s *ProfileStore) Get(_ context.Context, id string) (domain.PlayerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return domain.PlayerProfile{}, domain.ErrProfileNotFound
	}
	return p, nil
}

func (s *ProfileStore) Create(_ context.Context, p domain.PlayerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.ID]; ok {
		return domain.ErrProfileExists
	}
	p.Rank = 0
	s.profiles[p.ID] = p
	return nil
}

func (s *ProfileStore) AddPoints(_ context.Context, id string, amount int) (domain.PlayerProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return domain.PlayerProfile{}, domain.ErrProfileNotFound
	}
	p.Points += amount
	p.Streak++
	s.profiles[id] = p
	return p, nil
}

func (s *ProfileStore) ResetStreak(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return domain.ErrProfileNotFound
	}
	p.Streak = 0
	s.profiles[id] = p
	return nil
}

func (s *ProfileStore) Top(_ context.Context, limit int) ([]domain.PlayerProfile, error) {
	s.mu.RLock()
	out := make([]domain.PlayerProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *ProfileStore) Ping(context.Context) error {
	return nil
}
