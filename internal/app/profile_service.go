package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"glassmind-quiz-service/internal/dependencies/clock"
	"glassmind-quiz-service/internal/dependencies/random"
	"glassmind-quiz-service/internal/domain"

	"golang.org/x/sync/singleflight"
)

const (
	// StartingPoints is granted to every new profile.
	StartingPoints = 100
	// DefaultLeaderboardLimit is the number of entries shown on the leaderboard.
	DefaultLeaderboardLimit = 50
	// MaxLeaderboardLimit bounds requested leaderboard sizes, and with them the cache.
	MaxLeaderboardLimit = 100

	avatarURLPattern = "https://api.dicebear.com/7.x/avataaars/svg?seed=%s"
)

// ProfileRepository persists player profiles.
type ProfileRepository interface {
	Get(ctx context.Context, id string) (domain.PlayerProfile, error)
	// Create inserts p unless a profile with the same id exists (domain.ErrProfileExists).
	Create(ctx context.Context, p domain.PlayerProfile) error
	// AddPoints atomically adds amount to points and increments the streak.
	AddPoints(ctx context.Context, id string, amount int) (domain.PlayerProfile, error)
	ResetStreak(ctx context.Context, id string) error
	// Top returns up to limit profiles ordered by points, highest first.
	Top(ctx context.Context, limit int) ([]domain.PlayerProfile, error)
	Ping(ctx context.Context) error
}

// ProfileService wraps the profile store with creation defaults and degradation rules.
type ProfileService struct {
	repo   ProfileRepository
	clock  clock.Clock
	random random.Random
	logger *slog.Logger
	ttl    time.Duration
	sf     singleflight.Group

	mu     sync.RWMutex
	cached map[int]cachedLeaderboard
}

type cachedLeaderboard struct {
	board     domain.Leaderboard
	expiresAt time.Time
}

func NewProfileService(repo ProfileRepository, clk clock.Clock, rnd random.Random, logger *slog.Logger, leaderboardTTL time.Duration) *ProfileService {
	return &ProfileService{
		repo:   repo,
		clock:  clk,
		random: rnd,
		logger: logger,
		ttl:    leaderboardTTL,
		cached: make(map[int]cachedLeaderboard),
	}
}

// GetOrCreate returns the player's profile, creating it on first visit. A failing store
// still yields a usable in-memory profile.
func (s *ProfileService) GetOrCreate(ctx context.Context, who domain.Identity) (domain.PlayerProfile, error) {
	profile, err := s.repo.Get(ctx, who.PlayerID)
	switch {
	case err == nil:
		profile.Rank = s.rankOf(profile.ID)
		return profile, nil
	case !errors.Is(err, domain.ErrProfileNotFound):
		s.logger.Warn("profile lookup failed", slog.String("player", who.PlayerID), slog.Any("error", err))
		return s.newProfile(who, StartingPoints, 0), nil
	}

	profile = s.newProfile(who, StartingPoints, 0)
	err = s.repo.Create(ctx, profile)
	switch {
	case err == nil:
		s.logger.Info("profile created", slog.String("player", profile.ID))
	case errors.Is(err, domain.ErrProfileExists):
		if existing, getErr := s.repo.Get(ctx, who.PlayerID); getErr == nil {
			return existing, nil
		}
	default:
		s.logger.Error("profile create failed", slog.String("player", profile.ID), slog.Any("error", err))
	}
	return profile, nil
}

// AddPoints records a finished quiz: points are added and the streak grows by one.
// A missing profile is created with the starting bonus plus amount.
func (s *ProfileService) AddPoints(ctx context.Context, who domain.Identity, amount int) (domain.PlayerProfile, error) {
	profile, err := s.repo.AddPoints(ctx, who.PlayerID, amount)
	if err == nil {
		s.invalidate()
		return profile, nil
	}
	if !errors.Is(err, domain.ErrProfileNotFound) {
		return domain.PlayerProfile{}, fmt.Errorf("add points: %w", err)
	}

	profile = s.newProfile(who, StartingPoints+amount, 1)
	err = s.repo.Create(ctx, profile)
	if errors.Is(err, domain.ErrProfileExists) {
		// created concurrently; apply the score to the stored row
		profile, err = s.repo.AddPoints(ctx, who.PlayerID, amount)
	}
	if err != nil {
		return domain.PlayerProfile{}, fmt.Errorf("add points: %w", err)
	}
	s.invalidate()
	return profile, nil
}

func (s *ProfileService) ResetStreak(ctx context.Context, playerID string) error {
	if err := s.repo.ResetStreak(ctx, playerID); err != nil {
		return fmt.Errorf("reset streak: %w", err)
	}
	return nil
}

// Leaderboard returns the top profiles with 1-based ranks. Store failures yield the
// demo leaderboard flagged as degraded.
func (s *ProfileService) Leaderboard(ctx context.Context, limit int) domain.Leaderboard {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}
	now := s.clock.Now()

	s.mu.RLock()
	if entry, ok := s.cached[limit]; ok && entry.expiresAt.After(now) {
		s.mu.RUnlock()
		return entry.board
	}
	s.mu.RUnlock()

	result, err, _ := s.sf.Do(fmt.Sprintf("top:%d", limit), func() (interface{}, error) {
		profiles, err := s.repo.Top(ctx, limit)
		if err != nil {
			return nil, err
		}
		for i := range profiles {
			profiles[i].Rank = i + 1
		}
		board := domain.Leaderboard{Entries: profiles, UpdatedAt: now}

		s.mu.Lock()
		s.cached[limit] = cachedLeaderboard{board: board, expiresAt: now.Add(s.ttl)}
		s.mu.Unlock()
		return board, nil
	})
	if err != nil {
		s.logger.Warn("leaderboard unavailable, serving demo data", slog.Any("error", err))
		return demoLeaderboard(now)
	}
	return result.(domain.Leaderboard)
}

// CheckConnection pings the store and returns a message suitable for a status banner.
func (s *ProfileService) CheckConnection(ctx context.Context) (bool, string) {
	if err := s.repo.Ping(ctx); err != nil {
		s.logger.Warn("profile store unreachable", slog.Any("error", err))
		return false, "Offline mode: progress may not be saved"
	}
	return true, "Connected"
}

func (s *ProfileService) newProfile(who domain.Identity, points, streak int) domain.PlayerProfile {
	profile := domain.PlayerProfile{
		ID:     who.PlayerID,
		Name:   fmt.Sprintf("Newbie %d", s.random.Intn(100)),
		Avatar: fmt.Sprintf(avatarURLPattern, who.PlayerID),
		Points: points,
		Streak: streak,
	}
	if who.Host != nil {
		if name := who.Host.DisplayName(); name != "" {
			profile.Name = name
		}
		if who.Host.PhotoURL != "" {
			profile.Avatar = who.Host.PhotoURL
		}
	}
	return profile
}

// rankOf looks the player up in any cached leaderboard; 0 means unranked or unknown.
func (s *ProfileService) rankOf(id string) int {
	now := s.clock.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, entry := range s.cached {
		if !entry.expiresAt.After(now) {
			continue
		}
		for _, p := range entry.board.Entries {
			if p.ID == id {
				return p.Rank
			}
		}
	}
	return 0
}

func (s *ProfileService) invalidate() {
	s.mu.Lock()
	s.cached = make(map[int]cachedLeaderboard)
	s.mu.Unlock()
}
