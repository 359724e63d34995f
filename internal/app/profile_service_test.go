package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"glassmind-quiz-service/internal/app"
	"glassmind-quiz-service/internal/dependencies/mocks"
	"glassmind-quiz-service/internal/domain"
	"glassmind-quiz-service/internal/infra/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ProfileServiceSuite struct {
	suite.Suite
	store *memory.ProfileStore
	clock *mocks.MockClock
	svc   *app.ProfileService
	ctx   context.Context
}

func TestProfileServiceSuite(t *testing.T) {
	suite.Run(t, new(ProfileServiceSuite))
}

func (s *ProfileServiceSuite) SetupTest() {
	s.store = memory.NewProfileStore()
	s.clock = mocks.NewMockClock(fixedNow)
	s.svc = app.NewProfileService(s.store, s.clock, mocks.NewMockRandom(42), nopLogger(), time.Minute)
	s.ctx = context.Background()
}

func (s *ProfileServiceSuite) TestGetOrCreateAnonymous() {
	p, err := s.svc.GetOrCreate(s.ctx, domain.Identity{PlayerID: "dev-1"})
	s.Require().NoError(err)
	s.Equal("Newbie 42", p.Name)
	s.Equal(app.StartingPoints, p.Points)
	s.Equal(0, p.Streak)
	s.Equal("https://api.dicebear.com/7.x/avataaars/svg?seed=dev-1", p.Avatar)

	stored, err := s.store.Get(s.ctx, "dev-1")
	s.Require().NoError(err)
	s.Equal(p.Name, stored.Name)
}

func (s *ProfileServiceSuite) TestGetOrCreateUsesHostDetails() {
	who := domain.Identity{PlayerID: "77", Host: &domain.HostUser{ID: 77, FirstName: "Ada", LastName: "L", PhotoURL: "https://t.me/a.jpg"}}
	p, err := s.svc.GetOrCreate(s.ctx, who)
	s.Require().NoError(err)
	s.Equal("Ada L", p.Name)
	s.Equal("https://t.me/a.jpg", p.Avatar)
}

func (s *ProfileServiceSuite) TestGetOrCreateReturnsExisting() {
	s.Require().NoError(s.store.Create(s.ctx, domain.PlayerProfile{ID: "p", Name: "Old", Points: 900, Streak: 4}))
	p, err := s.svc.GetOrCreate(s.ctx, domain.Identity{PlayerID: "p"})
	s.Require().NoError(err)
	s.Equal("Old", p.Name)
	s.Equal(900, p.Points)
}

func (s *ProfileServiceSuite) TestAddPointsCreatesMissingProfile() {
	p, err := s.svc.AddPoints(s.ctx, domain.Identity{PlayerID: "new"}, 120)
	s.Require().NoError(err)
	s.Equal(220, p.Points)
	s.Equal(1, p.Streak)
}

func (s *ProfileServiceSuite) TestAddPointsAccumulates() {
	_, err := s.svc.GetOrCreate(s.ctx, domain.Identity{PlayerID: "p"})
	s.Require().NoError(err)

	p, err := s.svc.AddPoints(s.ctx, domain.Identity{PlayerID: "p"}, 0)
	s.Require().NoError(err)
	s.Equal(100, p.Points)
	s.Equal(1, p.Streak)

	p, err = s.svc.AddPoints(s.ctx, domain.Identity{PlayerID: "p"}, 50)
	s.Require().NoError(err)
	s.Equal(150, p.Points)
	s.Equal(2, p.Streak)

	s.Require().NoError(s.svc.ResetStreak(s.ctx, "p"))
	stored, _ := s.store.Get(s.ctx, "p")
	s.Equal(0, stored.Streak)
	s.Equal(150, stored.Points)
}

func (s *ProfileServiceSuite) TestLeaderboardRanks() {
	for id, points := range map[string]int{"a": 500, "b": 900, "c": 100} {
		s.Require().NoError(s.store.Create(s.ctx, domain.PlayerProfile{ID: id, Points: points}))
	}
	board := s.svc.Leaderboard(s.ctx, 0)
	s.False(board.Degraded)
	s.Require().Len(board.Entries, 3)
	for i, want := range []string{"b", "a", "c"} {
		s.Equal(want, board.Entries[i].ID)
		s.Equal(i+1, board.Entries[i].Rank)
	}

	p, err := s.svc.GetOrCreate(s.ctx, domain.Identity{PlayerID: "a"})
	s.Require().NoError(err)
	s.Equal(2, p.Rank)
}

func (s *ProfileServiceSuite) TestLeaderboardCacheInvalidatedByScore() {
	s.Require().NoError(s.store.Create(s.ctx, domain.PlayerProfile{ID: "a", Points: 500}))
	s.Require().NoError(s.store.Create(s.ctx, domain.PlayerProfile{ID: "b", Points: 400}))
	s.Equal("a", s.svc.Leaderboard(s.ctx, 10).Entries[0].ID)

	_, err := s.svc.AddPoints(s.ctx, domain.Identity{PlayerID: "b"}, 200)
	s.Require().NoError(err)
	s.Equal("b", s.svc.Leaderboard(s.ctx, 10).Entries[0].ID)
}

// topRecorder remembers the limits passed to Top.
type topRecorder struct {
	*memory.ProfileStore
	limits []int
}

func (r *topRecorder) Top(ctx context.Context, limit int) ([]domain.PlayerProfile, error) {
	r.limits = append(r.limits, limit)
	return r.ProfileStore.Top(ctx, limit)
}

func TestLeaderboardLimitIsCapped(t *testing.T) {
	ctx := context.Background()
	repo := &topRecorder{ProfileStore: memory.NewProfileStore()}
	require.NoError(t, repo.Create(ctx, domain.PlayerProfile{ID: "a", Points: 300}))
	svc := app.NewProfileService(repo, mocks.NewMockClock(fixedNow), mocks.NewMockRandom(), nopLogger(), time.Minute)

	for _, limit := range []int{1000, 5000, 1 << 20} {
		board := svc.Leaderboard(ctx, limit)
		require.Len(t, board.Entries, 1)
	}
	assert.Equal(t, []int{app.MaxLeaderboardLimit}, repo.limits)
}

// brokenProfiles fails every call.
type brokenProfiles struct{}

var errStoreDown = errors.New("connection refused")

func (brokenProfiles) Get(context.Context, string) (domain.PlayerProfile, error) {
	return domain.PlayerProfile{}, errStoreDown
}
func (brokenProfiles) Create(context.Context, domain.PlayerProfile) error { return errStoreDown }
func (brokenProfiles) AddPoints(context.Context, string, int) (domain.PlayerProfile, error) {
	return domain.PlayerProfile{}, errStoreDown
}
func (brokenProfiles) ResetStreak(context.Context, string) error { return errStoreDown }
func (brokenProfiles) Top(context.Context, int) ([]domain.PlayerProfile, error) {
	return nil, errStoreDown
}
func (brokenProfiles) Ping(context.Context) error { return errStoreDown }

func TestProfileServiceDegradesOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	svc := app.NewProfileService(brokenProfiles{}, mocks.NewMockClock(fixedNow), mocks.NewMockRandom(7), nopLogger(), time.Minute)

	p, err := svc.GetOrCreate(ctx, domain.Identity{PlayerID: "x"})
	require.NoError(t, err)
	assert.Equal(t, "Newbie 7", p.Name)
	assert.Equal(t, 100, p.Points)

	board := svc.Leaderboard(ctx, 50)
	assert.True(t, board.Degraded)
	require.Len(t, board.Entries, 5)
	assert.Equal(t, 12500, board.Entries[0].Points)
	assert.Equal(t, 15, board.Entries[0].Streak)
	assert.Equal(t, 5, board.Entries[4].Rank)

	_, err = svc.AddPoints(ctx, domain.Identity{PlayerID: "x"}, 10)
	assert.ErrorIs(t, err, errStoreDown)

	ok, msg := svc.CheckConnection(ctx)
	assert.False(t, ok)
	assert.NotEmpty(t, msg)
}
