package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"glassmind-quiz-service/internal/app"
	"glassmind-quiz-service/internal/dependencies/mocks"
	"glassmind-quiz-service/internal/domain"
	"glassmind-quiz-service/internal/infra/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCoordinator(rnd *mocks.MockRandom) (*app.MatchCoordinator, *memory.MatchStore) {
	store := memory.NewMatchStore()
	questions := newQuestionService(&stubClient{})
	return app.NewMatchCoordinator(store, questions, mocks.NewMockClock(fixedNow), rnd, nopLogger(), 10), store
}

func TestCreateMatch(t *testing.T) {
	coord, _ := newCoordinator(mocks.NewMockRandom(23456))

	m, err := coord.CreateMatch(context.Background(), "host", "Science", "")
	require.NoError(t, err)
	assert.Equal(t, "123456", m.Code)
	assert.True(t, app.ValidJoinCode(m.Code))
	assert.Equal(t, domain.MatchWaiting, m.Status)
	assert.Equal(t, "Science", m.Topic)
	assert.Len(t, m.Questions, 10)
	assert.Zero(t, m.Player1Score)
	assert.Zero(t, m.Player2Score)
	assert.Empty(t, m.Player2ID)
}

func TestCreateMatchRemovesZombies(t *testing.T) {
	ctx := context.Background()
	coord, store := newCoordinator(mocks.NewMockRandom(1, 2))

	first, err := coord.CreateMatch(ctx, "host", "Science", "")
	require.NoError(t, err)
	_, err = coord.CreateMatch(ctx, "host", "History", "")
	require.NoError(t, err)

	_, err = store.Get(ctx, first.ID)
	assert.ErrorIs(t, err, domain.ErrMatchNotFound)
}

func TestCreateMatchSkipsCodesInUse(t *testing.T) {
	ctx := context.Background()
	coord, _ := newCoordinator(mocks.NewMockRandom(5, 5, 6))

	a, err := coord.CreateMatch(ctx, "alice", "Science", "")
	require.NoError(t, err)
	b, err := coord.CreateMatch(ctx, "bob", "Science", "")
	require.NoError(t, err)
	assert.Equal(t, "100005", a.Code)
	assert.Equal(t, "100006", b.Code)
}

func TestCreateMatchWithCustomCode(t *testing.T) {
	ctx := context.Background()
	coord, _ := newCoordinator(mocks.NewMockRandom())

	m, err := coord.CreateMatch(ctx, "alice", "Art", "654321")
	require.NoError(t, err)
	assert.Equal(t, "654321", m.Code)

	_, err = coord.CreateMatch(ctx, "bob", "Art", "654321")
	assert.ErrorIs(t, err, domain.ErrCodeInUse)

	_, err = coord.CreateMatch(ctx, "bob", "Art", "12ab56")
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
}

func TestCreateMatchRehostsOwnCustomCode(t *testing.T) {
	ctx := context.Background()
	coord, store := newCoordinator(mocks.NewMockRandom())

	abandoned, err := coord.CreateMatch(ctx, "alice", "Art", "654321")
	require.NoError(t, err)

	again, err := coord.CreateMatch(ctx, "alice", "Art", "654321")
	require.NoError(t, err)
	assert.Equal(t, "654321", again.Code)
	assert.NotEqual(t, abandoned.ID, again.ID)

	_, err = store.Get(ctx, abandoned.ID)
	assert.ErrorIs(t, err, domain.ErrMatchNotFound)

	joined, err := coord.JoinMatch(ctx, "654321", "bob")
	require.NoError(t, err)
	assert.Equal(t, again.ID, joined.ID)
}

func TestCreateMatchUsesInjectedIDs(t *testing.T) {
	ctx := context.Background()
	rnd := mocks.NewMockRandom(23456)
	rnd.QueueUUID("5f0c3f8e-0000-4000-8000-000000000001")
	coord, _ := newCoordinator(rnd)

	m, err := coord.CreateMatch(ctx, "host", "Science", "")
	require.NoError(t, err)
	assert.Equal(t, "5f0c3f8e-0000-4000-8000-000000000001", m.ID)
}

func TestJoinMatchFlow(t *testing.T) {
	ctx := context.Background()
	coord, _ := newCoordinator(mocks.NewMockRandom(23456))

	created, err := coord.CreateMatch(ctx, "host", "Science", "")
	require.NoError(t, err)

	_, err = coord.JoinMatch(ctx, created.Code, "host")
	assert.ErrorIs(t, err, domain.ErrOwnMatch)

	_, err = coord.JoinMatch(ctx, "999999", "guest")
	assert.ErrorIs(t, err, domain.ErrMatchNotFound)

	joined, err := coord.JoinMatch(ctx, created.Code, "guest")
	require.NoError(t, err)
	assert.Equal(t, domain.MatchPlaying, joined.Status)
	assert.Equal(t, "guest", joined.Player2ID)
	assert.Equal(t, created.Questions, joined.Questions)

	_, err = coord.JoinMatch(ctx, created.Code, "late")
	assert.ErrorIs(t, err, domain.ErrMatchUnavailable)
}

func TestConcurrentJoinsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	coord, _ := newCoordinator(mocks.NewMockRandom(23456))
	created, err := coord.CreateMatch(ctx, "host", "Science", "")
	require.NoError(t, err)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, player := range []string{"p1", "p2"} {
		wg.Add(1)
		go func(player string) {
			defer wg.Done()
			_, err := coord.JoinMatch(ctx, created.Code, player)
			results <- err
		}(player)
	}
	wg.Wait()
	close(results)

	var ok, unavailable int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrMatchUnavailable):
			unavailable++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, unavailable)
}

func TestQuickMatchJoinsOrHosts(t *testing.T) {
	ctx := context.Background()
	coord, _ := newCoordinator(mocks.NewMockRandom(1, 2))

	_, err := coord.FindQuickMatch(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrNoOpenMatch)

	hosted, hosting, err := coord.QuickMatch(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, hosting)
	assert.Equal(t, app.RandomTopic, hosted.Topic)

	// the host never matches with itself
	again, hosting, err := coord.QuickMatch(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, hosting)
	assert.NotEqual(t, hosted.ID, again.ID)

	joined, hosting, err := coord.QuickMatch(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, hosting)
	assert.Equal(t, again.ID, joined.ID)
	assert.Equal(t, "bob", joined.Player2ID)
}

func TestScoresUpdateOwnFieldOnly(t *testing.T) {
	ctx := context.Background()
	coord, _ := newCoordinator(mocks.NewMockRandom(23456))
	created, _ := coord.CreateMatch(ctx, "host", "Science", "")
	_, err := coord.JoinMatch(ctx, created.Code, "guest")
	require.NoError(t, err)

	m, err := coord.SubmitScore(ctx, created.ID, "host", 130)
	require.NoError(t, err)
	assert.Equal(t, 130, m.Player1Score)
	assert.Zero(t, m.Player2Score)

	m, err = coord.SubmitScore(ctx, created.ID, "guest", 240)
	require.NoError(t, err)
	assert.Equal(t, 130, m.Player1Score)
	assert.Equal(t, 240, m.Player2Score)

	_, err = coord.SubmitScore(ctx, created.ID, "stranger", 1)
	assert.ErrorIs(t, err, domain.ErrNotParticipant)

	_, err = coord.UpdateScore(ctx, created.ID, domain.Slot(3), 1)
	assert.ErrorIs(t, err, domain.ErrInvalidSlot)

	require.NoError(t, coord.Finish(ctx, created.ID))
	m, _ = coord.GetMatch(ctx, created.ID)
	assert.Equal(t, domain.MatchFinished, m.Status)
}

func TestWatchStreamsJoin(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	coord, _ := newCoordinator(mocks.NewMockRandom(23456))
	created, _ := coord.CreateMatch(ctx, "host", "Science", "")

	updates, stop, err := coord.Watch(ctx, created.ID)
	require.NoError(t, err)
	defer stop()
	assert.Equal(t, domain.MatchWaiting, (<-updates).Status)

	_, err = coord.JoinMatch(ctx, created.Code, "guest")
	require.NoError(t, err)

	select {
	case m := <-updates:
		assert.Equal(t, domain.MatchPlaying, m.Status)
	case <-time.After(time.Second):
		t.Fatal("no update after join")
	}
}
