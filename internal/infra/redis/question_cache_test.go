package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"glassmind-quiz-service/internal/domain"
)

func TestQuestionCacheStoresDailySetInRedis(t *testing.T) {
	mr, client := newTestClient(t)
	cache := NewQuestionCache(client, time.Hour, discardLogger())

	calls := 0
	load := func(context.Context) ([]domain.Question, error) {
		calls++
		return []domain.Question{{ID: "d-1", Text: "Q?", Options: []string{"a", "b", "c", "d"}, CorrectAnswerIndex: 3}}, nil
	}

	first, err := cache.GetDaily(context.Background(), "2026-05-04", load)
	if err != nil {
		t.Fatalf("get daily: %v", err)
	}
	if !mr.Exists("quiz:daily:2026-05-04") {
		t.Fatalf("expected daily key to be set")
	}
	if ttl := mr.TTL("quiz:daily:2026-05-04"); ttl < time.Hour || ttl > time.Hour+6*time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	// a second instance sharing the same redis sees the cached set
	other := NewQuestionCache(client, time.Hour, discardLogger())
	second, err := other.GetDaily(context.Background(), "2026-05-04", load)
	if err != nil {
		t.Fatalf("get daily from other instance: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected loader once, got %d", calls)
	}
	if second[0].ID != first[0].ID || second[0].CorrectAnswerIndex != 3 {
		t.Fatalf("cached set differs: %+v vs %+v", second, first)
	}
}

func TestQuestionCacheSkipsFailedLoads(t *testing.T) {
	mr, client := newTestClient(t)
	cache := NewQuestionCache(client, time.Hour, discardLogger())

	boom := errors.New("upstream")
	_, err := cache.GetDaily(context.Background(), "day", func(context.Context) ([]domain.Question, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
	if mr.Exists("quiz:daily:day") {
		t.Fatalf("failed load must not be cached")
	}
}
