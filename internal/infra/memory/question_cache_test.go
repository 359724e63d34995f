package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"glassmind-quiz-service/internal/domain"
)

func TestQuestionCacheLoadsOncePerDay(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	cache := NewQuestionCacheWithClock(time.Hour, func() time.Time { return now })

	calls := 0
	load := func(context.Context) ([]domain.Question, error) {
		calls++
		return []domain.Question{sampleQuestion("d1")}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := cache.GetDaily(context.Background(), "2026-03-01", load)
		if err != nil {
			t.Fatalf("get daily: %v", err)
		}
		if len(got) != 1 || got[0].ID != "d1" {
			t.Fatalf("unexpected questions %+v", got)
		}
	}
	if calls != 1 {
		t.Fatalf("expected loader once, got %d", calls)
	}

	if _, err := cache.GetDaily(context.Background(), "2026-03-02", load); err != nil {
		t.Fatalf("get next day: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected new day to load, got %d calls", calls)
	}
}

func TestQuestionCacheExpires(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	cache := NewQuestionCacheWithClock(time.Minute, func() time.Time { return now })

	calls := 0
	load := func(context.Context) ([]domain.Question, error) {
		calls++
		return []domain.Question{sampleQuestion("d1")}, nil
	}
	_, _ = cache.GetDaily(context.Background(), "day", load)
	now = now.Add(2 * time.Minute)
	_, _ = cache.GetDaily(context.Background(), "day", load)
	if calls != 2 {
		t.Fatalf("expected reload after ttl (jitter max 10%%), got %d calls", calls)
	}
}

func TestQuestionCacheDoesNotStoreFailures(t *testing.T) {
	cache := NewQuestionCache(time.Hour)
	boom := errors.New("upstream down")

	if _, err := cache.GetDaily(context.Background(), "day", func(context.Context) ([]domain.Question, error) {
		return nil, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}

	got, err := cache.GetDaily(context.Background(), "day", func(context.Context) ([]domain.Question, error) {
		return []domain.Question{sampleQuestion("ok")}, nil
	})
	if err != nil || len(got) != 1 {
		t.Fatalf("expected retry to load, got %v %v", got, err)
	}
}

func sampleQuestion(id string) domain.Question {
	return domain.Question{
		ID:                 id,
		Text:               "What is 2 + 2?",
		Options:            []string{"3", "4", "5", "22"},
		CorrectAnswerIndex: 1,
	}
}
