package redis

import (
	"context"
	"errors"
	"testing"

	"glassmind-quiz-service/internal/domain"
)

func TestProfileStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	store := NewProfileStore(client)

	if _, err := store.Get(ctx, "p1"); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.Create(ctx, domain.PlayerProfile{ID: "p1", Name: "Ada", Avatar: "a.png", Points: 100}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, domain.PlayerProfile{ID: "p1"}); !errors.Is(err, domain.ErrProfileExists) {
		t.Fatalf("expected exists, got %v", err)
	}

	p, err := store.AddPoints(ctx, "p1", 180)
	if err != nil {
		t.Fatalf("add points: %v", err)
	}
	if p.Points != 280 || p.Streak != 1 || p.Name != "Ada" || p.Avatar != "a.png" {
		t.Fatalf("unexpected profile %+v", p)
	}
	if _, err := store.AddPoints(ctx, "ghost", 1); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := store.ResetStreak(ctx, "p1"); err != nil {
		t.Fatalf("reset streak: %v", err)
	}
	p, _ = store.Get(ctx, "p1")
	if p.Streak != 0 || p.Points != 280 {
		t.Fatalf("unexpected after reset %+v", p)
	}
	if err := store.ResetStreak(ctx, "ghost"); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("expected not found on reset, got %v", err)
	}
}

func TestProfileStoreTop(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	store := NewProfileStore(client)

	for _, p := range []domain.PlayerProfile{
		{ID: "a", Points: 100},
		{ID: "b", Points: 500},
		{ID: "c", Points: 300},
	} {
		if err := store.Create(ctx, p); err != nil {
			t.Fatalf("create %s: %v", p.ID, err)
		}
	}
	if _, err := store.AddPoints(ctx, "a", 1000); err != nil {
		t.Fatalf("add points: %v", err)
	}

	top, err := store.Top(ctx, 2)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 || top[0].ID != "a" || top[1].ID != "b" {
		t.Fatalf("unexpected leaderboard %+v", top)
	}
	if top[0].Points != 1100 {
		t.Fatalf("leaderboard should carry hash points, got %d", top[0].Points)
	}

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
