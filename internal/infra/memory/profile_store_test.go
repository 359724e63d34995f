package memory

import (
	"context"
	"errors"
	"testing"

	"glassmind-quiz-service/internal/domain"
)

func TestProfileStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewProfileStore()

	if _, err := store.Get(ctx, "p1"); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.Create(ctx, domain.PlayerProfile{ID: "p1", Name: "Ada", Points: 100}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, domain.PlayerProfile{ID: "p1", Name: "Other"}); !errors.Is(err, domain.ErrProfileExists) {
		t.Fatalf("expected exists, got %v", err)
	}

	p, err := store.AddPoints(ctx, "p1", 120)
	if err != nil {
		t.Fatalf("add points: %v", err)
	}
	if p.Points != 220 || p.Streak != 1 || p.Name != "Ada" {
		t.Fatalf("unexpected profile %+v", p)
	}

	if err := store.ResetStreak(ctx, "p1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	p, _ = store.Get(ctx, "p1")
	if p.Streak != 0 || p.Points != 220 {
		t.Fatalf("reset changed wrong fields: %+v", p)
	}

	if _, err := store.AddPoints(ctx, "ghost", 5); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("expected not found for missing profile, got %v", err)
	}
}

func TestProfileStoreTopOrdersByPoints(t *testing.T) {
	ctx := context.Background()
	store := NewProfileStore()
	for id, points := range map[string]int{"a": 10, "b": 300, "c": 150} {
		_ = store.Create(ctx, domain.PlayerProfile{ID: id, Points: points})
	}

	top, err := store.Top(ctx, 2)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 || top[0].ID != "b" || top[1].ID != "c" {
		t.Fatalf("unexpected order %+v", top)
	}
}
