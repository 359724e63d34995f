package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"glassmind-quiz-service/internal/domain"

	"github.com/uptrace/bun"
)

type profileRow struct {
	bun.BaseModel `bun:"table:profiles,alias:p"`

	ID        string    `bun:"id,pk"`
	Name      string    `bun:"name,notnull"`
	Avatar    string    `bun:"avatar,notnull"`
	Points    int       `bun:"points,notnull"`
	Streak    int       `bun:"streak,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r profileRow) toDomain() domain.PlayerProfile {
	return domain.PlayerProfile{ID: r.ID, Name: r.Name, Avatar: r.Avatar, Points: r.Points, Streak: r.Streak}
}

// ProfileStore persists profiles through bun. Point updates are single UPDATE
// statements so concurrent submissions never lose increments.
type ProfileStore struct {
	db *bun.DB
}

func NewProfileStore(db *bun.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func (s *ProfileStore) Get(ctx context.Context, id string) (domain.PlayerProfile, error) {
	row := new(profileRow)
	err := s.db.NewSelect().Model(row).Where("p.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PlayerProfile{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.PlayerProfile{}, fmt.Errorf("get profile: %w", err)
	}
	return row.toDomain(), nil
}

func (s *ProfileStore) Create(ctx context.Context, p domain.PlayerProfile) error {
	row := &profileRow{ID: p.ID, Name: p.Name, Avatar: p.Avatar, Points: p.Points, Streak: p.Streak}
	res, err := s.db.NewInsert().Model(row).On("CONFLICT (id) DO NOTHING").Exec(ctx)
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrProfileExists
	}
	return nil
}

func (s *ProfileStore) AddPoints(ctx context.Context, id string, amount int) (domain.PlayerProfile, error) {
	row := new(profileRow)
	err := s.db.NewUpdate().
		Model(row).
		Set("points = points + ?", amount).
		Set("streak = streak + 1").
		Set("updated_at = now()").
		Where("id = ?", id).
		Returning("*").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PlayerProfile{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.PlayerProfile{}, fmt.Errorf("add points: %w", err)
	}
	return row.toDomain(), nil
}

func (s *ProfileStore) ResetStreak(ctx context.Context, id string) error {
	res, err := s.db.NewUpdate().
		Model((*profileRow)(nil)).
		Set("streak = 0").
		Set("updated_at = now()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("reset streak: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

func (s *ProfileStore) Top(ctx context.Context, limit int) ([]domain.PlayerProfile, error) {
	var rows []profileRow
	err := s.db.NewSelect().
		Model(&rows).
		OrderExpr("p.points DESC, p.id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	out := make([]domain.PlayerProfile, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *ProfileStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
