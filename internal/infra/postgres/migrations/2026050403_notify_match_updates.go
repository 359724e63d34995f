package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed 2026050403_notify_match_updates.sql
var notifyMatchUpdatesSQL string

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, notifyMatchUpdatesSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TRIGGER IF EXISTS matches_notify ON matches; DROP FUNCTION IF EXISTS notify_match_update()`)
			return err
		},
	)
}
