package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"glassmind-quiz-service/internal/app"
	"glassmind-quiz-service/internal/config"
	"glassmind-quiz-service/internal/infra/memory"
	mongostore "glassmind-quiz-service/internal/infra/mongo"
	pgstore "glassmind-quiz-service/internal/infra/postgres"
	redisstore "glassmind-quiz-service/internal/infra/redis"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// stores bundles the repositories selected by store.driver.
type stores struct {
	profiles app.ProfileRepository
	matches  app.MatchRepository
	daily    app.QuestionCache
	closers  []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (*stores, error) {
	s := &stores{}
	dailyTTL := config.TTLDuration(cfg.Quiz.DailyTTL, 26*time.Hour)

	// the daily set is shared through Redis whenever a persistent driver runs next to it
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" && (cfg.Store.Driver != config.DriverMemory) {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s.closers = append(s.closers, func() { _ = redisClient.Close() })
		s.daily = redisstore.NewQuestionCache(redisClient, dailyTTL, logger)
	} else {
		s.daily = memory.NewQuestionCache(dailyTTL)
	}

	var err error
	switch cfg.Store.Driver {
	case config.DriverMemory:
		s.profiles = memory.NewProfileStore()
		s.matches = memory.NewMatchStore()
	case config.DriverRedis:
		if redisClient == nil {
			err = fmt.Errorf("redis address not configured")
			break
		}
		s.profiles = redisstore.NewProfileStore(redisClient)
		s.matches = redisstore.NewMatchStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 24*time.Hour), logger)
	case config.DriverPostgres:
		err = s.openPostgres(ctx, cfg, logger)
	case config.DriverMongo:
		err = s.openMongo(ctx, cfg, logger)
	default:
		err = fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		s.Close()
		return nil, err
	}
	logger.Info("stores ready", slog.String("driver", cfg.Store.Driver))
	return s, nil
}

func (s *stores) openPostgres(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
		return err
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	s.closers = append(s.closers, func() { _ = db.Close() })

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	s.closers = append(s.closers, pool.Close)

	s.profiles = pgstore.NewProfileStore(db)
	s.matches = pgstore.NewMatchStore(pool, logger)
	return nil
}

func (s *stores) openMongo(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.Mongo.URI == "" {
		return fmt.Errorf("mongo uri not configured")
	}
	client, err := mongostore.Connect(ctx, cfg.Mongo.URI, config.TTLDuration(cfg.Mongo.Timeout, 10*time.Second))
	if err != nil {
		return err
	}
	s.closers = append(s.closers, func() { _ = client.Disconnect(context.Background()) })

	dbName := cfg.Mongo.Database
	if dbName == "" {
		dbName = "glassmind"
	}
	db := client.Database(dbName)
	profiles := mongostore.NewProfileStore(db)
	matches := mongostore.NewMatchStore(db, logger)
	if err := profiles.EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := matches.EnsureIndexes(ctx); err != nil {
		return err
	}
	s.profiles = profiles
	s.matches = matches
	return nil
}
