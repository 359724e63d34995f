package cli

import (
	"context"
	"log/slog"
	"time"

	"glassmind-quiz-service/internal/app"
	"glassmind-quiz-service/internal/config"
	"glassmind-quiz-service/internal/dependencies/clock"
	"glassmind-quiz-service/internal/dependencies/random"
	"glassmind-quiz-service/internal/infra/gemini"
	"glassmind-quiz-service/internal/quiz"
)

type services struct {
	profiles  *app.ProfileService
	questions *app.QuestionService
	matches   *app.MatchCoordinator
	gemini    *gemini.Client
}

func buildServices(ctx context.Context, cfg config.Config, st *stores, logger *slog.Logger) (*services, error) {
	clk := clock.New()
	rnd := random.New()

	client, err := gemini.NewClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model,
		config.TTLDuration(cfg.Gemini.Timeout, gemini.DefaultTimeout), rnd)
	if err != nil {
		return nil, err
	}
	if cfg.Gemini.APIKey == "" {
		logger.Warn("gemini api key not set, serving demo questions")
	}

	questions := app.NewQuestionService(client, st.daily, clk, logger)
	return &services{
		profiles: app.NewProfileService(st.profiles, clk, rnd, logger,
			config.TTLDuration(cfg.Leaderboard.TTL, 30*time.Second)),
		questions: questions,
		matches: app.NewMatchCoordinator(st.matches, questions, clk, rnd, logger,
			config.IntOr(cfg.Quiz.QuestionCount, app.DefaultQuestionCount)),
		gemini: client,
	}, nil
}

func timingFrom(cfg config.Config) quiz.Timing {
	def := quiz.DefaultTiming()
	return quiz.Timing{
		Tick:               def.Tick,
		RevealDelay:        config.TTLDuration(cfg.Quiz.RevealDelay, def.RevealDelay),
		TimeoutRevealDelay: config.TTLDuration(cfg.Quiz.TimeoutRevealDelay, def.TimeoutRevealDelay),
		OpponentPoll:       config.TTLDuration(cfg.Quiz.OpponentPoll, def.OpponentPoll),
	}
}
