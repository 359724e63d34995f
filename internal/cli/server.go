package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"glassmind-quiz-service/internal/app"
	"glassmind-quiz-service/internal/config"
	"glassmind-quiz-service/internal/quiz"
	transport "glassmind-quiz-service/internal/transport/http"

	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string, envPort string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
	cmd.Flags().StringVar(port, "port", envPort, "port to listen on (overrides server.port)")
	return cmd
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	svc, err := buildServices(ctx, cfg, st, logger)
	if err != nil {
		return err
	}
	defer svc.gemini.Close()

	router := transport.NewRouter(transport.RouterConfig{
		Logger:           logger,
		Profiles:         svc.profiles,
		Questions:        svc.questions,
		Matches:          svc.matches,
		Timing:           timingFrom(cfg),
		TimerSeconds:     config.IntOr(cfg.Quiz.TimerSeconds, quiz.DefaultTimerSeconds),
		QuestionCount:    config.IntOr(cfg.Quiz.QuestionCount, app.DefaultQuestionCount),
		LeaderboardLimit: config.IntOr(cfg.Leaderboard.Limit, app.DefaultLeaderboardLimit),
	})

	// websocket quizzes outlive any write timeout, so only reads are bounded
	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting quiz service", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
