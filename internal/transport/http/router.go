package http

import (
	"log/slog"
	"net/http"

	"glassmind-quiz-service/internal/app"
	"glassmind-quiz-service/internal/quiz"

	"github.com/gorilla/mux"
)

// RouterConfig holds the services behind the HTTP surface.
type RouterConfig struct {
	Logger           *slog.Logger
	Profiles         *app.ProfileService
	Questions        *app.QuestionService
	Matches          *app.MatchCoordinator
	Timing           quiz.Timing
	TimerSeconds     int
	QuestionCount    int
	LeaderboardLimit int
}

// NewRouter builds the REST and websocket routes.
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.Use(Recovery(cfg.Logger))

	api := &apiHandler{cfg: cfg}
	quizWS := NewQuizWSHandler(cfg)
	matchWS := NewMatchWSHandler(cfg.Matches, cfg.Logger)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(Logging(cfg.Logger))
	v1.Use(Identity)
	v1.HandleFunc("/health", api.health).Methods(http.MethodGet)
	v1.HandleFunc("/profile", api.profile).Methods(http.MethodGet)
	v1.HandleFunc("/profile/streak/reset", api.resetStreak).Methods(http.MethodPost)
	v1.HandleFunc("/leaderboard", api.leaderboard).Methods(http.MethodGet)
	v1.HandleFunc("/questions", api.questions).Methods(http.MethodGet)
	v1.HandleFunc("/questions/daily", api.dailyQuestions).Methods(http.MethodGet)
	v1.HandleFunc("/matches", api.createMatch).Methods(http.MethodPost)
	v1.HandleFunc("/matches/quick", api.quickMatch).Methods(http.MethodPost)
	v1.HandleFunc("/matches/join", api.joinMatch).Methods(http.MethodPost)
	v1.HandleFunc("/matches/{id}", api.getMatch).Methods(http.MethodGet)
	v1.HandleFunc("/matches/{id}/score", api.updateScore).Methods(http.MethodPut)

	ws := r.PathPrefix("/ws").Subrouter()
	ws.Use(Logging(cfg.Logger))
	ws.Use(Identity)
	ws.HandleFunc("/quiz", quizWS.ServeWS).Methods(http.MethodGet)
	ws.HandleFunc("/matches/{id}", matchWS.ServeWS).Methods(http.MethodGet)

	return r
}
