package http

import (
	"log/slog"
	"net/http"

	"glassmind-quiz-service/internal/app"

	"github.com/gorilla/mux"
)

// MatchWSHandler streams a match row to a lobby screen, typically the host waiting for
// an opponent to join.
type MatchWSHandler struct {
	matches *app.MatchCoordinator
	logger  *slog.Logger
}

func NewMatchWSHandler(matches *app.MatchCoordinator, logger *slog.Logger) *MatchWSHandler {
	return &MatchWSHandler{matches: matches, logger: logger}
}

func (h *MatchWSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["id"]
	updates, cancel, err := h.matches.Watch(r.Context(), matchID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, upgradeHeader(r.Context()))
	if err != nil {
		h.logger.Warn("ws upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	// the read side only detects the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case match, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage[any]{Type: "match", Payload: match}); err != nil {
				return
			}
		}
	}
}
