package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"glassmind-quiz-service/internal/domain"
	"glassmind-quiz-service/internal/quiz"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Option *int `json:"option"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}

// QuizWSHandler runs one quiz per connection. Timers live on the server; the client
// only sends decisions and renders the state snapshots it receives.
type QuizWSHandler struct {
	cfg RouterConfig
}

func NewQuizWSHandler(cfg RouterConfig) *QuizWSHandler {
	return &QuizWSHandler{cfg: cfg}
}

// ServeWS loads the question set for the requested mode, upgrades the connection and
// relays inbound decisions to a quiz.Driver.
func (h *QuizWSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := domain.Mode(q.Get("mode"))
	if mode == "" {
		mode = domain.ModeSingle
	}
	if !mode.Valid() {
		writeError(w, invalidRequest("mode must be single, daily or multi"))
		return
	}
	who, _ := IdentityFrom(r.Context())

	var (
		questions []domain.Question
		matchID   string
	)
	switch mode {
	case domain.ModeSingle:
		questions = h.cfg.Questions.Generate(r.Context(), q.Get("topic"), h.cfg.QuestionCount)
	case domain.ModeDaily:
		questions = h.cfg.Questions.Daily(r.Context())
	case domain.ModeMatch:
		matchID = q.Get("matchId")
		if matchID == "" {
			writeError(w, invalidRequest("matchId is required in multi mode"))
			return
		}
		match, err := h.cfg.Matches.GetMatch(r.Context(), matchID)
		if err != nil {
			writeError(w, err)
			return
		}
		if _, ok := match.SlotOf(who.PlayerID); !ok {
			writeError(w, domain.ErrNotParticipant)
			return
		}
		questions = match.Questions
	}

	conn, err := upgrader.Upgrade(w, r, upgradeHeader(r.Context()))
	if err != nil {
		h.cfg.Logger.Warn("ws upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	driver := quiz.NewDriver(
		quiz.NewRuntime(quiz.Options{Mode: mode, PlayerID: who.PlayerID, TimerSeconds: h.cfg.TimerSeconds}),
		quiz.DriverConfig{
			Identity: who,
			Scores:   h.cfg.Profiles,
			Matches:  h.cfg.Matches,
			MatchID:  matchID,
			Timing:   h.cfg.Timing,
			Logger:   h.cfg.Logger,
		},
	)

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.cfg.Logger.Debug("ws write failed", slog.Any("error", err))
				// keep draining so producers never block on a dead connection
				for range send {
				}
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for snap := range driver.Updates() {
			send <- outboundMessage[any]{Type: "state", Payload: snap}
		}
	}()

	if err := driver.Start(r.Context(), questions); err != nil {
		send <- errorMessage(err.Error())
	} else {
		h.readLoop(conn, driver, send)
	}

	driver.Stop()
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *QuizWSHandler) readLoop(conn *websocket.Conn, driver *quiz.Driver, send chan<- outboundMessage[any]) {
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.Option == nil {
				send <- errorMessage("invalid answer payload")
				continue
			}
			if _, err := driver.Select(*payload.Option); err != nil {
				send <- errorMessage(err.Error())
			}
		case "exit":
			driver.RequestExit()
		case "stay":
			driver.CancelExit()
		case "leave":
			driver.ConfirmExit()
		case "retrySave":
			if !driver.RetrySave() {
				send <- errorMessage("there is no failed save to retry")
			}
		default:
			send <- errorMessage("unsupported message type")
		}
	}
}
