package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"glassmind-quiz-service/internal/domain"
	"glassmind-quiz-service/internal/quiz"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// answerTiming never times out on its own; questions advance only after answers.
var answerTiming = quiz.Timing{
	Tick:               time.Hour,
	RevealDelay:        5 * time.Millisecond,
	TimeoutRevealDelay: 5 * time.Millisecond,
	OpponentPoll:       10 * time.Millisecond,
}

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func dial(t *testing.T, env *testEnv, path, device string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(env.server.URL, "http") + path
	header := http.Header{}
	if device != "" {
		header.Set(HeaderDeviceID, device)
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// readState skips messages until a state snapshot satisfies match.
func readState(t *testing.T, conn *websocket.Conn, match func(quiz.Snapshot) bool) quiz.Snapshot {
	t.Helper()
	for {
		msg := readMessage(t, conn)
		if msg.Type != "state" {
			continue
		}
		var snap quiz.Snapshot
		require.NoError(t, json.Unmarshal(msg.Payload, &snap))
		if match(snap) {
			return snap
		}
	}
}

func answer(t *testing.T, conn *websocket.Conn, option int) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "answer", "payload": map[string]int{"option": option}}))
}

func awaitingAnswer(index int) func(quiz.Snapshot) bool {
	return func(s quiz.Snapshot) bool {
		return s.Phase == quiz.PhaseActive && s.Index == index && s.Selected == nil
	}
}

func TestQuizSocketSoloSavesOnce(t *testing.T) {
	env := newTestEnv(t, answerTiming)
	device := env.newDevice(t)
	conn := dial(t, env, "/ws/quiz?mode=single&topic=History", device)

	first := readState(t, conn, awaitingAnswer(0))
	assert.Equal(t, 2, first.Total)
	assert.Equal(t, 15, first.Remaining)
	require.NotNil(t, first.Question)
	assert.Nil(t, first.Question.CorrectAnswerIndex)

	// the first fallback question is answered by option 0
	answer(t, conn, 0)
	revealed := readState(t, conn, func(s quiz.Snapshot) bool { return s.Phase == quiz.PhaseRevealing })
	require.NotNil(t, revealed.LastAnswer)
	assert.Equal(t, domain.AnswerCorrect, revealed.LastAnswer.Outcome)
	assert.Equal(t, 130, revealed.Score)
	require.NotNil(t, revealed.Question.CorrectAnswerIndex)

	readState(t, conn, awaitingAnswer(1))
	answer(t, conn, 1)

	done := readState(t, conn, func(s quiz.Snapshot) bool {
		return s.Phase == quiz.PhaseFinished && s.Save == quiz.SaveSaved
	})
	assert.Equal(t, 130, done.Score)
	assert.Equal(t, domain.OutcomeLoss, done.Outcome)

	profile, err := env.profiles.Get(context.Background(), device)
	require.NoError(t, err)
	assert.Equal(t, 230, profile.Points)
	assert.Equal(t, 1, profile.Streak)
}

func TestQuizSocketRejectsSecondAnswer(t *testing.T) {
	env := newTestEnv(t, quiz.Timing{Tick: time.Hour, RevealDelay: time.Hour, TimeoutRevealDelay: time.Hour, OpponentPoll: time.Hour})
	conn := dial(t, env, "/ws/quiz?mode=single", env.newDevice(t))

	readState(t, conn, awaitingAnswer(0))
	answer(t, conn, 0)
	answer(t, conn, 1)

	for {
		msg := readMessage(t, conn)
		if msg.Type == "error" {
			var payload errorPayload
			require.NoError(t, json.Unmarshal(msg.Payload, &payload))
			assert.Equal(t, quiz.ErrNotAccepting.Error(), payload.Message)
			return
		}
	}
}

func TestQuizSocketExitOverlay(t *testing.T) {
	env := newTestEnv(t, answerTiming)
	conn := dial(t, env, "/ws/quiz?mode=daily", env.newDevice(t))

	readState(t, conn, awaitingAnswer(0))
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "exit"}))
	readState(t, conn, func(s quiz.Snapshot) bool { return s.ExitConfirm })

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "stay"}))
	readState(t, conn, func(s quiz.Snapshot) bool { return !s.ExitConfirm && s.Phase == quiz.PhaseActive })

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "exit"}))
	readState(t, conn, func(s quiz.Snapshot) bool { return s.ExitConfirm })
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "leave"}))
	readState(t, conn, func(s quiz.Snapshot) bool { return s.Phase == quiz.PhaseExited })
}

func TestQuizSocketRejectsUnknownMode(t *testing.T) {
	env := newTestEnv(t, answerTiming)
	resp := env.do(t, http.MethodGet, "/ws/quiz?mode=arcade", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQuizSocketMatchRequiresParticipant(t *testing.T) {
	env := newTestEnv(t, answerTiming)
	host := env.newDevice(t)
	resp := env.do(t, http.MethodPost, "/api/v1/matches", host, createMatchRequest{Topic: "Science"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	match := decode[domain.Match](t, resp)

	resp = env.do(t, http.MethodGet, "/ws/quiz?mode=multi&matchId="+match.ID, env.newDevice(t), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestQuizSocketMatchReportsScore(t *testing.T) {
	env := newTestEnv(t, answerTiming)
	host, guest := env.newDevice(t), env.newDevice(t)

	resp := env.do(t, http.MethodPost, "/api/v1/matches", host, createMatchRequest{Topic: "Science"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	match := decode[domain.Match](t, resp)
	resp = env.do(t, http.MethodPost, "/api/v1/matches/join", guest, joinMatchRequest{Code: match.Code})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	conn := dial(t, env, "/ws/quiz?mode=multi&matchId="+match.ID, guest)
	readState(t, conn, awaitingAnswer(0))
	answer(t, conn, 0)
	readState(t, conn, awaitingAnswer(1))
	answer(t, conn, 0)
	done := readState(t, conn, func(s quiz.Snapshot) bool { return s.Phase == quiz.PhaseFinished })
	assert.Equal(t, 260, done.Score)
	assert.Equal(t, domain.OutcomeWin, done.Outcome)
	assert.Empty(t, done.Save)

	require.Eventually(t, func() bool {
		m, err := env.matches.Get(context.Background(), match.ID)
		return err == nil && m.Status == domain.MatchFinished && m.Player2Score == 260
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMatchSocketStreamsJoin(t *testing.T) {
	env := newTestEnv(t, answerTiming)
	host, guest := env.newDevice(t), env.newDevice(t)
	resp := env.do(t, http.MethodPost, "/api/v1/matches", host, createMatchRequest{Topic: "Science"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	match := decode[domain.Match](t, resp)

	conn := dial(t, env, "/ws/matches/"+match.ID, host)
	first := readMessage(t, conn)
	require.Equal(t, "match", first.Type)
	var waiting domain.Match
	require.NoError(t, json.Unmarshal(first.Payload, &waiting))
	assert.Equal(t, domain.MatchWaiting, waiting.Status)

	resp = env.do(t, http.MethodPost, "/api/v1/matches/join", guest, joinMatchRequest{Code: match.Code})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	next := readMessage(t, conn)
	var playing domain.Match
	require.NoError(t, json.Unmarshal(next.Payload, &playing))
	assert.Equal(t, domain.MatchPlaying, playing.Status)
	assert.Equal(t, guest, playing.Player2ID)
}

func TestMatchSocketUnknownMatch(t *testing.T) {
	env := newTestEnv(t, answerTiming)
	resp := env.do(t, http.MethodGet, "/ws/matches/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
