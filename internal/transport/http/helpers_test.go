package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"glassmind-quiz-service/internal/app"
	"glassmind-quiz-service/internal/dependencies/mocks"
	"glassmind-quiz-service/internal/domain"
	"glassmind-quiz-service/internal/infra/memory"
	"glassmind-quiz-service/internal/quiz"

	"github.com/stretchr/testify/require"
)

type offlineClient struct{}

func (offlineClient) Generate(context.Context, string, int) ([]domain.Question, error) {
	return nil, domain.ErrNoCredential
}

type testEnv struct {
	server   *httptest.Server
	profiles *memory.ProfileStore
	matches  *memory.MatchStore
}

func newTestEnv(t *testing.T, timing quiz.Timing) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := mocks.NewMockClock(time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC))

	profileStore := memory.NewProfileStore()
	matchStore := memory.NewMatchStore()
	questions := app.NewQuestionService(offlineClient{}, nil, clk, logger)

	router := NewRouter(RouterConfig{
		Logger:           logger,
		Profiles:         app.NewProfileService(profileStore, clk, mocks.NewMockRandom(), logger, time.Minute),
		Questions:        questions,
		Matches:          app.NewMatchCoordinator(matchStore, questions, clk, mocks.NewMockRandom(), logger, 2),
		Timing:           timing,
		TimerSeconds:     15,
		QuestionCount:    2,
		LeaderboardLimit: 50,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testEnv{server: server, profiles: profileStore, matches: matchStore}
}

// do sends a request as the given device. An empty device gets a fresh identity.
func (e *testEnv) do(t *testing.T, method, path, device string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if device != "" {
		req.Header.Set(HeaderDeviceID, device)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func initData(id int64, firstName string) string {
	user, _ := json.Marshal(domain.HostUser{ID: id, FirstName: firstName})
	return url.Values{"user": {string(user)}, "auth_date": {"1700000000"}}.Encode()
}

// newDevice registers a fresh device id by fetching a profile.
func (e *testEnv) newDevice(t *testing.T) string {
	t.Helper()
	resp := e.do(t, http.MethodGet, "/api/v1/profile", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := resp.Header.Get(HeaderDeviceID)
	require.Len(t, id, 36)
	return id
}
