package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"glassmind-quiz-service/internal/app"
	"glassmind-quiz-service/internal/domain"

	"github.com/gorilla/mux"
)

const maxQuestionCount = 50

type apiHandler struct {
	cfg RouterConfig
}

type healthResponse struct {
	Connected bool   `json:"connected"`
	Message   string `json:"message"`
}

type createMatchRequest struct {
	Topic string `json:"topic"`
	Code  string `json:"code,omitempty"`
}

type joinMatchRequest struct {
	Code string `json:"code"`
}

type scoreRequest struct {
	Score *int `json:"score"`
}

type quickMatchResponse struct {
	Match   domain.Match `json:"match"`
	Hosting bool         `json:"hosting"`
}

// health reports store connectivity for the status banner. It never fails the request.
func (h *apiHandler) health(w http.ResponseWriter, r *http.Request) {
	ok, msg := h.cfg.Profiles.CheckConnection(r.Context())
	if ok {
		if err := h.cfg.Matches.Ping(r.Context()); err != nil {
			ok, msg = false, "Multiplayer is unavailable right now"
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{Connected: ok, Message: msg})
}

func (h *apiHandler) profile(w http.ResponseWriter, r *http.Request) {
	who, _ := IdentityFrom(r.Context())
	profile, err := h.cfg.Profiles.GetOrCreate(r.Context(), who)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *apiHandler) resetStreak(w http.ResponseWriter, r *http.Request) {
	who, _ := IdentityFrom(r.Context())
	if err := h.cfg.Profiles.ResetStreak(r.Context(), who.PlayerID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *apiHandler) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", h.cfg.LeaderboardLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cfg.Profiles.Leaderboard(r.Context(), limit))
}

func (h *apiHandler) questions(w http.ResponseWriter, r *http.Request) {
	count, err := intParam(r, "count", h.cfg.QuestionCount)
	if err != nil {
		writeError(w, err)
		return
	}
	if count > maxQuestionCount {
		writeError(w, invalidRequest("count must be at most 50"))
		return
	}
	topic := r.URL.Query().Get("topic")
	writeJSON(w, http.StatusOK, h.cfg.Questions.Generate(r.Context(), topic, count))
}

func (h *apiHandler) dailyQuestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cfg.Questions.Daily(r.Context()))
}

func (h *apiHandler) createMatch(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, invalidRequest("invalid request body"))
		return
	}
	who, _ := IdentityFrom(r.Context())
	match, err := h.cfg.Matches.CreateMatch(r.Context(), who.PlayerID, app.NormalizeTopic(req.Topic), req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, match)
}

func (h *apiHandler) quickMatch(w http.ResponseWriter, r *http.Request) {
	who, _ := IdentityFrom(r.Context())
	match, hosting, err := h.cfg.Matches.QuickMatch(r.Context(), who.PlayerID)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if hosting {
		status = http.StatusCreated
	}
	writeJSON(w, status, quickMatchResponse{Match: match, Hosting: hosting})
}

func (h *apiHandler) joinMatch(w http.ResponseWriter, r *http.Request) {
	var req joinMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, invalidRequest("code is required"))
		return
	}
	who, _ := IdentityFrom(r.Context())
	match, err := h.cfg.Matches.JoinMatch(r.Context(), req.Code, who.PlayerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

func (h *apiHandler) getMatch(w http.ResponseWriter, r *http.Request) {
	match, err := h.cfg.Matches.GetMatch(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

func (h *apiHandler) updateScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Score == nil || *req.Score < 0 {
		writeError(w, invalidRequest("score must be a non-negative number"))
		return
	}
	who, _ := IdentityFrom(r.Context())
	match, err := h.cfg.Matches.SubmitScore(r.Context(), mux.Vars(r)["id"], who.PlayerID, *req.Score)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, invalidRequest(name + " must be a positive number")
	}
	return v, nil
}
