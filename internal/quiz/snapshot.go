package quiz

import "glassmind-quiz-service/internal/domain"

// Snapshot is the client-facing view of a Runtime.
type Snapshot struct {
	Mode        domain.Mode          `json:"mode"`
	Phase       Phase                `json:"phase"`
	Index       int                  `json:"index"`
	Total       int                  `json:"total"`
	Remaining   int                  `json:"remaining"`
	Score       int                  `json:"score"`
	Question    *QuestionView        `json:"question,omitempty"`
	Selected    *int                 `json:"selected,omitempty"`
	LastAnswer  *domain.AnswerResult `json:"lastAnswer,omitempty"`
	ExitConfirm bool                 `json:"exitConfirm"`
	Save        SaveStatus           `json:"save,omitempty"`
	SaveError   string               `json:"saveError,omitempty"`
	Opponent    *OpponentView        `json:"opponent,omitempty"`
	Outcome     domain.QuizOutcome   `json:"outcome,omitempty"`
}

// QuestionView omits the answer and explanation until the question is revealed.
type QuestionView struct {
	ID                 string   `json:"id"`
	Text               string   `json:"text"`
	Options            []string `json:"options"`
	CorrectAnswerIndex *int     `json:"correctAnswerIndex,omitempty"`
	Explanation        string   `json:"explanation,omitempty"`
}

type OpponentView struct {
	MatchID  string             `json:"matchId"`
	Code     string             `json:"code"`
	PlayerID string             `json:"playerId,omitempty"`
	Score    int                `json:"score"`
	Status   domain.MatchStatus `json:"status"`
}

func (r *Runtime) Snapshot() Snapshot {
	snap := Snapshot{
		Mode:        r.mode,
		Phase:       r.phase,
		Index:       r.index,
		Total:       len(r.questions),
		Remaining:   r.remaining,
		Score:       r.score,
		ExitConfirm: r.exitConfirm,
		Save:        r.save,
		SaveError:   r.saveError,
	}

	if r.phase == PhaseActive || r.phase == PhaseRevealing {
		q := r.current()
		view := &QuestionView{ID: q.ID, Text: q.Text, Options: q.Options}
		if r.phase == PhaseRevealing {
			idx := q.CorrectAnswerIndex
			view.CorrectAnswerIndex = &idx
			view.Explanation = q.Explanation
		}
		snap.Question = view
		if r.selected != noSelection {
			sel := r.selected
			snap.Selected = &sel
		}
	}
	if len(r.results) > 0 {
		last := r.results[len(r.results)-1]
		snap.LastAnswer = &last
	}

	if r.match != nil {
		snap.Opponent = &OpponentView{
			MatchID: r.match.ID,
			Code:    r.match.Code,
			Score:   r.opponentScore,
			Status:  r.match.Status,
		}
		if slot, ok := r.match.SlotOf(r.playerID); ok {
			if slot == domain.SlotPlayer1 {
				snap.Opponent.PlayerID = r.match.Player2ID
			} else {
				snap.Opponent.PlayerID = r.match.Player1ID
			}
		}
	}
	if r.phase == PhaseFinished {
		snap.Outcome = r.Outcome()
	}
	return snap
}
