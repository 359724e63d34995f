package quiz

import (
	"errors"

	"glassmind-quiz-service/internal/domain"
)

// Phase is the position of a quiz in its lifecycle.
type Phase string

const (
	PhaseLoading   Phase = "loading"
	PhaseActive    Phase = "active"
	PhaseRevealing Phase = "revealing"
	PhaseFinished  Phase = "finished"
	PhaseExited    Phase = "exited"
)

// SaveStatus tracks persistence of the final score.
type SaveStatus string

const (
	SaveIdle   SaveStatus = ""
	SaveSaving SaveStatus = "saving"
	SaveSaved  SaveStatus = "saved"
	SaveFailed SaveStatus = "failed"
)

// TickResult reports what a countdown tick did.
type TickResult int

const (
	TickIgnored TickResult = iota
	TickCounted
	TickTimedOut
)

const (
	// NoAnswer is recorded as the selection when the timer runs out.
	NoAnswer = -1
	// DefaultTimerSeconds is the time allowed per question.
	DefaultTimerSeconds = 15

	basePoints   = 100
	dailyBonus   = 50
	winThreshold = 200
	noSelection  = -2
)

var (
	ErrNoQuestions   = errors.New("quiz has no questions")
	ErrNotAccepting  = errors.New("answers are not accepted right now")
	ErrInvalidOption = errors.New("option out of range")
)

// Options configure a Runtime.
type Options struct {
	Mode         domain.Mode
	PlayerID     string
	TimerSeconds int
}

// Runtime is the quiz state machine. It holds no clock: time passes only through
// Tick, and every transition is an explicit call. It is not safe for concurrent use.
type Runtime struct {
	mode         domain.Mode
	playerID     string
	timerSeconds int

	questions []domain.Question
	phase     Phase
	index     int
	remaining int
	selected  int
	score     int
	results   []domain.AnswerResult

	exitConfirm     bool
	deferredAdvance bool

	save      SaveStatus
	saveError string

	match         *domain.Match
	opponentScore int
}

func NewRuntime(opts Options) *Runtime {
	if opts.TimerSeconds <= 0 {
		opts.TimerSeconds = DefaultTimerSeconds
	}
	if !opts.Mode.Valid() {
		opts.Mode = domain.ModeSingle
	}
	return &Runtime{
		mode:         opts.Mode,
		playerID:     opts.PlayerID,
		timerSeconds: opts.TimerSeconds,
		phase:        PhaseLoading,
		selected:     noSelection,
	}
}

// Load starts the quiz on its first question.
func (r *Runtime) Load(questions []domain.Question) error {
	if r.phase != PhaseLoading {
		return ErrNotAccepting
	}
	if len(questions) == 0 {
		return ErrNoQuestions
	}
	r.questions = questions
	r.results = make([]domain.AnswerResult, 0, len(questions))
	r.startQuestion(0)
	return nil
}

// Tick counts one time unit down on the active question. Reaching zero reveals the
// question as timed out.
func (r *Runtime) Tick() TickResult {
	if r.phase != PhaseActive || r.exitConfirm || r.selected != noSelection {
		return TickIgnored
	}
	if r.remaining > 0 {
		r.remaining--
	}
	if r.remaining > 0 {
		return TickCounted
	}

	r.selected = NoAnswer
	r.results = append(r.results, domain.AnswerResult{
		QuestionID: r.current().ID,
		Selected:   NoAnswer,
		Outcome:    domain.AnswerTimedOut,
	})
	r.phase = PhaseRevealing
	return TickTimedOut
}

// Select answers the active question. Only the first selection per question counts.
func (r *Runtime) Select(option int) (domain.AnswerResult, error) {
	if r.phase != PhaseActive || r.exitConfirm || r.selected != noSelection {
		return domain.AnswerResult{}, ErrNotAccepting
	}
	q := r.current()
	if option < 0 || option >= len(q.Options) {
		return domain.AnswerResult{}, ErrInvalidOption
	}

	result := domain.AnswerResult{
		QuestionID: q.ID,
		Selected:   option,
		Outcome:    domain.AnswerWrong,
		Remaining:  r.remaining,
	}
	if option == q.CorrectAnswerIndex {
		result.Outcome = domain.AnswerCorrect
		result.Awarded = r.pointsFor(r.remaining)
		r.score += result.Awarded
	}
	r.selected = option
	r.results = append(r.results, result)
	r.phase = PhaseRevealing
	return result, nil
}

// Advance leaves the revealed question. While the exit overlay is open the move is
// held back until CancelExit. It reports whether the phase changed.
func (r *Runtime) Advance() bool {
	if r.phase != PhaseRevealing {
		return false
	}
	if r.exitConfirm {
		r.deferredAdvance = true
		return false
	}
	r.deferredAdvance = false
	if r.index+1 >= len(r.questions) {
		r.phase = PhaseFinished
		return true
	}
	r.startQuestion(r.index + 1)
	return true
}

// RequestExit opens the exit confirmation and pauses the quiz. A finished quiz exits
// immediately, reported by the return value.
func (r *Runtime) RequestExit() bool {
	switch r.phase {
	case PhaseFinished, PhaseExited, PhaseLoading:
		r.phase = PhaseExited
		return true
	}
	r.exitConfirm = true
	return false
}

// CancelExit closes the overlay. The countdown resumes only if the question is still
// unanswered; an advance that came due meanwhile happens now and is reported.
func (r *Runtime) CancelExit() bool {
	if !r.exitConfirm {
		return false
	}
	r.exitConfirm = false
	if r.deferredAdvance {
		return r.Advance()
	}
	return false
}

// ConfirmExit abandons the quiz.
func (r *Runtime) ConfirmExit() {
	r.exitConfirm = false
	r.deferredAdvance = false
	r.phase = PhaseExited
}

// BeginSave marks the score as being persisted. It returns true exactly once per
// finished solo or daily quiz.
func (r *Runtime) BeginSave() bool {
	if r.phase != PhaseFinished || r.mode == domain.ModeMatch || r.save != SaveIdle {
		return false
	}
	r.save = SaveSaving
	return true
}

// CompleteSave records the outcome of a save started by BeginSave or RetrySave.
func (r *Runtime) CompleteSave(err error) {
	if r.save != SaveSaving {
		return
	}
	if err != nil {
		r.save = SaveFailed
		r.saveError = err.Error()
		return
	}
	r.save = SaveSaved
	r.saveError = ""
}

// RetrySave restarts a failed save. The score is kept in memory until then.
func (r *Runtime) RetrySave() bool {
	if r.save != SaveFailed {
		return false
	}
	r.save = SaveSaving
	return true
}

// ApplyMatch refreshes opponent data from the latest match row. The opponent score is
// recomputed from the row each time, so stale or repeated rows are harmless.
func (r *Runtime) ApplyMatch(m domain.Match) {
	slot, ok := m.SlotOf(r.playerID)
	if !ok {
		return
	}
	r.match = &m
	r.opponentScore = m.ScoreOf(slot.Other())
}

// Outcome classifies the result against the opponent or the solo threshold.
func (r *Runtime) Outcome() domain.QuizOutcome {
	if r.mode == domain.ModeMatch {
		switch {
		case r.score > r.opponentScore:
			return domain.OutcomeWin
		case r.score == r.opponentScore:
			return domain.OutcomeDraw
		}
		return domain.OutcomeLoss
	}
	if r.score > winThreshold {
		return domain.OutcomeWin
	}
	return domain.OutcomeLoss
}

func (r *Runtime) Phase() Phase { return r.phase }
func (r *Runtime) Mode() domain.Mode { return r.mode }
func (r *Runtime) Score() int { return r.score }
func (r *Runtime) Remaining() int { return r.remaining }
func (r *Runtime) Index() int { return r.index }
func (r *Runtime) ExitConfirm() bool { return r.exitConfirm }
func (r *Runtime) SaveStatus() SaveStatus { return r.save }
func (r *Runtime) OpponentScore() int { return r.opponentScore }

// Results returns a copy of the per-question results so far.
func (r *Runtime) Results() []domain.AnswerResult {
	return append([]domain.AnswerResult(nil), r.results...)
}

func (r *Runtime) startQuestion(i int) {
	r.index = i
	r.remaining = r.timerSeconds
	r.selected = noSelection
	r.phase = PhaseActive
}

func (r *Runtime) current() domain.Question {
	return r.questions[r.index]
}

func (r *Runtime) pointsFor(remaining int) int {
	points := basePoints + remaining*2
	if r.mode == domain.ModeDaily {
		points += dailyBonus
	}
	return points
}
