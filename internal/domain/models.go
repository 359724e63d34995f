package domain

import "time"

// Mode selects how a quiz is played.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeDaily  Mode = "daily"
	ModeMatch  Mode = "multi"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeSingle, ModeDaily, ModeMatch:
		return true
	}
	return false
}

// HostUser is the player as described by the embedding host (Telegram).
type HostUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	PhotoURL  string `json:"photo_url"`
}

// DisplayName joins the name parts the host supplied.
func (u HostUser) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	}
	return u.Username
}

// Identity is the resolved player. Host is nil for anonymous local identities.
type Identity struct {
	PlayerID string
	Host     *HostUser
}

// PlayerProfile is a player's persistent record. Rank is never stored; it is
// the 1-based position in the leaderboard snapshot the profile was read from.
type PlayerProfile struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Points int    `json:"points"`
	Streak int    `json:"streak"`
	Rank   int    `json:"rank"`
}

// Leaderboard is a points-descending snapshot of profiles.
type Leaderboard struct {
	Entries   []PlayerProfile `json:"entries"`
	Degraded  bool            `json:"degraded"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Question is a multiple choice question. Options are expected to hold four entries.
type Question struct {
	ID                 string   `json:"id"`
	Text               string   `json:"text"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
	Explanation        string   `json:"explanation"`
}

// MatchStatus is the lifecycle of a match row.
type MatchStatus string

const (
	MatchWaiting  MatchStatus = "waiting"
	MatchPlaying  MatchStatus = "playing"
	MatchFinished MatchStatus = "finished"
)

// Slot identifies one of the two players of a match.
type Slot int

const (
	SlotPlayer1 Slot = 1
	SlotPlayer2 Slot = 2
)

// Valid reports whether s names a player slot.
func (s Slot) Valid() bool {
	return s == SlotPlayer1 || s == SlotPlayer2
}

// Other returns the opposing slot.
func (s Slot) Other() Slot {
	if s == SlotPlayer1 {
		return SlotPlayer2
	}
	return SlotPlayer1
}

// Match is a two-player quiz sharing one question set and one join code.
type Match struct {
	ID           string      `json:"id"`
	Code         string      `json:"code"`
	Topic        string      `json:"topic"`
	Status       MatchStatus `json:"status"`
	Player1ID    string      `json:"player1Id"`
	Player2ID    string      `json:"player2Id,omitempty"`
	Player1Score int         `json:"player1Score"`
	Player2Score int         `json:"player2Score"`
	Questions    []Question  `json:"questions"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// SlotOf derives which slot playerID occupies from the two player id fields.
func (m Match) SlotOf(playerID string) (Slot, bool) {
	switch {
	case playerID == "":
		return 0, false
	case m.Player1ID == playerID:
		return SlotPlayer1, true
	case m.Player2ID == playerID:
		return SlotPlayer2, true
	}
	return 0, false
}

// ScoreOf returns the score stored for slot.
func (m Match) ScoreOf(slot Slot) int {
	if slot == SlotPlayer2 {
		return m.Player2Score
	}
	return m.Player1Score
}

// AnswerOutcome classifies a single question.
type AnswerOutcome string

const (
	AnswerCorrect  AnswerOutcome = "correct"
	AnswerWrong    AnswerOutcome = "wrong"
	AnswerTimedOut AnswerOutcome = "timed_out"
)

// AnswerResult records how one question was answered.
type AnswerResult struct {
	QuestionID string        `json:"questionId"`
	Selected   int           `json:"selected"`
	Outcome    AnswerOutcome `json:"outcome"`
	Awarded    int           `json:"awarded"`
	Remaining  int           `json:"remaining"`
}

// QuizOutcome is the end-of-quiz classification.
type QuizOutcome string

const (
	OutcomeWin  QuizOutcome = "win"
	OutcomeDraw QuizOutcome = "draw"
	OutcomeLoss QuizOutcome = "loss"
)
