package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"glassmind-quiz-service/internal/dependencies/clock"
	"glassmind-quiz-service/internal/dependencies/random"
	"glassmind-quiz-service/internal/domain"
)

const codeAttempts = 5

// MatchRepository stores matches. Claims are single conditional writes: they succeed only
// while the match is still waiting and was not created by the claimant.
type MatchRepository interface {
	Insert(ctx context.Context, m domain.Match) error
	Get(ctx context.Context, id string) (domain.Match, error)
	// FindByCode returns the most recent match with code, in any status.
	FindByCode(ctx context.Context, code string) (domain.Match, error)
	// FindWaiting returns one waiting match not hosted by excludeHost, or domain.ErrNoOpenMatch.
	FindWaiting(ctx context.Context, excludeHost string) (domain.Match, error)
	CodeInUse(ctx context.Context, code string) (bool, error)
	Claim(ctx context.Context, matchID, playerID string) (domain.Match, error)
	// ClaimByCode returns domain.ErrMatchUnavailable when no waiting match accepted the claim.
	ClaimByCode(ctx context.Context, code, playerID string) (domain.Match, error)
	UpdateScore(ctx context.Context, matchID string, slot domain.Slot, score int) (domain.Match, error)
	SetStatus(ctx context.Context, matchID string, status domain.MatchStatus) error
	DeleteWaitingByHost(ctx context.Context, playerID string) (int, error)
	// Subscribe streams the match after every change. cancel must be called to release it.
	Subscribe(ctx context.Context, matchID string) (<-chan domain.Match, func(), error)
	Ping(ctx context.Context) error
}

// QuestionGenerator produces question sets; it never fails.
type QuestionGenerator interface {
	Generate(ctx context.Context, topic string, count int) []domain.Question
}

// MatchCoordinator creates, pairs and scores two-player matches.
type MatchCoordinator struct {
	repo          MatchRepository
	questions     QuestionGenerator
	clock         clock.Clock
	random        random.Random
	logger        *slog.Logger
	questionCount int
}

func NewMatchCoordinator(repo MatchRepository, questions QuestionGenerator, clk clock.Clock, rnd random.Random, logger *slog.Logger, questionCount int) *MatchCoordinator {
	if questionCount <= 0 {
		questionCount = DefaultQuestionCount
	}
	return &MatchCoordinator{
		repo:          repo,
		questions:     questions,
		clock:         clk,
		random:        rnd,
		logger:        logger,
		questionCount: questionCount,
	}
}

// CreateMatch hosts a new waiting match. code may be empty to get a random one.
func (c *MatchCoordinator) CreateMatch(ctx context.Context, playerID, topic, code string) (domain.Match, error) {
	if code != "" && !ValidJoinCode(code) {
		return domain.Match{}, domain.ErrInvalidCode
	}

	// Abandoned lobbies of this host would otherwise be offered to quick match forever,
	// and would keep their own custom code busy.
	if n, err := c.repo.DeleteWaitingByHost(ctx, playerID); err != nil {
		c.logger.Warn("zombie match cleanup failed", slog.String("player", playerID), slog.Any("error", err))
	} else if n > 0 {
		c.logger.Info("removed zombie matches", slog.String("player", playerID), slog.Int("count", n))
	}

	if code != "" {
		inUse, err := c.repo.CodeInUse(ctx, code)
		if err != nil {
			return domain.Match{}, fmt.Errorf("check join code: %w", err)
		}
		if inUse {
			return domain.Match{}, domain.ErrCodeInUse
		}
	} else {
		code = c.pickCode(ctx)
	}

	topic = NormalizeTopic(topic)
	now := c.clock.Now().UTC()
	match := domain.Match{
		ID:        c.random.UUID(),
		Code:      code,
		Topic:     topic,
		Status:    domain.MatchWaiting,
		Player1ID: playerID,
		Questions: c.questions.Generate(ctx, topic, c.questionCount),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.repo.Insert(ctx, match); err != nil {
		return domain.Match{}, fmt.Errorf("insert match: %w", err)
	}
	c.logger.Info("match created", slog.String("match", match.ID), slog.String("code", match.Code), slog.String("topic", topic))
	return match, nil
}

// FindQuickMatch claims any waiting match hosted by someone else.
func (c *MatchCoordinator) FindQuickMatch(ctx context.Context, playerID string) (domain.Match, error) {
	candidate, err := c.repo.FindWaiting(ctx, playerID)
	if err != nil {
		return domain.Match{}, err
	}
	match, err := c.repo.Claim(ctx, candidate.ID, playerID)
	if err != nil {
		return domain.Match{}, err
	}
	c.logger.Info("quick match joined", slog.String("match", match.ID), slog.String("player", playerID))
	return match, nil
}

// QuickMatch joins an open match or, when none can be claimed, hosts a random-topic one.
// hosting reports which of the two happened.
func (c *MatchCoordinator) QuickMatch(ctx context.Context, playerID string) (match domain.Match, hosting bool, err error) {
	match, err = c.FindQuickMatch(ctx, playerID)
	if err == nil {
		return match, false, nil
	}
	if !errors.Is(err, domain.ErrNoOpenMatch) && !errors.Is(err, domain.ErrMatchUnavailable) {
		return domain.Match{}, false, err
	}
	match, err = c.CreateMatch(ctx, playerID, RandomTopic, "")
	if err != nil {
		return domain.Match{}, false, err
	}
	return match, true, nil
}

// JoinMatch claims the waiting match behind code. Of several concurrent joins exactly
// one succeeds; the others get domain.ErrMatchUnavailable.
func (c *MatchCoordinator) JoinMatch(ctx context.Context, code, playerID string) (domain.Match, error) {
	if !ValidJoinCode(code) {
		return domain.Match{}, domain.ErrMatchNotFound
	}
	match, err := c.repo.ClaimByCode(ctx, code, playerID)
	if err == nil {
		c.logger.Info("match joined", slog.String("match", match.ID), slog.String("player", playerID))
		return match, nil
	}
	if !errors.Is(err, domain.ErrMatchUnavailable) {
		return domain.Match{}, fmt.Errorf("join match: %w", err)
	}

	latest, lookupErr := c.repo.FindByCode(ctx, code)
	switch {
	case errors.Is(lookupErr, domain.ErrMatchNotFound):
		return domain.Match{}, domain.ErrMatchNotFound
	case lookupErr != nil:
		return domain.Match{}, err
	case latest.Player1ID == playerID && latest.Status == domain.MatchWaiting:
		return domain.Match{}, domain.ErrOwnMatch
	}
	return domain.Match{}, domain.ErrMatchUnavailable
}

func (c *MatchCoordinator) GetMatch(ctx context.Context, id string) (domain.Match, error) {
	return c.repo.Get(ctx, id)
}

// UpdateScore overwrites the score field of one slot. Last write wins.
func (c *MatchCoordinator) UpdateScore(ctx context.Context, id string, slot domain.Slot, score int) (domain.Match, error) {
	if !slot.Valid() {
		return domain.Match{}, domain.ErrInvalidSlot
	}
	return c.repo.UpdateScore(ctx, id, slot, score)
}

// SubmitScore resolves playerID to its slot and records score there.
func (c *MatchCoordinator) SubmitScore(ctx context.Context, id, playerID string, score int) (domain.Match, error) {
	match, err := c.repo.Get(ctx, id)
	if err != nil {
		return domain.Match{}, err
	}
	slot, ok := match.SlotOf(playerID)
	if !ok {
		return domain.Match{}, domain.ErrNotParticipant
	}
	return c.UpdateScore(ctx, id, slot, score)
}

func (c *MatchCoordinator) Finish(ctx context.Context, id string) error {
	return c.repo.SetStatus(ctx, id, domain.MatchFinished)
}

// Watch streams the match after every change.
func (c *MatchCoordinator) Watch(ctx context.Context, id string) (<-chan domain.Match, func(), error) {
	return c.repo.Subscribe(ctx, id)
}

func (c *MatchCoordinator) Ping(ctx context.Context) error {
	return c.repo.Ping(ctx)
}

// pickCode draws random six digit codes, skipping ones held by waiting matches. After a
// few attempts the last draw is used as is.
func (c *MatchCoordinator) pickCode(ctx context.Context) string {
	var code string
	for i := 0; i < codeAttempts; i++ {
		code = strconv.Itoa(100000 + c.random.Intn(900000))
		inUse, err := c.repo.CodeInUse(ctx, code)
		if err != nil || !inUse {
			return code
		}
	}
	return code
}

// ValidJoinCode reports whether code is six digits without a leading zero.
func ValidJoinCode(code string) bool {
	if len(code) != 6 || code[0] == '0' {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
