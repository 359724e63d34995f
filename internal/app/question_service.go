package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"glassmind-quiz-service/internal/dependencies/clock"
	"glassmind-quiz-service/internal/domain"
)

const (
	// DefaultQuestionCount is the size of a regular quiz.
	DefaultQuestionCount = 10
	// DailyTopic is the composite topic of the daily challenge.
	DailyTopic = "General knowledge, science and current world events"
	// RandomTopic is what the "random" pseudo-topic resolves to.
	RandomTopic = "General Knowledge"

	optionsPerQuestion = 4
)

// QuestionClient generates questions from the upstream model.
type QuestionClient interface {
	Generate(ctx context.Context, topic string, count int) ([]domain.Question, error)
}

// QuestionCache stores the daily set for a given UTC day. load is invoked on a miss
// and its result is stored only when it returns no error.
type QuestionCache interface {
	GetDaily(ctx context.Context, day string, load func(context.Context) ([]domain.Question, error)) ([]domain.Question, error)
}

// QuestionService turns upstream output into a playable question set. It never fails:
// upstream trouble degrades to the demo set.
type QuestionService struct {
	client QuestionClient
	cache  QuestionCache
	clock  clock.Clock
	logger *slog.Logger
}

func NewQuestionService(client QuestionClient, cache QuestionCache, clk clock.Clock, logger *slog.Logger) *QuestionService {
	return &QuestionService{client: client, cache: cache, clock: clk, logger: logger}
}

// NormalizeTopic maps empty and "random" topics to the general topic.
func NormalizeTopic(topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" || strings.EqualFold(topic, "random") {
		return RandomTopic
	}
	return topic
}

// Generate returns exactly count questions about topic.
func (s *QuestionService) Generate(ctx context.Context, topic string, count int) []domain.Question {
	if count <= 0 {
		count = DefaultQuestionCount
	}
	topic = NormalizeTopic(topic)

	questions, err := s.fetch(ctx, topic, count)
	if err != nil {
		s.logFallback(topic, err)
		return fitCount(fallbackQuestions(topic), nil, count)
	}
	return fitCount(questions, fallbackQuestions(topic), count)
}

// Daily returns the daily challenge. Every caller on the same UTC day gets the same set
// unless generation failed, in which case the uncached demo set is served.
func (s *QuestionService) Daily(ctx context.Context) []domain.Question {
	day := s.clock.Now().UTC().Format("2006-01-02")
	if s.cache == nil {
		return s.Generate(ctx, DailyTopic, DefaultQuestionCount)
	}

	questions, err := s.cache.GetDaily(ctx, day, func(ctx context.Context) ([]domain.Question, error) {
		questions, err := s.fetch(ctx, DailyTopic, DefaultQuestionCount)
		if err != nil {
			return nil, err
		}
		return fitCount(questions, fallbackQuestions(DailyTopic), DefaultQuestionCount), nil
	})
	if err != nil {
		s.logFallback(DailyTopic, err)
		return fitCount(fallbackQuestions(DailyTopic), nil, DefaultQuestionCount)
	}
	return questions
}

// fetch calls the client, drops unusable questions and assigns run-unique ids.
func (s *QuestionService) fetch(ctx context.Context, topic string, count int) ([]domain.Question, error) {
	raw, err := s.client.Generate(ctx, topic, count)
	if err != nil {
		return nil, err
	}

	stamp := s.clock.Now().UnixMilli()
	valid := make([]domain.Question, 0, len(raw))
	for _, q := range raw {
		if !playable(q) {
			s.logger.Warn("dropping malformed question", slog.String("topic", topic), slog.String("text", q.Text))
			continue
		}
		q.ID = fmt.Sprintf("%s-%d-%d", topic, stamp, len(valid))
		valid = append(valid, q)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("no playable questions for %q: %w", topic, domain.ErrMalformedQuestions)
	}
	return valid, nil
}

func (s *QuestionService) logFallback(topic string, err error) {
	level := slog.LevelWarn
	if errors.Is(err, domain.ErrNoCredential) {
		level = slog.LevelInfo
	}
	s.logger.Log(context.Background(), level, "serving fallback questions", slog.String("topic", topic), slog.Any("error", err))
}

func playable(q domain.Question) bool {
	if strings.TrimSpace(q.Text) == "" || len(q.Options) != optionsPerQuestion {
		return false
	}
	return q.CorrectAnswerIndex >= 0 && q.CorrectAnswerIndex < optionsPerQuestion
}

// fitCount truncates questions to count or pads them by cycling through pad. When pad
// is nil the questions themselves are cycled. Padded entries get suffixed ids so that
// ids stay unique within the set.
func fitCount(questions, pad []domain.Question, count int) []domain.Question {
	if len(questions) >= count {
		return questions[:count]
	}
	if pad == nil {
		pad = questions
	}

	out := make([]domain.Question, 0, count)
	out = append(out, questions...)
	seen := make(map[string]struct{}, count)
	for _, q := range out {
		seen[q.ID] = struct{}{}
	}
	for i := 0; len(out) < count; i++ {
		q := pad[i%len(pad)]
		q.Options = append([]string(nil), q.Options...)
		if _, dup := seen[q.ID]; dup {
			q.ID = fmt.Sprintf("%s-%d", q.ID, i/len(pad)+1)
		}
		seen[q.ID] = struct{}{}
		out = append(out, q)
	}
	return out
}
