package app_test

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"glassmind-quiz-service/internal/domain"
)

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubClient returns canned questions or an error and counts calls.
type stubClient struct {
	mu        sync.Mutex
	questions []domain.Question
	err       error
	calls     int
}

func (c *stubClient) Generate(_ context.Context, _ string, count int) ([]domain.Question, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	out := c.questions
	if out == nil {
		out = makeQuestions(count)
	}
	return append([]domain.Question(nil), out...), nil
}

func (c *stubClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func makeQuestions(n int) []domain.Question {
	out := make([]domain.Question, n)
	for i := range out {
		out[i] = domain.Question{
			ID:                 "upstream",
			Text:               "Question?",
			Options:            []string{"a", "b", "c", "d"},
			CorrectAnswerIndex: i % 4,
			Explanation:        "because",
		}
	}
	return out
}
