package app_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"glassmind-quiz-service/internal/app"
	"glassmind-quiz-service/internal/dependencies/mocks"
	"glassmind-quiz-service/internal/domain"
	"glassmind-quiz-service/internal/infra/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

func newQuestionService(client app.QuestionClient) *app.QuestionService {
	return app.NewQuestionService(client, memory.NewQuestionCache(time.Hour), mocks.NewMockClock(fixedNow), nopLogger())
}

func TestGenerateFallsBackWithoutCredential(t *testing.T) {
	svc := newQuestionService(&stubClient{err: domain.ErrNoCredential})

	questions := svc.Generate(context.Background(), "History", 5)
	require.Len(t, questions, 5)
	assert.Contains(t, questions[0].Text, "History")
	for i, q := range questions {
		assert.Equal(t, fmt.Sprintf("m%d", i+1), q.ID)
		assert.Len(t, q.Options, 4)
	}
}

func TestGeneratePadsFallbackToCount(t *testing.T) {
	svc := newQuestionService(&stubClient{err: domain.ErrUpstream})

	questions := svc.Generate(context.Background(), "History", 10)
	require.Len(t, questions, 10)

	ids := make(map[string]struct{})
	for _, q := range questions {
		ids[q.ID] = struct{}{}
	}
	assert.Len(t, ids, 10, "padded ids must stay unique")
	assert.Equal(t, "m1-1", questions[5].ID)
	assert.Equal(t, questions[0].Text, questions[5].Text)
}

func TestGenerateRewritesIDs(t *testing.T) {
	svc := newQuestionService(&stubClient{})

	questions := svc.Generate(context.Background(), "Space", 10)
	require.Len(t, questions, 10)
	for i, q := range questions {
		assert.Equal(t, fmt.Sprintf("Space-%d-%d", fixedNow.UnixMilli(), i), q.ID)
	}
}

func TestGenerateDropsMalformedQuestions(t *testing.T) {
	good := makeQuestions(3)
	bad := []domain.Question{
		{Text: "three options", Options: []string{"a", "b", "c"}},
		{Text: "index out of range", Options: []string{"a", "b", "c", "d"}, CorrectAnswerIndex: 4},
		{Text: "", Options: []string{"a", "b", "c", "d"}},
	}
	svc := newQuestionService(&stubClient{questions: append(bad, good...)})

	questions := svc.Generate(context.Background(), "Art", 5)
	require.Len(t, questions, 5)
	for i := 0; i < 3; i++ {
		assert.True(t, strings.HasPrefix(questions[i].ID, "Art-"), questions[i].ID)
	}
	assert.Equal(t, "m1", questions[3].ID)
	assert.Equal(t, "m2", questions[4].ID)
}

func TestGenerateAllMalformedUsesFallback(t *testing.T) {
	svc := newQuestionService(&stubClient{questions: []domain.Question{{Text: "x", Options: []string{"a"}}}})

	questions := svc.Generate(context.Background(), "Art", 5)
	require.Len(t, questions, 5)
	assert.Equal(t, "m1", questions[0].ID)
}

func TestGenerateTruncatesLongResults(t *testing.T) {
	svc := newQuestionService(&stubClient{questions: makeQuestions(12)})
	assert.Len(t, svc.Generate(context.Background(), "Art", 10), 10)
}

func TestRandomTopicMapsToGeneralKnowledge(t *testing.T) {
	svc := newQuestionService(&stubClient{err: domain.ErrUpstream})
	questions := svc.Generate(context.Background(), "random", 5)
	assert.Contains(t, questions[0].Text, app.RandomTopic)
	assert.Equal(t, app.RandomTopic, app.NormalizeTopic("  "))
	assert.Equal(t, "Chess", app.NormalizeTopic("Chess"))
}

func TestDailyIsCachedPerDay(t *testing.T) {
	client := &stubClient{}
	svc := newQuestionService(client)

	first := svc.Daily(context.Background())
	second := svc.Daily(context.Background())
	require.Len(t, first, 10)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, client.Calls())
	assert.True(t, strings.HasPrefix(first[0].ID, app.DailyTopic))
}

func TestDailyFallbackIsNotCached(t *testing.T) {
	client := &stubClient{err: domain.ErrUpstream}
	svc := newQuestionService(client)

	questions := svc.Daily(context.Background())
	require.Len(t, questions, 10)
	assert.Equal(t, "m1", questions[0].ID)

	client.mu.Lock()
	client.err = nil
	client.mu.Unlock()

	questions = svc.Daily(context.Background())
	assert.NotEqual(t, "m1", questions[0].ID)
	assert.Equal(t, 2, client.Calls())
}
