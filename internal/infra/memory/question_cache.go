package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"glassmind-quiz-service/internal/domain"

	"golang.org/x/sync/singleflight"
)

// QuestionCache keeps daily question sets in process with a TTL.
type QuestionCache struct {
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand
	rndMu sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedQuestions
}

type cachedQuestions struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionCache(ttl time.Duration) *QuestionCache {
	return NewQuestionCacheWithClock(ttl, time.Now)
}

// NewQuestionCacheWithClock lets tests control expiry.
func NewQuestionCacheWithClock(ttl time.Duration, now func() time.Time) *QuestionCache {
	return &QuestionCache{
		ttl:   ttl,
		clock: now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedQuestions),
	}
}

func (c *QuestionCache) GetDaily(ctx context.Context, day string, load func(context.Context) ([]domain.Question, error)) ([]domain.Question, error) {
	if questions, ok := c.lookup(day); ok {
		return questions, nil
	}

	result, err, _ := c.sf.Do(day, func() (interface{}, error) {
		if questions, ok := c.lookup(day); ok {
			return questions, nil
		}

		questions, err := load(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[day] = cachedQuestions{
			questions: questions,
			expiresAt: c.clock().Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *QuestionCache) lookup(day string) ([]domain.Question, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[day]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return nil, false
	}
	return entry.questions, true
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
