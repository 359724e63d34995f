package mocks

import (
	"fmt"
	"sync"

	"glassmind-quiz-service/internal/dependencies/random"
)

// MockRandom returns queued values from Intn, then 0 once the queue is drained.
// UUID returns queued ids, then sequential ones.
type MockRandom struct {
	mu      sync.Mutex
	results []int
	index   int
	uuids   []string
	issued  int
}

var _ random.Random = (*MockRandom)(nil)

func NewMockRandom(values ...int) *MockRandom {
	return &MockRandom{results: values}
}

func (r *MockRandom) Intn(int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index >= len(r.results) {
		return 0
	}
	result := r.results[r.index]
	r.index++
	return result
}

// QueueIntn appends values to the result queue.
func (r *MockRandom) QueueIntn(values ...int) {
	r.mu.Lock()
	r.results = append(r.results, values...)
	r.mu.Unlock()
}

func (r *MockRandom) UUID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issued++
	if len(r.uuids) > 0 {
		id := r.uuids[0]
		r.uuids = r.uuids[1:]
		return id
	}
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", r.issued)
}

// QueueUUID appends ids to be returned by UUID.
func (r *MockRandom) QueueUUID(ids ...string) {
	r.mu.Lock()
	r.uuids = append(r.uuids, ids...)
	r.mu.Unlock()
}
