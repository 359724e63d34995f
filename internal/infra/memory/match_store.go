package memory

import (
	"context"
	"sync"
	"time"

	"glassmind-quiz-service/internal/domain"
)

// MatchStore is an in-memory implementation of app.MatchRepository. All conditional
// writes happen under one lock, so claims are atomic.
type MatchStore struct {
	now func() time.Time

	mu          sync.RWMutex
	matches     map[string]domain.Match
	order       []string
	subscribers map[string]map[chan domain.Match]struct{}
}

func NewMatchStore() *MatchStore {
	return &MatchStore{
		now:         time.Now,
		matches:     make(map[string]domain.Match),
		subscribers: make(map[string]map[chan domain.Match]struct{}),
	}
}

func (s *MatchStore) Insert(_ context.Context, m domain.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[m.ID] = m
	s.order = append(s.order, m.ID)
	return nil
}

func (s *MatchStore) Get(_ context.Context, id string) (domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[id]
	if !ok {
		return domain.Match{}, domain.ErrMatchNotFound
	}
	return m, nil
}

func (s *MatchStore) FindByCode(_ context.Context, code string) (domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.newestLocked(func(m domain.Match) bool { return m.Code == code }); ok {
		return m, nil
	}
	return domain.Match{}, domain.ErrMatchNotFound
}

func (s *MatchStore) FindWaiting(_ context.Context, excludeHost string) (domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.newestLocked(func(m domain.Match) bool {
		return m.Status == domain.MatchWaiting && m.Player1ID != excludeHost
	}); ok {
		return m, nil
	}
	return domain.Match{}, domain.ErrNoOpenMatch
}

func (s *MatchStore) CodeInUse(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.newestLocked(func(m domain.Match) bool {
		return m.Code == code && m.Status == domain.MatchWaiting
	})
	return ok, nil
}

func (s *MatchStore) Claim(_ context.Context, matchID, playerID string) (domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return domain.Match{}, domain.ErrMatchNotFound
	}
	if m.Player1ID == playerID {
		return domain.Match{}, domain.ErrOwnMatch
	}
	if m.Status != domain.MatchWaiting {
		return domain.Match{}, domain.ErrMatchUnavailable
	}
	return s.claimLocked(m, playerID), nil
}

func (s *MatchStore) ClaimByCode(_ context.Context, code, playerID string) (domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.newestLocked(func(m domain.Match) bool {
		return m.Code == code && m.Status == domain.MatchWaiting && m.Player1ID != playerID
	})
	if !ok {
		return domain.Match{}, domain.ErrMatchUnavailable
	}
	return s.claimLocked(m, playerID), nil
}

func (s *MatchStore) UpdateScore(_ context.Context, matchID string, slot domain.Slot, score int) (domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return domain.Match{}, domain.ErrMatchNotFound
	}
	if slot == domain.SlotPlayer1 {
		m.Player1Score = score
	} else {
		m.Player2Score = score
	}
	m.UpdatedAt = s.now().UTC()
	s.matches[matchID] = m
	s.broadcastLocked(m)
	return m, nil
}

func (s *MatchStore) SetStatus(_ context.Context, matchID string, status domain.MatchStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return domain.ErrMatchNotFound
	}
	m.Status = status
	m.UpdatedAt = s.now().UTC()
	s.matches[matchID] = m
	s.broadcastLocked(m)
	return nil
}

func (s *MatchStore) DeleteWaitingByHost(_ context.Context, playerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.order[:0]
	removed := 0
	for _, id := range s.order {
		m := s.matches[id]
		if m.Player1ID == playerID && m.Status == domain.MatchWaiting {
			delete(s.matches, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return removed, nil
}

// Subscribe delivers the current match immediately and then every change. Slow readers
// lose intermediate states, never the latest one.
func (s *MatchStore) Subscribe(ctx context.Context, matchID string) (<-chan domain.Match, func(), error) {
	ch := make(chan domain.Match, 8)

	s.mu.Lock()
	m, ok := s.matches[matchID]
	if !ok {
		s.mu.Unlock()
		return nil, nil, domain.ErrMatchNotFound
	}
	subs := s.subscribers[matchID]
	if subs == nil {
		subs = make(map[chan domain.Match]struct{})
		s.subscribers[matchID] = subs
	}
	subs[ch] = struct{}{}
	ch <- m
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			if subs, ok := s.subscribers[matchID]; ok {
				if _, ok := subs[ch]; ok {
					delete(subs, ch)
					close(ch)
				}
				if len(subs) == 0 {
					delete(s.subscribers, matchID)
				}
			}
			s.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch, cancel, nil
}

func (s *MatchStore) Ping(context.Context) error {
	return nil
}

func (s *MatchStore) claimLocked(m domain.Match, playerID string) domain.Match {
	m.Player2ID = playerID
	m.Status = domain.MatchPlaying
	m.UpdatedAt = s.now().UTC()
	s.matches[m.ID] = m
	s.broadcastLocked(m)
	return m
}

func (s *MatchStore) newestLocked(match func(domain.Match) bool) (domain.Match, bool) {
	for i := len(s.order) - 1; i >= 0; i-- {
		if m, ok := s.matches[s.order[i]]; ok && match(m) {
			return m, true
		}
	}
	return domain.Match{}, false
}

func (s *MatchStore) broadcastLocked(m domain.Match) {
	for ch := range s.subscribers[m.ID] {
		select {
		case ch <- m:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- m
		}
	}
}
