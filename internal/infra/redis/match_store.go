package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"glassmind-quiz-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

// MatchStore keeps each match in a hash. Claims run as Lua scripts so the status check
// and the write are one atomic step; changes are announced on a per-match channel.
//
// Indexes:
//
//	quiz:matches:waiting     zset of waiting match ids scored by creation time
//	quiz:match-code:{code}   zset of match ids using a join code
//	quiz:match-host:{player} set of match ids hosted by a player
type MatchStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func NewMatchStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *MatchStore {
	return &MatchStore{client: client, ttl: ttl, now: time.Now, logger: logger}
}

// KEYS[1] match hash, KEYS[2] waiting zset
// ARGV player, updated_at
// Returns 1 on success, 0 when not waiting, -1 when missing, -2 for the host itself.
var claimScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
if redis.call('HGET', KEYS[1], 'player1_id') == ARGV[1] then
	return -2
end
if redis.call('HGET', KEYS[1], 'status') ~= 'waiting' then
	return 0
end
redis.call('HSET', KEYS[1], 'player2_id', ARGV[1], 'status', 'playing', 'updated_at', ARGV[2])
redis.call('ZREM', KEYS[2], redis.call('HGET', KEYS[1], 'id'))
return 1
`)

// KEYS[1] code zset, KEYS[2] waiting zset
// ARGV player, updated_at, match key prefix
// Returns the claimed id, or nil when no waiting match accepted the claim.
var claimByCodeScript = redis.NewScript(`
local ids = redis.call('ZREVRANGE', KEYS[1], 0, -1)
for _, id in ipairs(ids) do
	local key = ARGV[3] .. id
	if redis.call('HGET', key, 'status') == 'waiting' and redis.call('HGET', key, 'player1_id') ~= ARGV[1] then
		redis.call('HSET', key, 'player2_id', ARGV[1], 'status', 'playing', 'updated_at', ARGV[2])
		redis.call('ZREM', KEYS[2], id)
		return id
	end
end
return false
`)

// KEYS[1] match hash, KEYS[2] waiting zset
// ARGV field, value, updated_at
var setFieldScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2], 'updated_at', ARGV[3])
if redis.call('HGET', KEYS[1], 'status') ~= 'waiting' then
	redis.call('ZREM', KEYS[2], redis.call('HGET', KEYS[1], 'id'))
end
return 1
`)

// KEYS[1] match hash, KEYS[2] waiting zset, KEYS[3] code zset, KEYS[4] host set
// ARGV id, host
var deleteWaitingScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'status') ~= 'waiting' or redis.call('HGET', KEYS[1], 'player1_id') ~= ARGV[2] then
	redis.call('SREM', KEYS[4], ARGV[1])
	return 0
end
redis.call('DEL', KEYS[1])
redis.call('ZREM', KEYS[2], ARGV[1])
redis.call('ZREM', KEYS[3], ARGV[1])
redis.call('SREM', KEYS[4], ARGV[1])
return 1
`)

func (s *MatchStore) Insert(ctx context.Context, m domain.Match) error {
	questions, err := json.Marshal(m.Questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	created := m.CreatedAt.UnixMilli()

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, matchKey(m.ID),
		"id", m.ID,
		"code", m.Code,
		"topic", m.Topic,
		"status", string(m.Status),
		"player1_id", m.Player1ID,
		"player2_id", m.Player2ID,
		"player1_score", m.Player1Score,
		"player2_score", m.Player2Score,
		"questions", questions,
		"created_at", created,
		"updated_at", m.UpdatedAt.UnixMilli(),
	)
	pipe.ZAdd(ctx, matchCodeKey(m.Code), redis.Z{Score: float64(created), Member: m.ID})
	pipe.SAdd(ctx, matchHostKey(m.Player1ID), m.ID)
	if m.Status == domain.MatchWaiting {
		pipe.ZAdd(ctx, waitingMatchesKey(), redis.Z{Score: float64(created), Member: m.ID})
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, matchKey(m.ID), s.ttl)
		pipe.Expire(ctx, matchCodeKey(m.Code), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

func (s *MatchStore) Get(ctx context.Context, id string) (domain.Match, error) {
	fields, err := s.client.HGetAll(ctx, matchKey(id)).Result()
	if err != nil {
		return domain.Match{}, fmt.Errorf("get match: %w", err)
	}
	if len(fields) == 0 {
		return domain.Match{}, domain.ErrMatchNotFound
	}
	return matchFromHash(fields)
}

func (s *MatchStore) FindByCode(ctx context.Context, code string) (domain.Match, error) {
	ids, err := s.client.ZRevRange(ctx, matchCodeKey(code), 0, -1).Result()
	if err != nil {
		return domain.Match{}, fmt.Errorf("find match by code: %w", err)
	}
	for _, id := range ids {
		m, err := s.Get(ctx, id)
		if errors.Is(err, domain.ErrMatchNotFound) {
			continue
		}
		return m, err
	}
	return domain.Match{}, domain.ErrMatchNotFound
}

func (s *MatchStore) FindWaiting(ctx context.Context, excludeHost string) (domain.Match, error) {
	ids, err := s.client.ZRevRange(ctx, waitingMatchesKey(), 0, -1).Result()
	if err != nil {
		return domain.Match{}, fmt.Errorf("find waiting match: %w", err)
	}
	for _, id := range ids {
		m, err := s.Get(ctx, id)
		if errors.Is(err, domain.ErrMatchNotFound) {
			// expired hash; drop the stale index entry
			s.client.ZRem(ctx, waitingMatchesKey(), id)
			continue
		}
		if err != nil {
			return domain.Match{}, err
		}
		if m.Status == domain.MatchWaiting && m.Player1ID != excludeHost {
			return m, nil
		}
	}
	return domain.Match{}, domain.ErrNoOpenMatch
}

func (s *MatchStore) CodeInUse(ctx context.Context, code string) (bool, error) {
	ids, err := s.client.ZRange(ctx, matchCodeKey(code), 0, -1).Result()
	if err != nil {
		return false, fmt.Errorf("check code: %w", err)
	}
	for _, id := range ids {
		status, err := s.client.HGet(ctx, matchKey(id), "status").Result()
		if err == nil && status == string(domain.MatchWaiting) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MatchStore) Claim(ctx context.Context, matchID, playerID string) (domain.Match, error) {
	res, err := claimScript.Run(ctx, s.client, []string{matchKey(matchID), waitingMatchesKey()}, playerID, s.stamp()).Int()
	if err != nil {
		return domain.Match{}, fmt.Errorf("claim match: %w", err)
	}
	switch res {
	case -1:
		return domain.Match{}, domain.ErrMatchNotFound
	case -2:
		return domain.Match{}, domain.ErrOwnMatch
	case 0:
		return domain.Match{}, domain.ErrMatchUnavailable
	}
	return s.changed(ctx, matchID)
}

func (s *MatchStore) ClaimByCode(ctx context.Context, code, playerID string) (domain.Match, error) {
	id, err := claimByCodeScript.Run(ctx, s.client,
		[]string{matchCodeKey(code), waitingMatchesKey()},
		playerID, s.stamp(), matchKeyPrefix(),
	).Text()
	if errors.Is(err, redis.Nil) {
		return domain.Match{}, domain.ErrMatchUnavailable
	}
	if err != nil {
		return domain.Match{}, fmt.Errorf("claim match by code: %w", err)
	}
	return s.changed(ctx, id)
}

func (s *MatchStore) UpdateScore(ctx context.Context, matchID string, slot domain.Slot, score int) (domain.Match, error) {
	field := "player1_score"
	if slot == domain.SlotPlayer2 {
		field = "player2_score"
	}
	if err := s.setField(ctx, matchID, field, strconv.Itoa(score)); err != nil {
		return domain.Match{}, err
	}
	return s.changed(ctx, matchID)
}

func (s *MatchStore) SetStatus(ctx context.Context, matchID string, status domain.MatchStatus) error {
	if err := s.setField(ctx, matchID, "status", string(status)); err != nil {
		return err
	}
	_, err := s.changed(ctx, matchID)
	return err
}

func (s *MatchStore) DeleteWaitingByHost(ctx context.Context, playerID string) (int, error) {
	ids, err := s.client.SMembers(ctx, matchHostKey(playerID)).Result()
	if err != nil {
		return 0, fmt.Errorf("list hosted matches: %w", err)
	}
	removed := 0
	for _, id := range ids {
		code, _ := s.client.HGet(ctx, matchKey(id), "code").Result()
		n, err := deleteWaitingScript.Run(ctx, s.client,
			[]string{matchKey(id), waitingMatchesKey(), matchCodeKey(code), matchHostKey(playerID)},
			id, playerID,
		).Int()
		if err != nil {
			return removed, fmt.Errorf("delete waiting match: %w", err)
		}
		removed += n
	}
	return removed, nil
}

// Subscribe sends the current match, then re-reads it on every notification.
func (s *MatchStore) Subscribe(ctx context.Context, matchID string) (<-chan domain.Match, func(), error) {
	initial, err := s.Get(ctx, matchID)
	if err != nil {
		return nil, nil, err
	}

	pubsub := s.client.Subscribe(ctx, matchChannel(matchID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe match: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	out := make(chan domain.Match, 8)
	out <- initial

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)
		defer pubsub.Close()
		msgs := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				m, err := s.Get(subCtx, matchID)
				if err != nil {
					if subCtx.Err() == nil {
						s.logger.Warn("match refresh failed", slog.String("match", matchID), slog.Any("error", err))
					}
					continue
				}
				sendLatest(out, m)
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}
	return out, stop, nil
}

func (s *MatchStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *MatchStore) setField(ctx context.Context, matchID, field, value string) error {
	ok, err := setFieldScript.Run(ctx, s.client, []string{matchKey(matchID), waitingMatchesKey()}, field, value, s.stamp()).Int()
	if err != nil {
		return fmt.Errorf("update match: %w", err)
	}
	if ok == 0 {
		return domain.ErrMatchNotFound
	}
	return nil
}

// changed reads the match back and announces it to subscribers.
func (s *MatchStore) changed(ctx context.Context, matchID string) (domain.Match, error) {
	m, err := s.Get(ctx, matchID)
	if err != nil {
		return domain.Match{}, err
	}
	if err := s.client.Publish(ctx, matchChannel(matchID), m.UpdatedAt.UnixMilli()).Err(); err != nil {
		s.logger.Warn("match publish failed", slog.String("match", matchID), slog.Any("error", err))
	}
	return m, nil
}

func (s *MatchStore) stamp() int64 {
	return s.now().UnixMilli()
}

func sendLatest(ch chan domain.Match, m domain.Match) {
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

func matchFromHash(fields map[string]string) (domain.Match, error) {
	m := domain.Match{
		ID:        fields["id"],
		Code:      fields["code"],
		Topic:     fields["topic"],
		Status:    domain.MatchStatus(fields["status"]),
		Player1ID: fields["player1_id"],
		Player2ID: fields["player2_id"],
	}
	m.Player1Score, _ = strconv.Atoi(fields["player1_score"])
	m.Player2Score, _ = strconv.Atoi(fields["player2_score"])
	if created, err := strconv.ParseInt(fields["created_at"], 10, 64); err == nil {
		m.CreatedAt = time.UnixMilli(created).UTC()
	}
	if updated, err := strconv.ParseInt(fields["updated_at"], 10, 64); err == nil {
		m.UpdatedAt = time.UnixMilli(updated).UTC()
	}
	if raw := fields["questions"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &m.Questions); err != nil {
			return domain.Match{}, fmt.Errorf("decode questions: %w", err)
		}
	}
	return m, nil
}
