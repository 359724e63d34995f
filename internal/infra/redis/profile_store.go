package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"glassmind-quiz-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

// ProfileStore keeps each profile in a hash and mirrors points into a sorted set
// that backs the leaderboard.
type ProfileStore struct {
	client *redis.Client
}

func NewProfileStore(client *redis.Client) *ProfileStore {
	return &ProfileStore{client: client}
}

// KEYS[1] profile hash, KEYS[2] leaderboard zset
// ARGV id, name, avatar, points, streak
var createProfileScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'id', ARGV[1], 'name', ARGV[2], 'avatar', ARGV[3], 'points', ARGV[4], 'streak', ARGV[5])
redis.call('ZADD', KEYS[2], ARGV[4], ARGV[1])
return 1
`)

// KEYS[1] profile hash, KEYS[2] leaderboard zset
// ARGV id, amount
var addPointsScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return false
end
local points = redis.call('HINCRBY', KEYS[1], 'points', ARGV[2])
redis.call('HINCRBY', KEYS[1], 'streak', 1)
redis.call('ZADD', KEYS[2], points, ARGV[1])
return redis.call('HGETALL', KEYS[1])
`)

// KEYS[1] profile hash
var resetStreakScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], 'streak', 0)
return 1
`)

func (s *ProfileStore) Get(ctx context.Context, id string) (domain.PlayerProfile, error) {
	fields, err := s.client.HGetAll(ctx, profileKey(id)).Result()
	if err != nil {
		return domain.PlayerProfile{}, fmt.Errorf("get profile: %w", err)
	}
	if len(fields) == 0 {
		return domain.PlayerProfile{}, domain.ErrProfileNotFound
	}
	return profileFromHash(fields), nil
}

func (s *ProfileStore) Create(ctx context.Context, p domain.PlayerProfile) error {
	created, err := createProfileScript.Run(ctx, s.client,
		[]string{profileKey(p.ID), leaderboardKey()},
		p.ID, p.Name, p.Avatar, p.Points, p.Streak,
	).Int()
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	if created == 0 {
		return domain.ErrProfileExists
	}
	return nil
}

func (s *ProfileStore) AddPoints(ctx context.Context, id string, amount int) (domain.PlayerProfile, error) {
	res, err := addPointsScript.Run(ctx, s.client, []string{profileKey(id), leaderboardKey()}, id, amount).StringSlice()
	if errors.Is(err, redis.Nil) {
		return domain.PlayerProfile{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.PlayerProfile{}, fmt.Errorf("add points: %w", err)
	}
	fields := make(map[string]string, len(res)/2)
	for i := 0; i+1 < len(res); i += 2 {
		fields[res[i]] = res[i+1]
	}
	return profileFromHash(fields), nil
}

func (s *ProfileStore) ResetStreak(ctx context.Context, id string) error {
	ok, err := resetStreakScript.Run(ctx, s.client, []string{profileKey(id)}).Int()
	if err != nil {
		return fmt.Errorf("reset streak: %w", err)
	}
	if ok == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

func (s *ProfileStore) Top(ctx context.Context, limit int) ([]domain.PlayerProfile, error) {
	ids, err := s.client.ZRevRange(ctx, leaderboardKey(), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, profileKey(id))
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("read leaderboard profiles: %w", err)
		}
	}

	out := make([]domain.PlayerProfile, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		out = append(out, profileFromHash(fields))
	}
	return out, nil
}

func (s *ProfileStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func profileFromHash(fields map[string]string) domain.PlayerProfile {
	points, _ := strconv.Atoi(fields["points"])
	streak, _ := strconv.Atoi(fields["streak"])
	return domain.PlayerProfile{
		ID:     fields["id"],
		Name:   fields["name"],
		Avatar: fields["avatar"],
		Points: points,
		Streak: streak,
	}
}
