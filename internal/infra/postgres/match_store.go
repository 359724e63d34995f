package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"glassmind-quiz-service/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// matchUpdatesChannel is notified with the match id by the matches_notify trigger.
const matchUpdatesChannel = "match_updates"

const matchColumns = `id, code, topic, status, player1_id, COALESCE(player2_id, ''),
	player1_score, player2_score, questions, created_at, updated_at`

// MatchStore persists matches in Postgres. Claims are single UPDATE statements guarded
// by status = 'waiting', so concurrent claims serialize on the row lock and only the
// first one matches.
type MatchStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewMatchStore(pool *pgxpool.Pool, logger *slog.Logger) *MatchStore {
	return &MatchStore{pool: pool, logger: logger}
}

func (s *MatchStore) Insert(ctx context.Context, m domain.Match) error {
	questions, err := json.Marshal(m.Questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO matches (id, code, topic, status, player1_id, player2_id, player1_score, player2_score, questions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11)`,
		m.ID, m.Code, m.Topic, string(m.Status), m.Player1ID, m.Player2ID,
		m.Player1Score, m.Player2Score, questions, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

func (s *MatchStore) Get(ctx context.Context, id string) (domain.Match, error) {
	m, err := scanMatch(s.pool.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Match{}, domain.ErrMatchNotFound
	}
	if err != nil {
		return domain.Match{}, fmt.Errorf("get match: %w", err)
	}
	return m, nil
}

func (s *MatchStore) FindByCode(ctx context.Context, code string) (domain.Match, error) {
	m, err := scanMatch(s.pool.QueryRow(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE code = $1 ORDER BY created_at DESC LIMIT 1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Match{}, domain.ErrMatchNotFound
	}
	if err != nil {
		return domain.Match{}, fmt.Errorf("find match by code: %w", err)
	}
	return m, nil
}

func (s *MatchStore) FindWaiting(ctx context.Context, excludeHost string) (domain.Match, error) {
	m, err := scanMatch(s.pool.QueryRow(ctx, `
		SELECT `+matchColumns+` FROM matches
		WHERE status = 'waiting' AND player1_id <> $1
		ORDER BY created_at DESC LIMIT 1`, excludeHost))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Match{}, domain.ErrNoOpenMatch
	}
	if err != nil {
		return domain.Match{}, fmt.Errorf("find waiting match: %w", err)
	}
	return m, nil
}

func (s *MatchStore) CodeInUse(ctx context.Context, code string) (bool, error) {
	var inUse bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM matches WHERE code = $1 AND status = 'waiting')`, code).Scan(&inUse)
	if err != nil {
		return false, fmt.Errorf("check code: %w", err)
	}
	return inUse, nil
}

func (s *MatchStore) Claim(ctx context.Context, matchID, playerID string) (domain.Match, error) {
	m, err := scanMatch(s.pool.QueryRow(ctx, `
		UPDATE matches SET player2_id = $2, status = 'playing', updated_at = now()
		WHERE id = $1 AND status = 'waiting' AND player1_id <> $2
		RETURNING `+matchColumns, matchID, playerID))
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Match{}, fmt.Errorf("claim match: %w", err)
	}

	current, getErr := s.Get(ctx, matchID)
	switch {
	case getErr != nil:
		return domain.Match{}, getErr
	case current.Player1ID == playerID:
		return domain.Match{}, domain.ErrOwnMatch
	}
	return domain.Match{}, domain.ErrMatchUnavailable
}

func (s *MatchStore) ClaimByCode(ctx context.Context, code, playerID string) (domain.Match, error) {
	// The outer status check is re-evaluated after waiting on a concurrent claimer's
	// row lock, which is what turns the loser's update into a no-op.
	m, err := scanMatch(s.pool.QueryRow(ctx, `
		UPDATE matches SET player2_id = $2, status = 'playing', updated_at = now()
		WHERE id = (
			SELECT id FROM matches
			WHERE code = $1 AND status = 'waiting' AND player1_id <> $2
			ORDER BY created_at DESC LIMIT 1
		) AND status = 'waiting'
		RETURNING `+matchColumns, code, playerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Match{}, domain.ErrMatchUnavailable
	}
	if err != nil {
		return domain.Match{}, fmt.Errorf("claim match by code: %w", err)
	}
	return m, nil
}

func (s *MatchStore) UpdateScore(ctx context.Context, matchID string, slot domain.Slot, score int) (domain.Match, error) {
	query := `UPDATE matches SET player1_score = $2, updated_at = now() WHERE id = $1 RETURNING ` + matchColumns
	if slot == domain.SlotPlayer2 {
		query = `UPDATE matches SET player2_score = $2, updated_at = now() WHERE id = $1 RETURNING ` + matchColumns
	}
	m, err := scanMatch(s.pool.QueryRow(ctx, query, matchID, score))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Match{}, domain.ErrMatchNotFound
	}
	if err != nil {
		return domain.Match{}, fmt.Errorf("update score: %w", err)
	}
	return m, nil
}

func (s *MatchStore) SetStatus(ctx context.Context, matchID string, status domain.MatchStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE matches SET status = $2, updated_at = now() WHERE id = $1`, matchID, string(status))
	if err != nil {
		return fmt.Errorf("set match status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMatchNotFound
	}
	return nil
}

func (s *MatchStore) DeleteWaitingByHost(ctx context.Context, playerID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM matches WHERE player1_id = $1 AND status = 'waiting'`, playerID)
	if err != nil {
		return 0, fmt.Errorf("delete waiting matches: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Subscribe holds a dedicated connection listening on match_updates and re-reads the
// match whenever its id is announced.
func (s *MatchStore) Subscribe(ctx context.Context, matchID string) (<-chan domain.Match, func(), error) {
	initial, err := s.Get(ctx, matchID)
	if err != nil {
		return nil, nil, err
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire listen conn: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+matchUpdatesChannel); err != nil {
		conn.Release()
		return nil, nil, fmt.Errorf("listen: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	out := make(chan domain.Match, 8)
	out <- initial

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)
		defer func() {
			// the connection goes back to the pool, so stop listening first
			_, _ = conn.Exec(context.Background(), "UNLISTEN "+matchUpdatesChannel)
			conn.Release()
		}()
		for {
			n, err := conn.Conn().WaitForNotification(subCtx)
			if err != nil {
				if subCtx.Err() == nil {
					s.logger.Warn("match listen failed", slog.String("match", matchID), slog.Any("error", err))
				}
				return
			}
			if n.Payload != matchID {
				continue
			}
			m, err := s.Get(subCtx, matchID)
			if err != nil {
				continue
			}
			sendLatest(out, m)
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
	return s.pool.Ping(ctx)
}

func scanMatch(row pgx.Row) (domain.Match, error) {
	var (
		m         domain.Match
		status    string
		questions []byte
	)
	err := row.Scan(&m.ID, &m.Code, &m.Topic, &status, &m.Player1ID, &m.Player2ID,
		&m.Player1Score, &m.Player2Score, &questions, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return domain.Match{}, err
	}
	m.Status = domain.MatchStatus(status)
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	if err := json.Unmarshal(questions, &m.Questions); err != nil {
		return domain.Match{}, fmt.Errorf("decode questions: %w", err)
	}
	return m, nil
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
