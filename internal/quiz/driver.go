package quiz

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"glassmind-quiz-service/internal/domain"

	"golang.org/x/sync/errgroup"
)

const saveTimeout = 10 * time.Second

// ScoreSaver persists the final score of a solo or daily quiz.
type ScoreSaver interface {
	AddPoints(ctx context.Context, who domain.Identity, amount int) (domain.PlayerProfile, error)
}

// MatchSync reads and writes the shared match row during a match quiz.
type MatchSync interface {
	GetMatch(ctx context.Context, id string) (domain.Match, error)
	SubmitScore(ctx context.Context, id, playerID string, score int) (domain.Match, error)
	Finish(ctx context.Context, id string) error
	Watch(ctx context.Context, id string) (<-chan domain.Match, func(), error)
}

// Timing holds the real-time delays applied by a Driver.
type Timing struct {
	Tick               time.Duration
	RevealDelay        time.Duration
	TimeoutRevealDelay time.Duration
	OpponentPoll       time.Duration
}

// DefaultTiming is one second per time unit, a 3s pause after an answer, 3.5s after a
// timeout and an opponent poll every 3s.
func DefaultTiming() Timing {
	return Timing{
		Tick:               time.Second,
		RevealDelay:        3 * time.Second,
		TimeoutRevealDelay: 3500 * time.Millisecond,
		OpponentPoll:       3 * time.Second,
	}
}

// DriverConfig wires a Driver. Matches and MatchID are only used in match mode.
type DriverConfig struct {
	Identity domain.Identity
	Scores   ScoreSaver
	Matches  MatchSync
	MatchID  string
	Timing   Timing
	Logger   *slog.Logger
}

// Driver runs a Runtime against real time. Countdown, reveal timers, opponent polling
// and the match subscription all hang off one context and stop together.
type Driver struct {
	cfg DriverConfig

	mu      sync.Mutex
	rt      *Runtime
	timer   *time.Timer
	stopped bool
	updates chan Snapshot

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

func NewDriver(rt *Runtime, cfg DriverConfig) *Driver {
	def := DefaultTiming()
	if cfg.Timing.Tick <= 0 {
		cfg.Timing.Tick = def.Tick
	}
	if cfg.Timing.RevealDelay <= 0 {
		cfg.Timing.RevealDelay = def.RevealDelay
	}
	if cfg.Timing.TimeoutRevealDelay <= 0 {
		cfg.Timing.TimeoutRevealDelay = def.TimeoutRevealDelay
	}
	if cfg.Timing.OpponentPoll <= 0 {
		cfg.Timing.OpponentPoll = def.OpponentPoll
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Driver{cfg: cfg, rt: rt, updates: make(chan Snapshot, 8)}
}

// Updates delivers snapshots after every change. Slow readers lose intermediate
// snapshots, never the latest. The channel is closed by Stop.
func (d *Driver) Updates() <-chan Snapshot {
	return d.updates
}

// Start loads questions into the runtime and starts the background loops.
func (d *Driver) Start(ctx context.Context, questions []domain.Question) error {
	d.mu.Lock()
	if err := d.rt.Load(questions); err != nil {
		d.mu.Unlock()
		return err
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.group, d.ctx = errgroup.WithContext(d.ctx)
	d.publishLocked()
	d.mu.Unlock()

	d.group.Go(d.countdown)
	if d.rt.Mode() == domain.ModeMatch && d.cfg.Matches != nil && d.cfg.MatchID != "" {
		d.group.Go(d.pollOpponent)
		d.group.Go(d.watchOpponent)
	}
	return nil
}

// Stop cancels every timer, poll and subscription and waits for in-flight work.
func (d *Driver) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	cancel, group := d.cancel, d.group
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if group != nil {
		_ = group.Wait()
	}
	close(d.updates)
}

// Snapshot returns the current state.
func (d *Driver) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rt.Snapshot()
}

// Select answers the active question and schedules the reveal advance.
func (d *Driver) Select(option int) (domain.AnswerResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	result, err := d.rt.Select(option)
	if err != nil {
		return result, err
	}
	d.scheduleAdvanceLocked(d.cfg.Timing.RevealDelay)
	if d.rt.Mode() == domain.ModeMatch && result.Awarded > 0 {
		d.reportScoreLocked(d.rt.Score())
	}
	d.publishLocked()
	return result, nil
}

// RequestExit opens the exit confirmation. It returns true when the quiz exited at once.
func (d *Driver) RequestExit() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	exited := d.rt.RequestExit()
	d.publishLocked()
	return exited
}

func (d *Driver) CancelExit() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rt.CancelExit() {
		d.afterAdvanceLocked()
	}
	d.publishLocked()
}

func (d *Driver) ConfirmExit() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rt.ConfirmExit()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.publishLocked()
}

// RetrySave repeats a failed score save.
func (d *Driver) RetrySave() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.rt.RetrySave() {
		return false
	}
	d.saveLocked()
	d.publishLocked()
	return true
}

func (d *Driver) countdown() error {
	ticker := time.NewTicker(d.cfg.Timing.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-d.ctx.Done():
			return nil
		case <-ticker.C:
			d.mu.Lock()
			switch d.rt.Tick() {
			case TickCounted:
				d.publishLocked()
			case TickTimedOut:
				d.scheduleAdvanceLocked(d.cfg.Timing.TimeoutRevealDelay)
				d.publishLocked()
			}
			d.mu.Unlock()
		}
	}
}

func (d *Driver) pollOpponent() error {
	ticker := time.NewTicker(d.cfg.Timing.OpponentPoll)
	defer ticker.Stop()
	for {
		select {
		case <-d.ctx.Done():
			return nil
		case <-ticker.C:
			m, err := d.cfg.Matches.GetMatch(d.ctx, d.cfg.MatchID)
			if err != nil {
				if d.ctx.Err() == nil {
					d.cfg.Logger.Warn("opponent poll failed", slog.String("match", d.cfg.MatchID), slog.Any("error", err))
				}
				continue
			}
			d.applyMatch(m)
		}
	}
}

func (d *Driver) watchOpponent() error {
	updates, cancel, err := d.cfg.Matches.Watch(d.ctx, d.cfg.MatchID)
	if err != nil {
		d.cfg.Logger.Warn("match subscription unavailable, relying on polling", slog.String("match", d.cfg.MatchID), slog.Any("error", err))
		return nil
	}
	defer cancel()
	for {
		select {
		case <-d.ctx.Done():
			return nil
		case m, ok := <-updates:
			if !ok {
				return nil
			}
			d.applyMatch(m)
		}
	}
}

func (d *Driver) applyMatch(m domain.Match) {
	d.mu.Lock()
	defer d.mu.Unlock()
	before := d.rt.OpponentScore()
	d.rt.ApplyMatch(m)
	if d.rt.OpponentScore() != before || d.rt.Phase() == PhaseFinished {
		d.publishLocked()
	}
}

func (d *Driver) scheduleAdvanceLocked(delay time.Duration) {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(delay, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.stopped {
			return
		}
		if d.rt.Advance() {
			d.afterAdvanceLocked()
		}
		d.publishLocked()
	})
}

// afterAdvanceLocked runs the side effects of reaching the end of the quiz.
func (d *Driver) afterAdvanceLocked() {
	if d.rt.Phase() != PhaseFinished {
		return
	}
	if d.rt.Mode() == domain.ModeMatch {
		d.finishMatchLocked()
		return
	}
	if d.rt.BeginSave() {
		d.saveLocked()
	}
}

func (d *Driver) saveLocked() {
	if d.cfg.Scores == nil {
		d.rt.CompleteSave(nil)
		return
	}
	score := d.rt.Score()
	d.goDetached(func(ctx context.Context) {
		_, err := d.cfg.Scores.AddPoints(ctx, d.cfg.Identity, score)
		if err != nil {
			d.cfg.Logger.Error("score save failed", slog.String("player", d.cfg.Identity.PlayerID), slog.Int("score", score), slog.Any("error", err))
		}
		d.mu.Lock()
		defer d.mu.Unlock()
		d.rt.CompleteSave(err)
		d.publishLocked()
	})
}

func (d *Driver) reportScoreLocked(score int) {
	if d.cfg.Matches == nil || d.cfg.MatchID == "" {
		return
	}
	d.goDetached(func(ctx context.Context) {
		if _, err := d.cfg.Matches.SubmitScore(ctx, d.cfg.MatchID, d.cfg.Identity.PlayerID, score); err != nil {
			d.cfg.Logger.Warn("match score update failed", slog.String("match", d.cfg.MatchID), slog.Any("error", err))
		}
	})
}

func (d *Driver) finishMatchLocked() {
	if d.cfg.Matches == nil || d.cfg.MatchID == "" {
		return
	}
	score := d.rt.Score()
	d.goDetached(func(ctx context.Context) {
		// the final score goes first so the opponent never sees a finished row without it
		if _, err := d.cfg.Matches.SubmitScore(ctx, d.cfg.MatchID, d.cfg.Identity.PlayerID, score); err != nil {
			d.cfg.Logger.Warn("final match score update failed", slog.String("match", d.cfg.MatchID), slog.Any("error", err))
		}
		if err := d.cfg.Matches.Finish(ctx, d.cfg.MatchID); err != nil {
			d.cfg.Logger.Warn("match finish failed", slog.String("match", d.cfg.MatchID), slog.Any("error", err))
		}
	})
}

// goDetached runs writes that must outlive a closing connection, bounded by saveTimeout.
func (d *Driver) goDetached(fn func(ctx context.Context)) {
	if d.group == nil || d.stopped {
		return
	}
	parent := context.WithoutCancel(d.ctx)
	d.group.Go(func() error {
		ctx, cancel := context.WithTimeout(parent, saveTimeout)
		defer cancel()
		fn(ctx)
		return nil
	})
}

func (d *Driver) publishLocked() {
	if d.stopped {
		return
	}
	snap := d.rt.Snapshot()
	select {
	case d.updates <- snap:
	default:
		select {
		case <-d.updates:
		default:
		}
		d.updates <- snap
	}
}
