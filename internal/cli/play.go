package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"glassmind-quiz-service/internal/app"
	"glassmind-quiz-service/internal/config"
	"glassmind-quiz-service/internal/domain"
	"glassmind-quiz-service/internal/identity"
	"glassmind-quiz-service/internal/quiz"

	"github.com/spf13/cobra"
)

type playOptions struct {
	mode     string
	topic    string
	count    int
	initData string
	idFile   string
}

// NewPlayCmd plays a solo or daily quiz in the terminal against the configured stores.
func NewPlayCmd(configPath *string) *cobra.Command {
	opts := playOptions{}
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a solo or daily quiz in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd.Context(), *configPath, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.mode, "mode", string(domain.ModeSingle), "quiz mode: single or daily")
	cmd.Flags().StringVar(&opts.topic, "topic", "random", "topic for single mode")
	cmd.Flags().IntVar(&opts.count, "count", 0, "number of questions (single mode)")
	cmd.Flags().StringVar(&opts.initData, "init-data", os.Getenv("TELEGRAM_INIT_DATA"), "Telegram init data to play as a host user")
	cmd.Flags().StringVar(&opts.idFile, "identity-file", "", "where the local player id is kept (default: user config dir)")
	return cmd
}

func runPlay(ctx context.Context, configPath string, opts playOptions, in io.Reader, out io.Writer) error {
	mode := domain.Mode(opts.mode)
	if mode != domain.ModeSingle && mode != domain.ModeDaily {
		return fmt.Errorf("mode must be %q or %q", domain.ModeSingle, domain.ModeDaily)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	svc, err := buildServices(ctx, cfg, st, logger)
	if err != nil {
		return err
	}
	defer svc.gemini.Close()

	idFile := opts.idFile
	if idFile == "" {
		if idFile, err = identity.DefaultFilePath(); err != nil {
			return err
		}
	}
	who, err := identity.Chain{
		identity.NewHostResolver(opts.initData),
		identity.NewLocalResolver(identity.NewFileStorage(idFile)),
	}.Resolve(ctx)
	if err != nil {
		return err
	}

	profile, _ := svc.profiles.GetOrCreate(ctx, who)
	if ok, msg := svc.profiles.CheckConnection(ctx); !ok {
		fmt.Fprintf(out, "! %s\n", msg)
	}
	fmt.Fprintf(out, "Hi %s: %d points, streak %d\n", profile.Name, profile.Points, profile.Streak)

	var questions []domain.Question
	if mode == domain.ModeDaily {
		questions = svc.questions.Daily(ctx)
	} else {
		questions = svc.questions.Generate(ctx, opts.topic, config.IntOr(opts.count, config.IntOr(cfg.Quiz.QuestionCount, app.DefaultQuestionCount)))
	}

	driver := quiz.NewDriver(
		quiz.NewRuntime(quiz.Options{Mode: mode, PlayerID: who.PlayerID, TimerSeconds: config.IntOr(cfg.Quiz.TimerSeconds, quiz.DefaultTimerSeconds)}),
		quiz.DriverConfig{Identity: who, Scores: svc.profiles, Timing: timingFrom(cfg), Logger: logger},
	)
	if err := driver.Start(ctx, questions); err != nil {
		return err
	}
	defer driver.Stop()

	fmt.Fprintln(out, "Answer with 1-4. q opens the exit prompt.")
	return playLoop(ctx, driver, readLines(in), out)
}

func readLines(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- strings.TrimSpace(strings.ToLower(scanner.Text()))
		}
	}()
	return lines
}

// playLoop renders snapshots and forwards keyboard input until the quiz ends.
func playLoop(ctx context.Context, driver *quiz.Driver, lines <-chan string, out io.Writer) error {
	r := &terminalRenderer{out: out, lastIndex: -1}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-driver.Updates():
			if !ok {
				return nil
			}
			r.render(snap)
			switch {
			case snap.Phase == quiz.PhaseExited:
				return nil
			case snap.Phase == quiz.PhaseFinished && snap.Save == quiz.SaveSaved:
				return nil
			}
		case line, ok := <-lines:
			if !ok {
				driver.ConfirmExit()
				return nil
			}
			handleInput(driver, line, out)
		}
	}
}

func handleInput(driver *quiz.Driver, line string, out io.Writer) {
	snap := driver.Snapshot()
	switch {
	case snap.ExitConfirm && (line == "y" || line == "yes"):
		driver.ConfirmExit()
	case snap.ExitConfirm:
		driver.CancelExit()
	case line == "q":
		driver.RequestExit()
	case line == "r" && snap.Save == quiz.SaveFailed:
		driver.RetrySave()
	case snap.Phase == quiz.PhaseFinished && snap.Save == quiz.SaveFailed:
		driver.ConfirmExit()
	default:
		n, err := strconv.Atoi(line)
		if err != nil {
			fmt.Fprintln(out, "? type 1-4, or q")
			return
		}
		if _, err := driver.Select(n - 1); err != nil {
			fmt.Fprintf(out, "? %v\n", err)
		}
	}
}

type terminalRenderer struct {
	out        io.Writer
	lastIndex  int
	lastPhase  quiz.Phase
	lastExit   bool
	lastSave   quiz.SaveStatus
	lastMinute int
}

func (r *terminalRenderer) render(s quiz.Snapshot) {
	defer func() {
		r.lastPhase, r.lastExit, r.lastSave = s.Phase, s.ExitConfirm, s.Save
	}()

	if s.ExitConfirm && !r.lastExit {
		fmt.Fprintln(r.out, "Leave the quiz? Progress will be lost. [y/N]")
		return
	}

	switch s.Phase {
	case quiz.PhaseActive:
		if s.Index != r.lastIndex && s.Question != nil {
			r.lastIndex = s.Index
			fmt.Fprintf(r.out, "\nQuestion %d/%d (score %d)\n%s\n", s.Index+1, s.Total, s.Score, s.Question.Text)
			for i, opt := range s.Question.Options {
				fmt.Fprintf(r.out, "  %d) %s\n", i+1, opt)
			}
		}
		if s.Remaining > 0 && s.Remaining%5 == 0 && s.Remaining != r.lastMinute {
			r.lastMinute = s.Remaining
			fmt.Fprintf(r.out, "  %ds left\n", s.Remaining)
		}
	case quiz.PhaseRevealing:
		if r.lastPhase == quiz.PhaseRevealing || s.LastAnswer == nil || s.Question == nil {
			return
		}
		switch s.LastAnswer.Outcome {
		case domain.AnswerCorrect:
			fmt.Fprintf(r.out, "Correct! +%d\n", s.LastAnswer.Awarded)
		case domain.AnswerTimedOut:
			fmt.Fprintln(r.out, "Time is up.")
		default:
			fmt.Fprintln(r.out, "Wrong.")
		}
		if s.Question.CorrectAnswerIndex != nil {
			idx := *s.Question.CorrectAnswerIndex
			fmt.Fprintf(r.out, "Answer: %s. %s\n", s.Question.Options[idx], s.Question.Explanation)
		}
	case quiz.PhaseFinished:
		if r.lastPhase != quiz.PhaseFinished {
			fmt.Fprintf(r.out, "\nFinished with %d points: %s\n", s.Score, s.Outcome)
		}
		if s.Save != r.lastSave {
			switch s.Save {
			case quiz.SaveSaved:
				fmt.Fprintln(r.out, "Score saved.")
			case quiz.SaveFailed:
				fmt.Fprintf(r.out, "Saving failed (%s). r to retry, any other key to quit.\n", s.SaveError)
			}
		}
	case quiz.PhaseExited:
		fmt.Fprintln(r.out, "Bye.")
	}
}
