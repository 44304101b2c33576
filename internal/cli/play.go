package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/config"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/identity"
	"trivia-quiz-service/internal/infra/file"
	"trivia-quiz-service/internal/infra/memory"
)

type playOptions struct {
	amount     int
	category   int
	difficulty string
	qType      string
	timeLimit  time.Duration
	storePath  string
}

// NewPlayCmd runs a quiz in the terminal. Progress is kept in a local file so
// an interrupted quiz can be resumed by the same signed-in user.
func NewPlayCmd(configPath *string) *cobra.Command {
	var opts playOptions
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a timed quiz in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadOptionalConfig(*configPath)
			if err != nil {
				return err
			}
			log := config.NewLogger(cfg.Log.Level, cfg.Log.Format)
			if cfg.Log.Level == "" {
				log.SetLevel(logrus.WarnLevel)
			}

			store, err := localStore(cfg, opts.storePath)
			if err != nil {
				return err
			}
			player := domain.Player{}
			if user, err := identity.NewCurrentUser(store).Get(cmd.Context()); err == nil {
				player.UserID = user.ID
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s.\n", user.Name)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in: progress will not be saved.")
			}

			limit := opts.timeLimit
			if limit <= 0 {
				limit = time.Duration(cfg.TimeLimitSeconds()) * time.Second
			}
			quiz := domain.QuizConfig{
				Amount:     opts.amount,
				Category:   opts.category,
				Difficulty: domain.Difficulty(opts.difficulty),
				Type:       domain.QuestionType(opts.qType),
			}

			service := newQuizService(cfg, memory.NewSessionStore(), newTriviaClient(cfg, log), store, log)

			interrupts := make(chan os.Signal, 1)
			signal.Notify(interrupts, os.Interrupt)
			defer signal.Stop(interrupts)

			p := &playSession{
				service: service,
				player:  player,
				out:     cmd.OutOrStdout(),
				lines:   readLines(cmd.InOrStdin()),
				signals: interrupts,
			}
			return p.run(cmd.Context(), quiz, int(limit/time.Second))
		},
	}

	cmd.Flags().IntVar(&opts.amount, "amount", 10, "number of questions (1-50)")
	cmd.Flags().IntVar(&opts.category, "category", 0, "category id, 0 for any")
	cmd.Flags().StringVar(&opts.difficulty, "difficulty", "", "easy, medium or hard")
	cmd.Flags().StringVar(&opts.qType, "type", "", "multiple-choice or boolean")
	cmd.Flags().DurationVar(&opts.timeLimit, "time-limit", 0, "quiz time limit (defaults to session.time_limit)")
	cmd.Flags().StringVar(&opts.storePath, "store", "", "local progress file (defaults to storage.path)")
	return cmd
}

// playSession drives one terminal quiz. All output happens on the run goroutine.
type playSession struct {
	service *app.QuizService
	player  domain.Player
	out     io.Writer
	lines   <-chan string
	signals <-chan os.Signal
}

func (p *playSession) run(ctx context.Context, quiz domain.QuizConfig, timeLimit int) error {
	if err := p.begin(ctx, quiz, timeLimit); err != nil {
		return err
	}

	events, cancel, err := p.service.Subscribe(ctx, p.player)
	if err != nil {
		return err
	}
	defer cancel()

	lines := p.lines
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if p.show(ev) {
				return nil
			}
		case line, ok := <-lines:
			if !ok {
				lines = nil
				if _, live := p.service.Session(p.player); live {
					return p.leave(ctx, true)
				}
				continue
			}
			if done, err := p.input(ctx, line); done || err != nil {
				return err
			}
		case <-p.signals:
			fmt.Fprintln(p.out)
			return p.leave(ctx, p.confirm("Keep progress to resume later? [y/N] ", false))
		case <-ctx.Done():
			return p.leave(ctx, true)
		}
	}
}

func (p *playSession) begin(ctx context.Context, quiz domain.QuizConfig, timeLimit int) error {
	if candidate, ok := p.service.CheckResume(ctx, p.player); ok {
		fmt.Fprintf(p.out, "Unfinished quiz found: %d of %d answered, %s left.\n",
			candidate.Answered, candidate.Total, app.FormatRemaining(candidate.Remaining))
		if p.confirm("Resume it? [Y/n] ", true) {
			_, err := p.service.Resume(ctx, p.player)
			if err == nil {
				return nil
			}
			fmt.Fprintf(p.out, "Could not resume: %v\n", err)
		} else if err := p.service.Discard(ctx, p.player); err != nil {
			return err
		}
	}

	fmt.Fprintln(p.out, "Fetching questions...")
	_, err := p.service.Start(ctx, p.player, quiz, timeLimit)
	return err
}

// confirm asks a yes/no question; an empty answer or closed input picks def.
func (p *playSession) confirm(prompt string, def bool) bool {
	fmt.Fprint(p.out, prompt)
	line, ok := <-p.lines
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
		return def
	case "y", "yes":
		return true
	default:
		return false
	}
}

func (p *playSession) input(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return false, nil
	case "f":
		_, err := p.service.Finish(ctx, p.player)
		return false, ignoreFinished(err)
	case "q":
		return true, p.leave(ctx, p.confirm("Keep progress to resume later? [y/N] ", false))
	}

	session, live := p.service.Session(p.player)
	if !live {
		return false, nil
	}
	// Input may run ahead of the printed events, so pick from the live question.
	q := session.Status().Question
	n, err := strconv.Atoi(line)
	if err != nil || q == nil || n < 1 || n > len(q.Answers) {
		fmt.Fprintln(p.out, "Type an answer number, f to finish or q to quit.")
		return false, nil
	}
	_, err = p.service.Answer(ctx, p.player, q.Answers[n-1])
	return false, ignoreFinished(err)
}

func (p *playSession) leave(ctx context.Context, keep bool) error {
	var err error
	if keep {
		err = p.service.PauseAndExit(ctx, p.player)
		if err == nil && !p.player.Anonymous() {
			fmt.Fprintln(p.out, "Progress saved. Run play again to resume.")
		}
	} else {
		err = p.service.DiscardAndExit(ctx, p.player)
		if err == nil {
			fmt.Fprintln(p.out, "Quiz discarded.")
		}
	}
	return ignoreFinished(err)
}

// show prints an event and reports whether the quiz is over.
func (p *playSession) show(ev domain.SessionEvent) bool {
	switch ev.Type {
	case domain.EventFinished:
		if ev.Result != nil {
			printResult(p.out, *ev.Result)
		}
		return true
	case domain.EventTick:
		if ev.Urgent && (ev.Remaining%10 == 0 || ev.Remaining <= 5) {
			fmt.Fprintf(p.out, "  [%s left]\n", ev.Formatted)
		}
	default:
		if ev.Question == nil {
			return false
		}
		q := ev.Question
		fmt.Fprintf(p.out, "\nQuestion %d/%d - %s - %s  [%s]\n%s\n",
			ev.Index+1, ev.Total, q.Category, q.Difficulty, ev.Formatted, q.Prompt)
		for i, a := range q.Answers {
			fmt.Fprintf(p.out, "  %d) %s\n", i+1, a)
		}
	}
	return false
}

func printResult(out io.Writer, r domain.QuizResult) {
	fmt.Fprintf(out, "\nScore: %d%% - %s\n", r.Score, verdict(r.Score))
	fmt.Fprintf(out, "Correct: %d  Incorrect: %d  Unanswered: %d  of %d\n",
		r.CorrectAnswers, r.IncorrectAnswers, r.UnansweredQuestions, r.TotalQuestions)
	fmt.Fprintf(out, "Time spent: %s\n", app.FormatRemaining(r.TotalTimeSpent))
}

func verdict(score int) string {
	switch {
	case score >= 90:
		return "Outstanding!"
	case score >= 75:
		return "Great Job!"
	case score >= 60:
		return "Good Effort!"
	case score >= 40:
		return "Keep Practicing!"
	default:
		return "Keep Learning!"
	}
}

// A session can finish on its own between reading input and acting on it.
func ignoreFinished(err error) error {
	if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrSessionFinished) {
		return nil
	}
	return err
}

func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func loadOptionalConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return config.Config{}, nil
	}
	return cfg, err
}

func localStore(cfg config.Config, path string) (*file.KVStore, error) {
	if path == "" {
		path = cfg.Storage.Path
	}
	if path == "" {
		path = defaultStorePath()
	}
	return file.NewKVStore(path)
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".quiz", "store.json")
	}
	return filepath.Join(home, ".quiz", "store.json")
}
