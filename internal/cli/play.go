package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"normalz-service/internal/app"
	"normalz-service/internal/client"
	"normalz-service/internal/config"
	"normalz-service/internal/domain"
	"normalz-service/internal/infra/buntdb"
)

const submitAttempts = 3

// NewPlayCmd runs an interactive terminal round loop against a running server. Scores
// are kept in a local buntdb file and reported to the server leaderboards.
func NewPlayCmd(configPath *string) *cobra.Command {
	var playerID string
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play rounds against a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runPlay(ctx, cfg, playerID, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&playerID, "player", "local", "player id used for the local scores and leaderboards")
	return cmd
}

type player struct {
	id      string
	api     *client.Client
	monitor *client.Monitor
	streaks *app.StreakService
	in      *bufio.Scanner
	out     io.Writer
	last    string
}

func runPlay(ctx context.Context, cfg config.Config, playerID string, in io.Reader, out io.Writer) error {
	store, err := buntdb.Open(cfg.Client.DataPath)
	if err != nil {
		return err
	}
	defer store.Close()

	tracker, err := streakTracker(cfg)
	if err != nil {
		return err
	}

	api := client.New(cfg.Client.BaseURL, cfg.Client.Endpoint, config.TTLDuration(cfg.Client.Timeout, 10*time.Second))
	gate := app.NewLeaderboardGate(api)
	authCtx, stopAuth := context.WithCancel(ctx)
	defer stopAuth()
	gate.Authenticate(authCtx, config.TTLDuration(cfg.Leaderboards.AuthRetry, 30*time.Second), api.Ping)

	p := &player{
		id:      playerID,
		api:     api,
		monitor: client.NewMonitor(api, config.TTLDuration(cfg.Client.PollInterval, 5*time.Second), nil),
		streaks: app.NewStreakService(store, tracker, gate, leaderboardIDs(cfg)),
		in:      bufio.NewScanner(in),
		out:     out,
	}

	update, err := p.streaks.CheckResets(ctx, p.id)
	if err != nil {
		return err
	}
	p.printScores(update.State)

	for {
		if !p.monitor.Check(ctx) {
			fmt.Fprintln(p.out, "No connection. Please check your internet connection and try again.")
			if !p.prompt("Press enter to retry, q to quit: ") {
				return nil
			}
			continue
		}
		more, err := p.round(ctx)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

// round plays one question. It returns false when the player quits.
func (p *player) round(ctx context.Context) (bool, error) {
	q, err := p.api.FetchQuestion(ctx, p.last)
	if err != nil {
		if errors.Is(err, client.ErrNetworkFailure) {
			fmt.Fprintln(p.out, "Could not load a question, try again in a moment.")
			return p.prompt("Press enter to retry, q to quit: "), nil
		}
		return false, err
	}
	p.last = q.QuestionID

	if q.Prompt != "" {
		fmt.Fprintln(p.out, q.Prompt)
	}
	for i, opt := range q.Options {
		fmt.Fprintf(p.out, "  %d) %s\n", i+1, opt)
	}

	choice, ok := p.choose(q.Options)
	if !ok {
		return false, nil
	}

	res, err := p.submit(ctx, q.QuestionID, choice)
	if err != nil {
		if errors.Is(err, client.ErrNetworkFailure) {
			fmt.Fprintln(p.out, "Your answer could not be sent.")
			return true, nil
		}
		return false, err
	}

	for _, opt := range q.Options {
		fmt.Fprintf(p.out, "  %-12s %d\n", opt, res.NewAnswerCounts[opt])
	}
	if res.Outcome == domain.OutcomeWin {
		fmt.Fprintln(p.out, "You are normal! Most players agree with you.")
	} else {
		fmt.Fprintln(p.out, "You are not normal. Most players picked something else.")
	}
	// Each round submits under a fresh id, so a replay answers one of our own
	// retries and is still the first result this client has seen.
	update, err := p.streaks.Record(ctx, p.id, res.Outcome)
	if err != nil {
		return false, err
	}
	for _, a := range update.Achievements {
		fmt.Fprintf(p.out, "%s Achievement unlocked: %s\n", a.Emoji, a.Title)
	}
	p.printScores(update.State)
	return true, nil
}

// submit retries transient failures with the same submission id so the server
// counts the vote at most once.
func (p *player) submit(ctx context.Context, questionID, option string) (client.AnswerResult, error) {
	submissionID := uuid.NewString()
	var lastErr error
	for attempt := 1; attempt <= submitAttempts; attempt++ {
		res, err := p.api.SubmitAnswer(ctx, questionID, option, submissionID)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !errors.Is(err, client.ErrNetworkFailure) {
			break
		}
		log.WithError(err).WithField("attempt", attempt).Warn("submit failed, retrying")
		time.Sleep(time.Duration(attempt) * 200 * time.Millisecond)
	}
	return client.AnswerResult{}, lastErr
}

func (p *player) choose(options []string) (string, bool) {
	for {
		fmt.Fprint(p.out, "Your pick (q to quit): ")
		if !p.in.Scan() {
			return "", false
		}
		text := strings.TrimSpace(p.in.Text())
		if strings.EqualFold(text, "q") {
			return "", false
		}
		if n, err := strconv.Atoi(text); err == nil && n >= 1 && n <= len(options) {
			return options[n-1], true
		}
		for _, opt := range options {
			if strings.EqualFold(opt, text) {
				return opt, true
			}
		}
		fmt.Fprintln(p.out, "Pick one of the listed options.")
	}
}

func (p *player) prompt(msg string) bool {
	fmt.Fprint(p.out, msg)
	if !p.in.Scan() {
		return false
	}
	return !strings.EqualFold(strings.TrimSpace(p.in.Text()), "q")
}

func (p *player) printScores(s domain.StreakState) {
	fmt.Fprintf(p.out, "Streak %d | today %d | this week %d | best %d\n", s.Current, s.Daily, s.Weekly, s.AllTime)
}
