package cli

import (
	"context"
	"time"

	"emperror.dev/errors"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"normalz-service/internal/app"
	"normalz-service/internal/config"
	"normalz-service/internal/domain"
	"normalz-service/internal/infra/memory"
	pgstore "normalz-service/internal/infra/postgres"
	redisstore "normalz-service/internal/infra/redis"
	"normalz-service/internal/logging"
)

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// backends holds the stores selected by configuration plus the resources to release.
type backends struct {
	questions   app.QuestionRepository
	streaks     app.StreakRepository
	leaderboard app.Leaderboard
	handshake   func(context.Context) error
	persistent  bool

	closers []func()
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackends picks Postgres for questions when configured, Redis for questions (if
// no Postgres), streaks and leaderboards when configured, and memory otherwise.
func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{handshake: func(context.Context) error { return nil }}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { redisClient.Close() })
	}

	switch {
	case cfg.Postgres.URL != "":
		if err := runMigrations(ctx, cfg); err != nil {
			b.Close()
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, errors.WrapIf(err, "connect postgres")
		}
		b.closers = append(b.closers, pool.Close)
		b.questions = pgstore.NewQuestionStore(pool)
		b.persistent = true
		log.Info("questions stored in postgres")
	case redisClient != nil:
		receiptTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)
		b.questions = redisstore.NewQuestionStore(redisClient, receiptTTL, cfg.Game.MaxVoteRetries)
		b.persistent = true
		log.Info("questions stored in redis")
	default:
		b.questions = memory.NewQuestionStore()
		log.Info("questions stored in memory")
	}

	if redisClient != nil {
		b.streaks = redisstore.NewStreakStore(redisClient, cfg.Game.MaxVoteRetries)
		board := redisstore.NewLeaderboard(redisClient)
		b.leaderboard = board
		b.handshake = board.Ping
	} else {
		b.streaks = memory.NewStreakStore()
		b.leaderboard = memory.NewLeaderboard()
	}
	return b, nil
}

func streakTracker(cfg config.Config) (*app.StreakTracker, error) {
	loc, err := cfg.ResetLocation()
	if err != nil {
		return nil, err
	}
	weekStart, err := cfg.WeekStart()
	if err != nil {
		return nil, err
	}
	return app.NewStreakTracker(loc, weekStart), nil
}

func leaderboardIDs(cfg config.Config) app.LeaderboardIDs {
	return app.LeaderboardIDs{
		domain.PeriodAllTime: cfg.Leaderboards.AllTime,
		domain.PeriodDaily:   cfg.Leaderboards.Daily,
		domain.PeriodWeekly:  cfg.Leaderboards.Weekly,
	}
}

// seedQuestions fills an empty pool with the launch questions.
func seedQuestions(ctx context.Context, questions app.QuestionRepository) error {
	ids, err := questions.ActiveIDs(ctx)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		return nil
	}
	for _, q := range sampleQuestions() {
		if _, err := questions.Create(ctx, q.prompt, q.options); err != nil {
			return errors.WrapIf(err, "seed question")
		}
	}
	log.WithField("count", len(sampleQuestions())).Info("seeded question pool")
	return nil
}

type sampleQuestion struct {
	prompt  string
	options []string
}

func sampleQuestions() []sampleQuestion {
	return []sampleQuestion{
		{"Rock, paper or scissors?", []string{"Rock", "Paper", "Scissors"}},
		{"Pineapple on pizza?", []string{"Yes", "No"}},
		{"Cats or dogs?", []string{"Cats", "Dogs"}},
		{"Morning person or night owl?", []string{"Morning", "Night"}},
		{"Coffee, tea or neither?", []string{"Coffee", "Tea", "Neither"}},
	}
}
