package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"normalz-service/internal/app"
	"normalz-service/internal/config"
	"normalz-service/internal/infra/memory"
	transport "normalz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg, *port)
		},
	}
}

func runServer(ctx context.Context, cfg config.Config, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	if cfg.Game.SeedQuestions {
		if err := seedQuestions(ctx, b.questions); err != nil {
			return err
		}
	}

	tracker, err := streakTracker(cfg)
	if err != nil {
		return err
	}

	authCtx, stopAuth := context.WithCancel(ctx)
	defer stopAuth()
	gate := app.NewLeaderboardGate(b.leaderboard)
	gate.Authenticate(authCtx, config.TTLDuration(cfg.Leaderboards.AuthRetry, 30*time.Second), b.handshake)

	pool := memory.NewPoolCache(b.questions, config.TTLDuration(cfg.Pool.TTL, 30*time.Second))
	streaks := app.NewStreakService(b.streaks, tracker, gate, leaderboardIDs(cfg))
	game := app.NewGameService(b.questions, app.NewSelector(pool), streaks).WithPoolInvalidator(pool)

	handler := transport.NewHandler(transport.Options{
		Endpoint:       cfg.Server.Endpoint,
		Game:           game,
		Streaks:        streaks,
		Leaderboard:    gate,
		RequestTimeout: config.TTLDuration(cfg.Server.RequestTimeout, 15*time.Second),
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{"port": finalPort, "endpoint": cfg.Server.Endpoint}).Info("starting normalz service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	case err := <-serveErr:
		if err != nil {
			return errors.WrapIf(err, "listen")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
