package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/config"
	"trivia-quiz-service/internal/identity"
	"trivia-quiz-service/internal/infra/memory"
	redisstore "trivia-quiz-service/internal/infra/redis"
	"trivia-quiz-service/internal/infra/trivia"
	transport "trivia-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := config.NewLogger(cfg.Log.Level, cfg.Log.Format)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	snapshots, users, err := b.stores(cfg)
	if err != nil {
		return err
	}
	results := b.results()

	client := newTriviaClient(cfg, log)
	categoriesTTL := config.TTLDuration(cfg.Trivia.CategoriesTTL, 24*time.Hour)
	var categories transport.CategoryProvider
	if b.redis != nil {
		categories = redisstore.NewCategoryCache(b.redis, client, categoriesTTL)
	} else {
		categories = memory.NewCategoryCache(client, categoriesTTL)
	}

	service := newQuizService(cfg, memory.NewSessionStore(), client, snapshots, log, app.WithResultRecorder(results))

	if cfg.Auth.JWTSecret == "" {
		log.Warn("auth.jwt_secret is empty; tokens are signed with an empty key")
	}
	tokens := identity.NewTokens(cfg.Auth.JWTSecret, config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour))

	router := transport.NewRouter(transport.RouterConfig{
		WS:         transport.NewWSHandler(service, tokens, cfg.TimeLimitSeconds(), log),
		Accounts:   identity.NewDirectory(users),
		Tokens:     tokens,
		Categories: categories,
		Fallback:   trivia.PopularCategories,
		Results:    results,
		Log:        log,
	})

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.WithField("port", finalPort).Info("starting quiz service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newTriviaClient(cfg config.Config, log logrus.FieldLogger) *trivia.Client {
	opts := []trivia.Option{
		trivia.WithHTTPClient(&http.Client{Timeout: config.TTLDuration(cfg.Trivia.Timeout, 10*time.Second)}),
		trivia.WithLogger(log),
	}
	if cfg.Trivia.BaseURL != "" {
		opts = append(opts, trivia.WithBaseURL(cfg.Trivia.BaseURL))
	}
	return trivia.NewClient(opts...)
}

func newQuizService(cfg config.Config, sessions app.SessionRepository, source app.QuestionSource, snapshots app.KVStore, log logrus.FieldLogger, opts ...app.ServiceOption) *app.QuizService {
	urgency := cfg.Session.UrgencyThreshold
	if urgency <= 0 {
		urgency = app.DefaultUrgencyThreshold
	}
	tick := config.TTLDuration(cfg.Session.Tick, time.Second)
	key := cfg.Storage.Key
	if key == "" {
		key = app.DefaultSessionKey
	}

	opts = append([]app.ServiceOption{
		app.WithStorageKey(key),
		app.WithLogger(log),
		app.WithClockFactory(func() *app.Clock {
			return app.NewClock(app.WithInterval(tick), app.WithUrgencyThreshold(urgency))
		}),
	}, opts...)
	return app.NewQuizService(sessions, source, app.NewGateway(snapshots, app.WithGatewayLogger(log)), opts...)
}
