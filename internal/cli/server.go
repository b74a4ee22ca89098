package cli

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"neetiq-service/internal/app"
	"neetiq-service/internal/config"
	"neetiq-service/internal/infra/memory"
	"neetiq-service/internal/infra/postgres"
	redisinfra "neetiq-service/internal/infra/redis"
	"neetiq-service/internal/scheduler"
	transport "neetiq-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
		logger.Info().Msg("migrations applied")
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	pollTTL := config.TTLDuration(cfg.Redis.PollTTL, 24*time.Hour)

	var (
		db   *bun.DB
		pool *pgxpool.Pool
	)
	if cfg.Postgres.URL != "" {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db = bun.NewDB(sqldb, pgdialect.New())
		defer db.Close()

		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	// Repository selection: postgres when configured, in-memory otherwise.
	// The memory stats store backs every read model in fallback mode.
	var (
		statsRepo    app.StatsRepository
		userRepo     app.UserRepository
		boardRepo    app.LeaderboardRepository
		chats        app.ChatDirectory
		overviewRepo app.OverviewRepository
		questionRepo app.QuestionRepository
		settingsRepo app.SettingsRepository
		adminRepo    app.AdminRepository
		tracker      app.PollTracker
	)
	if db != nil {
		statsStore := postgres.NewStatsRepo(db)
		userStore := postgres.NewUserRepo(db)
		statsRepo = statsStore
		userRepo = userStore
		boardRepo = statsStore
		chats = userStore
		overviewRepo = postgres.NewOverviewRepo(db)
		questionRepo = postgres.NewQuestionRepo(db, pool)
		settingsRepo = postgres.NewSettingsRepo(db)
		adminRepo = postgres.NewAdminRepo(db)
		tracker = postgres.NewPollTracker(db)
	} else {
		statsStore := memory.NewStatsStore()
		statsRepo = statsStore
		userRepo = statsStore
		boardRepo = statsStore
		chats = statsStore
		overviewRepo = statsStore
		questionRepo = memory.NewQuestionStore()
		settingsRepo = memory.NewSettingsStore()
		adminRepo = memory.NewAdminStore()
		tracker = memory.NewPollTracker()
	}
	if redisClient != nil {
		tracker = redisinfra.NewPollTracker(redisClient, pollTTL)
		settingsRepo = redisinfra.NewSettingsCache(redisClient, settingsRepo, pollTTL)
	}

	admins := app.NewAdminService(adminRepo, cfg.Bot.OwnerID)
	settings := app.NewSettingsService(settingsRepo)
	scoring := app.NewScoringService(statsRepo, userRepo, tracker, logger)
	ranking := app.NewRankingService(boardRepo)
	questions := app.NewQuestionService(questionRepo, admins)
	overview := app.NewOverviewService(overviewRepo, questionRepo, admins)

	if err := settings.Load(ctx); err != nil {
		return err
	}

	ackTimeout := config.TTLDuration(cfg.Gateway.AckTimeout, 10*time.Second)
	relay := transport.NewRelay(ackTimeout)
	dispatcher := app.NewDispatcher(questionRepo, tracker, relay, chats, ranking, settings, logger)
	gateway := transport.NewGatewayHandler(relay, scoring, ranking, questions, admins, settings, overview, dispatcher, logger)

	jobs := scheduler.New(dispatcher, settings, cfg.DigestCron(), cfg.Location(), logger)
	if err := jobs.Start(ctx); err != nil {
		return err
	}
	defer jobs.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", transport.Healthz)
	mux.HandleFunc("/gateway", gateway.ServeGateway)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the gateway socket stays open for the relay's lifetime.
	}

	go func() {
		logger.Info().Str("port", finalPort).Msg("starting neetiq service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("server stopped")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info().Msg("shutting down")
	case <-ctx.Done():
		logger.Info().Msg("context canceled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
