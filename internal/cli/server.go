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
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"

	"github.com/klairtech/thalassemia-quiz/internal/app"
	"github.com/klairtech/thalassemia-quiz/internal/config"
	"github.com/klairtech/thalassemia-quiz/internal/infra/memory"
	pgstore "github.com/klairtech/thalassemia-quiz/internal/infra/postgres"
	redisstore "github.com/klairtech/thalassemia-quiz/internal/infra/redis"
	"github.com/klairtech/thalassemia-quiz/internal/leaderboard"
	"github.com/klairtech/thalassemia-quiz/internal/logger"
	transport "github.com/klairtech/thalassemia-quiz/internal/transport/http"
)

// NewServeCmd builds the CLI subcommand to start the server.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
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
	log := logger.New(cfg.Log.Level, cfg.Log.File)
	defer log.Sync()

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

	var questionLoader memory.QuestionLoader
	var attempts app.AttemptRepository
	var store leaderboard.Store

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		questionLoader = pgstore.NewQuestionLoader(pool)

		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		defer db.Close()
		repo := pgstore.NewAttemptRepository(db)
		attempts = repo
		store = repo
	} else {
		// Dev mode: embedded question pool and in-memory attempts.
		questions, err := seedQuestionPool()
		if err != nil {
			return err
		}
		questionLoader = memory.NewStaticQuestionLoader(questions)
		memStore := memory.NewAttemptStore()
		attempts = memStore
		store = memStore
		log.Warn("postgres not configured, using in-memory attempt store")
	}

	cacheTTL := config.TTLDuration(cfg.Quiz.CacheTTL, 10*time.Minute)
	var questionRepo app.QuestionRepository
	if cfg.Redis.Addr != "" {
		redisClient := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		questionRepo = redisstore.NewQuestionCache(redisClient, questionLoader, cacheTTL)
	} else {
		questionRepo = memory.NewQuestionCache(questionLoader, cacheTTL)
	}

	service := app.NewQuizService(questionRepo, attempts, store, log)
	handler := transport.NewHandler(service, cfg.Quiz.QuestionLimit, cfg.Leaderboard.Limit, log)
	wsInterval := config.TTLDuration(cfg.Leaderboard.WSInterval, 5*time.Second)
	wsHandler := transport.NewWSHandler(service, wsInterval, log)

	router := handler.Routes()
	router.Get("/ws/leaderboard", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting thalassemia quiz service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
