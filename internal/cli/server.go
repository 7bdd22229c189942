package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/catalog"
	"quiz-session-service/internal/config"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/memory"
	"quiz-session-service/internal/infra/postgres"
	infraredis "quiz-session-service/internal/infra/redis"
	"quiz-session-service/internal/logging"
	transport "quiz-session-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz session server",
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
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var closers []func() error

	var db *bun.DB
	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		db, err = openDB(cfg)
		if err != nil {
			return err
		}
		closers = append(closers, db.Close)
		if err := runMigrations(ctx, db, logger); err != nil {
			return err
		}
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return errors.Wrap(err, "connect postgres")
		}
		closers = append(closers, func() error { pool.Close(); return nil })
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, redisClient.Close)
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var loader memory.CatalogLoader
	if pool != nil {
		loader = postgres.NewCatalogLoader(pool)
	} else {
		catalogs, err := fileCatalogs(cfg.Catalog.Dir, logger)
		if err != nil {
			return err
		}
		loader = memory.NewStaticCatalogLoader(catalogs)
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	var catalogRepo app.CatalogRepository
	if redisClient != nil {
		catalogRepo = infraredis.NewCatalogRepository(redisClient, loader, catalogTTL)
	} else {
		catalogRepo = memory.NewCatalogRepository(loader, catalogTTL)
	}

	var store app.SessionRepository
	var redisStore *infraredis.SessionStore
	if redisClient != nil {
		redisStore = infraredis.NewSessionStore(redisClient, redisTTL)
		store = redisStore
	} else {
		store = memory.NewSessionStore()
	}

	var results app.ResultRecorder = memory.NewResultRecorder()
	if db != nil {
		results = postgres.NewResultStore(db)
	}

	service := app.NewSessionService(store, catalogRepo, results,
		app.WithPageSize(cfg.Session.PageSize),
		app.WithTickInterval(config.TTLDuration(cfg.Session.TickInterval, time.Second)),
		app.WithAnswerChange(cfg.Session.AllowAnswerChange),
		app.WithLogger(logger),
	)

	server := &http.Server{
		Addr: ":" + finalPort,
		Handler: transport.NewRouter(service, transport.RouterOptions{
			CORSOrigins: cfg.Server.CORSOrigins,
			Logger:      logger,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go runJanitor(janitorCtx, service, redisStore, config.TTLDuration(cfg.Session.IdleTTL, 30*time.Minute), logger)

	go func() {
		logger.WithField("port", finalPort).Info("starting quiz session service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server...")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server...")
	}
	stopJanitor()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var result *multierror.Error
	if err := server.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "shutdown http"))
	}
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// runJanitor expires idle sessions and keeps Redis liveness keys fresh.
func runJanitor(ctx context.Context, service *app.SessionService, redisStore *infraredis.SessionStore, idleTTL time.Duration, logger logrus.FieldLogger) {
	interval := idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			service.ExpireIdle(idleTTL)
			if redisStore != nil {
				if err := redisStore.Touch(ctx); err != nil {
					logger.WithError(err).Warn("refresh session liveness")
				}
			}
		}
	}
}

// fileCatalogs loads the catalog directory, or the built-in samples when none is configured.
func fileCatalogs(dir string, logger logrus.FieldLogger) (map[string]domain.Catalog, error) {
	if dir == "" {
		return sampleCatalogs(), nil
	}
	catalogs, err := catalog.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{"dir": dir, "count": len(catalogs)}).Info("catalogs loaded")
	return catalogs, nil
}

func sampleCatalogs() map[string]domain.Catalog {
	return map[string]domain.Catalog{
		"sample": {
			ID:         "sample",
			Title:      "Sample Arithmetic",
			SkillID:    "addition",
			Difficulty: "Easy",
			Questions: []domain.Question{
				{ID: "1", Kind: domain.KindSingleChoice, Prompt: "What is 2 + 3?", Options: []string{"4", "5", "6", "7"}, CorrectAnswer: "5"},
				{ID: "2", Kind: domain.KindSingleChoice, Prompt: "What is 1 + 2?", Options: []string{"2", "3", "4", "5"}, CorrectAnswer: "3"},
				{ID: "3", Kind: domain.KindFreeText, Prompt: "Spell the number 4.", Placeholder: "Type the word", CorrectAnswer: "four"},
			},
		},
	}
}
