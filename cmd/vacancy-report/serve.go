package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vacancy-report/internal/config"
	httpapi "vacancy-report/internal/http"
	"vacancy-report/internal/logger"
	"vacancy-report/internal/phase"
	"vacancy-report/internal/service"
	"vacancy-report/internal/store"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/handlers"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "vacancy-report")
	if err != nil {
		return err
	}
	defer log.Sync()

	schema, err := phase.Load(cfg.Report.PhaseSchemaPath)
	if err != nil {
		log.Error("failed to load phase schema", zap.String("path", cfg.Report.PhaseSchemaPath), zap.Error(err))
		return err
	}

	// session index: Redis, then Postgres, in-memory otherwise
	var kv store.KV
	var redisClient *redis.Client
	var db *sql.DB
	switch {
	case cfg.RedisEnabled:
		redisClient = store.NewRedisClient(&cfg.Redis)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := store.Ping(ctx, redisClient)
		cancel()
		if err != nil {
			log.Error("redis unavailable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			_ = redisClient.Close()
			return err
		}
		kv = store.NewRedisKV(redisClient)
	case cfg.DBEnabled:
		db, err = store.NewPostgresDB(&cfg.Database)
		if err != nil {
			log.Error("database unavailable", zap.String("host", cfg.Database.Host), zap.Error(err))
			return err
		}
		pg := store.NewPostgresKV(db)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			_ = db.Close()
			return err
		}
		kv = pg
	default:
		log.Info("REDIS_ENABLED=false and DB_ENABLED=false, keeping sessions in memory")
		kv = store.NewMemoryKV()
	}

	datasets, err := store.NewDatasetStore(kv, cfg.Upload.Dir, cfg.Session.TTL, log)
	if err != nil {
		return err
	}
	if _, err := datasets.Sweep(context.Background()); err != nil {
		log.Warn("startup sweep failed", zap.Error(err))
	}

	svc := service.NewReportService(datasets, service.NewProcessor(schema, cfg.Location()), cfg.Upload.MaxBytes, log)

	router := httpapi.NewRouter(log)
	router.RegisterHealthRoutes()
	router.RegisterReportRoutes(httpapi.NewReportHandler(svc, cfg.Upload.MaxBytes, log))

	var handler http.Handler = router
	handler = handlers.CompressHandler(handler)
	handler = handlers.CORS(
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete}),
		handlers.AllowedHeaders([]string{"Content-Type", httpapi.SessionHeader}),
		handlers.ExposedHeaders([]string{"Content-Disposition"}),
		handlers.AllowCredentials(),
	)(handler)
	handler = handlers.LoggingHandler(os.Stdout, handler)
	handler = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(handler)

	srv := service.NewServer(cfg.HTTP.Addr, handler, log)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	// expired sessions leave workbook files behind
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sweepLoop(sweepCtx, datasets, cfg.Session.TTL, log)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case <-sigCh:
	case runErr = <-errCh:
		log.Error("http server error", zap.Error(runErr))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if db != nil {
		_ = db.Close()
	}
	return runErr
}

func sweepLoop(ctx context.Context, datasets *store.DatasetStore, ttl time.Duration, log *zap.Logger) {
	interval := ttl / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := datasets.Sweep(ctx); err != nil {
				log.Warn("sweep failed", zap.Error(err))
			}
		}
	}
}
