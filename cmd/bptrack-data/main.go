package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bptrack/internal/alert"
	"bptrack/internal/bpcategory"
	"bptrack/internal/config"
	"bptrack/internal/database"
	httpapi "bptrack/internal/http"
	"bptrack/internal/logger"
	"bptrack/internal/repository"
	"bptrack/internal/service"
	"bptrack/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "bptrack-data")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage: Postgres when enabled and reachable, memory repos otherwise.
	var (
		db        *sql.DB
		statsRepo repository.BPStatsRepository
		usersRepo repository.UsersRepository
	)
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			if err := database.EnsureSchema(ctx, d); err != nil {
				log.Fatal("failed to apply schema", zap.Error(err))
			}
			db = d
			log.Info("DB enabled for bptrack-data", zap.String("host", cfg.Database.Host))
		} else {
			log.Warn("DB enabled but connection failed, falling back to memory repos", zap.Error(err))
		}
	}
	if db != nil {
		statsRepo = repository.NewPostgresBPStatsRepository(db)
		usersRepo = repository.NewPostgresUsersRepository(db)
	} else {
		statsRepo = repository.NewMemoryBPStatsRepo()
		usersRepo = repository.NewMemoryUsersRepo()
	}

	// Sessions and alerts: Redis when reachable.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	var (
		sessions  store.KV
		publisher alert.Publisher = alert.NopPublisher{}
	)
	pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
	redisErr := redisClient.Ping(pingCtx).Err()
	pingCancel()
	if redisErr == nil {
		sessions = store.NewRedisKV(redisClient)
		if cfg.Alert.Enabled {
			publisher = alert.NewStreamPublisher(redisClient, cfg.Alert.Stream)
		}
	} else {
		log.Warn("Redis unavailable, sessions kept in memory and alerts disabled", zap.Error(redisErr))
		sessions = store.NewMemoryKV()
	}

	threshold, err := bpcategory.ParseCategory(cfg.Alert.MinCategory)
	if err != nil {
		log.Warn("invalid ALERT_MIN_CATEGORY, using Hypertensive Crisis", zap.String("value", cfg.Alert.MinCategory))
		threshold = bpcategory.HypertensiveCrisis
	}

	authSvc := service.NewAuthService(usersRepo, sessions, cfg.Session.TTL, log)
	bpSvc := service.NewBPStatService(statsRepo, publisher, threshold, log)

	checks := map[string]httpapi.Pinger{}
	if db != nil {
		checks["database"] = db.PingContext
	}
	if redisErr == nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	router := httpapi.NewRouter(log)
	authed := httpapi.RequireAuth(authSvc, log)
	router.RegisterAuthRoutes(httpapi.NewAuthHandler(authSvc, log), authed)
	router.RegisterBPStatRoutes(httpapi.NewBPStatHandler(bpSvc, log), authed)
	router.RegisterMetaRoutes(httpapi.NewMetaHandler(checks, log))

	srv := service.NewServer(cfg.HTTP.Addr, httpapi.AccessLog(router, log), log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case err := <-errCh:
		log.Error("HTTP server stopped", zap.Error(err))
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	_ = redisClient.Close()
	if db != nil {
		_ = database.Close(db)
	}
}
