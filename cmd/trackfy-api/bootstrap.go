package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/Trackfy/config"
	"github.com/BearBump/Trackfy/internal/api/codesapi"
	"github.com/BearBump/Trackfy/internal/broker/kafka"
	"github.com/BearBump/Trackfy/internal/cache"
	"github.com/BearBump/Trackfy/internal/cache/rediscache"
	"github.com/BearBump/Trackfy/internal/services/codes"
	"github.com/BearBump/Trackfy/internal/services/sweeper"
	"github.com/BearBump/Trackfy/internal/simulation"
	"github.com/BearBump/Trackfy/internal/storage"
	"github.com/BearBump/Trackfy/internal/storage/filestore"
	"github.com/BearBump/Trackfy/internal/storage/pgstore"
)

type trackfyApp struct {
	ctx    context.Context
	cancel context.CancelFunc

	httpAddr string
	api      *codesapi.CodesAPI
	sweeper  *sweeper.Sweeper

	closeFns []func()
}

func mustBootstrap() *trackfyApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.Trackfy.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":3001"
	}
	dataFile := cfg.Trackfy.DataFile
	if dataFile == "" {
		dataFile = "data/tracking-codes.json"
	}
	cacheTTL := time.Duration(cfg.Trackfy.CurrentStatusTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	cleanupDelay := time.Duration(cfg.Trackfy.CleanupInitialDelaySeconds) * time.Second
	if cleanupDelay <= 0 {
		cleanupDelay = 5 * time.Second
	}
	cleanupInterval := time.Duration(cfg.Trackfy.CleanupIntervalSeconds) * time.Second
	if cleanupInterval <= 0 {
		cleanupInterval = 24 * time.Hour
	}
	retention := time.Duration(cfg.Trackfy.RetentionDays) * 24 * time.Hour
	if retention <= 0 {
		retention = simulation.RetentionWindow
	}
	topic := cfg.Kafka.CodesExpiredTopicName
	if topic == "" {
		topic = "codes.expired"
	}

	app := &trackfyApp{httpAddr: httpAddr}

	sim := simulation.New()

	var st storage.Store
	if cfg.Trackfy.StorageBackend == "postgres" {
		sslMode := cfg.Database.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
		pg := mustOpenPostgresWithRetry(connString, 60*time.Second)
		app.closeFns = append(app.closeFns, pg.Close)
		st = pg
	} else {
		st = filestore.New(dataFile, sim)
	}

	var rc cache.BytesCache
	var rl codesapi.RateLimiter
	if cfg.Redis.Host != "" {
		redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
		rc = rediscache.New(redisAddr)
		if cfg.Trackfy.CreateRateLimitPerMinute > 0 {
			rl = rediscache.NewRateLimiter(redisAddr)
		}
	}

	svc := codes.New(st, sim, rc, cacheTTL).WithRetention(retention)

	var sweepProducer sweeper.Producer
	if cfg.Kafka.Host != "" {
		p := kafka.NewProducer([]string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)})
		app.closeFns = append(app.closeFns, func() { _ = p.Close() })
		sweepProducer = p
	}

	sw := sweeper.New(svc, sweepProducer, topic).WithSettings(cleanupDelay, cleanupInterval)

	api := codesapi.New(svc, sw)
	if rl != nil {
		api = api.WithRateLimiter(rl, int64(cfg.Trackfy.CreateRateLimitPerMinute))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app.ctx = ctx
	app.cancel = cancel
	app.api = api
	app.sweeper = sw

	return app
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgstore.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgstore.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *trackfyApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for _, fn := range a.closeFns {
		fn()
	}
}

func (a *trackfyApp) Run() error {
	return runTrackfyAPI(a.ctx, trackfyAPIOpts{httpAddr: a.httpAddr}, a.api, a.sweeper)
}

func (a *trackfyApp) stopped(err error) bool {
	return err == context.Canceled
}
