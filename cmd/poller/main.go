package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"yt-hotness/internal/app"
	"yt-hotness/internal/config"
	"yt-hotness/internal/job"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	_ "time/tzdata"
)

var (
	loadEnvFunc       = godotenv.Load
	loadConfigFunc    = config.Load
	bootstrapFunc     = app.Bootstrap
	startCollectorJob = func(j *job.CollectorJob, ctx context.Context) { j.Start(ctx) }
	startCatalogJob   = func(j *job.CatalogJob, ctx context.Context) { j.Start(ctx) }
	setupSignalNotify = signal.Notify
)

func main() {
	_ = loadEnvFunc()
	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := bootstrapFunc(ctx, cfg, "poller")
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	logger := a.Logger

	yt := a.Provider()
	collectorJob := job.NewCollectorJob(
		a.Tracer,
		logger.Named("scheduler"),
		a.Guard("collector"),
		a.Collector(yt),
		cfg.PollInterval,
		cfg.Location(),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		startCollectorJob(collectorJob, ctx)
	}()

	if cfg.CatalogSyncEnabled {
		catalogJob := job.NewCatalogJob(
			a.Tracer,
			logger.Named("catalog-job"),
			a.Guard("catalog"),
			a.Catalog(yt),
			cfg.CatalogCategories,
			cfg.CatalogInterval,
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			startCatalogJob(catalogJob, ctx)
		}()
	}

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := a.Close(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
