package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"yt-hotness/internal/app"
	"yt-hotness/internal/config"
	"yt-hotness/internal/handler"
	"yt-hotness/internal/job"
	"yt-hotness/pkg/logging"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	_ "time/tzdata"
	_ "yt-hotness/docs"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	bootstrapFunc          = app.Bootstrap
	newRouterFunc          = gin.New
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           YouTube Hotness API
// @version         1.0
// @description     Engagement-velocity ranking over periodic YouTube snapshots.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey  ApiKeyAuth
// @in                          header
// @name                        X-API-Key
func main() {
	_ = loadEnvFunc()
	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := bootstrapFunc(ctx, cfg, "server")
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	logger := a.Logger

	yt := a.Provider()
	collector := job.NewCollectorJob(a.Tracer, logger.Named("collector-trigger"), a.Guard("collector"), a.Collector(yt), cfg.PollInterval, cfg.Location())
	catalog := job.NewCatalogJob(a.Tracer, logger.Named("catalog-trigger"), a.Guard("catalog"), a.Catalog(yt), cfg.CatalogCategories, cfg.CatalogInterval)
	h := handler.New(a.Tracer, logger.Named("http"), a.Ranking(), collector, catalog, cfg.APIKey)

	r := newRouterFunc()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("yt-hotness"))
	r.Use(logging.GinMiddleware(logger))

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := startHTTPServerFunc(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	logger.Info("shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if err := a.Close(shutdownCtx); err != nil {
		logger.Warn("release resources", zap.Error(err))
	}
	log.Println("Server exiting")
}
