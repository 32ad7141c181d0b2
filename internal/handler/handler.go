package handler

import (
	"context"

	"yt-hotness/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Ranker interface {
	Top(ctx context.Context, filter domain.RankingFilter) ([]domain.RankedVideo, error)
}

type CollectTrigger interface {
	Trigger(ctx context.Context) (domain.CollectResult, error)
}

type CatalogTrigger interface {
	SyncNow(ctx context.Context, categoryID int) (domain.CatalogSyncResult, error)
}

type Handler struct {
	tracer    trace.Tracer
	logger    *zap.Logger
	ranking   Ranker
	collector CollectTrigger
	catalog   CatalogTrigger
	apiKey    string
}

func New(tracer trace.Tracer, logger *zap.Logger, ranking Ranker, collector CollectTrigger, catalog CatalogTrigger, apiKey string) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		tracer:    tracer,
		logger:    logger,
		ranking:   ranking,
		collector: collector,
		catalog:   catalog,
		apiKey:    apiKey,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/api/top", h.GetTop)

	admin := r.Group("/api", APIKeyAuth(h.apiKey, h.logger.Named("admin-auth")))
	admin.POST("/collect", h.Collect)
	admin.POST("/catalog/sync", h.SyncCatalog)
}
