package service

import (
	"context"
	"fmt"
	"time"

	"yt-hotness/internal/domain"
	"yt-hotness/internal/metrics"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const DefaultTrendingLimit = 50

type TrendingFetcher interface {
	FetchTrending(ctx context.Context, region string, categoryID, limit int) ([]domain.TrendingVideo, error)
}

type CatalogStore interface {
	MergeTrending(ctx context.Context, capturedAt time.Time, items []domain.TrendingVideo) (int, error)
}

// CatalogSynchronizer seeds and refreshes the tracked catalog from the
// provider's trending chart.
type CatalogSynchronizer struct {
	tracer   trace.Tracer
	logger   *zap.Logger
	provider TrendingFetcher
	store    CatalogStore
	metrics  *metrics.Metrics
	region   string
	limit    int

	now func() time.Time
}

func NewCatalogSynchronizer(
	tracer trace.Tracer,
	logger *zap.Logger,
	provider TrendingFetcher,
	store CatalogStore,
	m *metrics.Metrics,
	region string,
) *CatalogSynchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if region == "" {
		region = domain.DefaultRegion
	}
	return &CatalogSynchronizer{
		tracer:   tracer,
		logger:   logger,
		provider: provider,
		store:    store,
		metrics:  m,
		region:   region,
		limit:    DefaultTrendingLimit,
		now:      time.Now,
	}
}

// SyncTrending merges the current chart for categoryID into the catalog and
// records an initial snapshot per item. Either everything is stored or nothing.
func (s *CatalogSynchronizer) SyncTrending(ctx context.Context, categoryID int) (domain.CatalogSyncResult, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.sync-trending")
	defer span.End()
	span.SetAttributes(attribute.Int("category_id", categoryID), attribute.String("region", s.region))

	result := domain.CatalogSyncResult{
		Region:       s.region,
		CategoryID:   categoryID,
		RunTimestamp: domain.RunTimestamp(s.now()),
	}

	items, err := s.provider.FetchTrending(ctx, s.region, categoryID, s.limit)
	if err != nil {
		return result, err
	}
	result.Fetched = len(items)
	s.logger.Info("fetched trending videos", zap.Int("count", len(items)), zap.Int("category_id", categoryID))

	for i := range items {
		items[i].Region = s.region
	}

	n, err := s.store.MergeTrending(ctx, result.RunTimestamp, items)
	if err != nil {
		return result, fmt.Errorf("merge trending category %d: %w", categoryID, err)
	}
	result.Upserted = n
	s.metrics.RecordCatalogSync(ctx, categoryID, n)
	s.logger.Info("catalog synced",
		zap.Int("category_id", categoryID),
		zap.Int("upserted", n),
		zap.Time("captured_at", result.RunTimestamp),
	)
	return result, nil
}

// SyncCategories runs SyncTrending for each category in turn and returns the
// first error after attempting all of them.
func (s *CatalogSynchronizer) SyncCategories(ctx context.Context, categories []int) ([]domain.CatalogSyncResult, error) {
	var firstErr error
	results := make([]domain.CatalogSyncResult, 0, len(categories))
	for _, category := range categories {
		res, err := s.SyncTrending(ctx, category)
		if err != nil {
			s.logger.Error("catalog sync failed", zap.Int("category_id", category), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		results = append(results, res)
	}
	return results, firstErr
}
