package repository

import (
	"context"
	"fmt"
	"time"

	"yt-hotness/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// region is left out of the update list; it is fixed at first sight.
const upsertVideo = `
INSERT INTO videos (video_id, title, channel_id, channel_title, category_id, region, published_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (video_id) DO UPDATE SET
    title = EXCLUDED.title,
    channel_id = EXCLUDED.channel_id,
    channel_title = EXCLUDED.channel_title,
    category_id = EXCLUDED.category_id,
    published_at = EXCLUDED.published_at`

type VideoRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewVideoRepository(pool PgxPool, tracer trace.Tracer) *VideoRepository {
	return &VideoRepository{pool: pool, tracer: tracer}
}

// MergeTrending upserts every item into the catalog and records its initial
// snapshot at capturedAt, all in one transaction.
func (r *VideoRepository) MergeTrending(ctx context.Context, capturedAt time.Time, items []domain.TrendingVideo) (int, error) {
	ctx, span := r.tracer.Start(ctx, "video-repo.merge-trending")
	defer span.End()
	span.SetAttributes(attribute.Int("items", len(items)))

	if len(items) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, it := range items {
		if _, err := tx.Exec(ctx, upsertVideo,
			it.VideoID, it.Title, it.ChannelID, it.ChannelTitle, it.CategoryID, it.Region, it.PublishedAt,
		); err != nil {
			return 0, fmt.Errorf("upsert video %s: %w", it.VideoID, err)
		}
		stats := it.Stats
		stats.VideoID = it.VideoID
		if err := execInsertSnapshot(ctx, tx, domain.NewSnapshot(stats, capturedAt)); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(items), nil
}
