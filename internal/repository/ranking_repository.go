package repository

import (
	"context"

	"yt-hotness/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const topHotness = `
SELECT video_id, title, channel_title, category_id, region,
       ROUND(hotness_score::numeric, 2)::float8,
       ROUND(comment_per_min::numeric, 2)::float8,
       ROUND(comments_per_1k_views::numeric, 3)::float8
FROM hotness
WHERE ($1::int IS NULL OR category_id = $1)
ORDER BY hotness_score DESC
LIMIT $2`

// RankingRepository reads the hotness view maintained by the database.
type RankingRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewRankingRepository(pool PgxPool, tracer trace.Tracer) *RankingRepository {
	return &RankingRepository{pool: pool, tracer: tracer}
}

func (r *RankingRepository) TopHotness(ctx context.Context, filter domain.RankingFilter) ([]domain.RankedVideo, error) {
	ctx, span := r.tracer.Start(ctx, "ranking-repo.top-hotness")
	defer span.End()

	rows, err := r.pool.Query(ctx, topHotness, filter.CategoryID, filter.NormalizeLimit())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.RankedVideo, 0, filter.NormalizeLimit())
	for rows.Next() {
		var v domain.RankedVideo
		if err := rows.Scan(
			&v.VideoID, &v.Title, &v.ChannelTitle, &v.CategoryID, &v.Region,
			&v.Score, &v.CommentsPerMin, &v.CommentsPer1kViews,
		); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
