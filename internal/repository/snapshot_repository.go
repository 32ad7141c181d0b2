package repository

import (
	"context"
	"fmt"
	"time"

	"yt-hotness/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const listTrackedVideoIDs = `
SELECT video_id
FROM videos
ORDER BY created_at DESC
LIMIT $1`

// insertSnapshot is the only way snapshot rows are written. A second insert
// for the same (video_id, captured_at) is silently ignored.
const insertSnapshot = `
INSERT INTO snapshots (video_id, captured_at, view_count, comment_count, like_count)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (video_id, captured_at) DO NOTHING`

const countSnapshotsAt = `SELECT COUNT(*) FROM snapshots WHERE captured_at = $1`

type SnapshotRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewSnapshotRepository(pool PgxPool, tracer trace.Tracer) *SnapshotRepository {
	return &SnapshotRepository{pool: pool, tracer: tracer}
}

// ListTrackedVideoIDs returns up to limit ids, newest catalog entries first.
func (r *SnapshotRepository) ListTrackedVideoIDs(ctx context.Context, limit int) ([]string, error) {
	ctx, span := r.tracer.Start(ctx, "snapshot-repo.list-tracked-ids")
	defer span.End()

	rows, err := r.pool.Query(ctx, listTrackedVideoIDs, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertSnapshots writes one batch in a single transaction and returns the
// number of attempted inserts. Nothing is visible unless the commit succeeds.
func (r *SnapshotRepository) InsertSnapshots(ctx context.Context, capturedAt time.Time, stats []domain.VideoStats) (int, error) {
	ctx, span := r.tracer.Start(ctx, "snapshot-repo.insert-snapshots")
	defer span.End()
	span.SetAttributes(attribute.Int("records", len(stats)))

	if len(stats) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, s := range stats {
		if err := execInsertSnapshot(ctx, tx, domain.NewSnapshot(s, capturedAt)); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(stats), nil
}

// CountSnapshotsAt reports how many rows a run stored under one timestamp.
func (r *SnapshotRepository) CountSnapshotsAt(ctx context.Context, capturedAt time.Time) (int, error) {
	ctx, span := r.tracer.Start(ctx, "snapshot-repo.count-at")
	defer span.End()

	rows, err := r.pool.Query(ctx, countSnapshotsAt, capturedAt)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}

func execInsertSnapshot(ctx context.Context, db execer, s domain.Snapshot) error {
	if _, err := db.Exec(ctx, insertSnapshot,
		s.VideoID, s.CapturedAt, s.ViewCount, s.CommentCount, s.LikeCount,
	); err != nil {
		return fmt.Errorf("insert snapshot %s: %w", s.VideoID, err)
	}
	return nil
}
