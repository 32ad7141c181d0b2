package domain

import "time"

// VideoStats is the normalized counter set returned by the stats provider.
// LikeCount is nil when the provider hides likes, which is not the same as zero.
type VideoStats struct {
	VideoID      string `json:"video_id"`
	ViewCount    int64  `json:"view_count"`
	CommentCount int64  `json:"comment_count"`
	LikeCount    *int64 `json:"like_count"`
}

// Snapshot is one immutable measurement row.
type Snapshot struct {
	VideoID      string    `json:"video_id"`
	CapturedAt   time.Time `json:"captured_at"`
	ViewCount    int64     `json:"view_count"`
	CommentCount int64     `json:"comment_count"`
	LikeCount    *int64    `json:"like_count"`
}

// NewSnapshot stamps provider stats with the run timestamp.
func NewSnapshot(stats VideoStats, capturedAt time.Time) Snapshot {
	return Snapshot{
		VideoID:      stats.VideoID,
		CapturedAt:   capturedAt,
		ViewCount:    stats.ViewCount,
		CommentCount: stats.CommentCount,
		LikeCount:    stats.LikeCount,
	}
}

// RunTimestamp floors t to the minute in UTC. Every snapshot written by one
// collector run or catalog sync shares this value.
func RunTimestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Minute)
}

// CollectResult reports one collector run.
type CollectResult struct {
	RunTimestamp  time.Time `json:"run_timestamp"`
	Tracked       int       `json:"tracked"`
	Batches       int       `json:"batches"`
	FailedBatches int       `json:"failed_batches"`
	Saved         int       `json:"saved"`
}
