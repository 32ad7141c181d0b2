package domain

import "time"

const (
	DefaultRegion     = "KR"
	DefaultCategoryID = 10
)

// Video is a tracked entry in the catalog.
type Video struct {
	VideoID      string     `json:"video_id"`
	Title        string     `json:"title"`
	ChannelID    string     `json:"channel_id"`
	ChannelTitle string     `json:"channel_title"`
	CategoryID   int        `json:"category_id"`
	Region       string     `json:"region"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
}

// TrendingVideo is one ranked item of the provider's most-popular chart,
// carrying both catalog metadata and current counters.
type TrendingVideo struct {
	Video
	Stats VideoStats `json:"stats"`
}

// CatalogSyncResult summarizes one trending merge.
type CatalogSyncResult struct {
	Region       string    `json:"region"`
	CategoryID   int       `json:"category_id"`
	Fetched      int       `json:"fetched"`
	Upserted     int       `json:"upserted"`
	RunTimestamp time.Time `json:"run_timestamp"`
}

// RankedVideo is a row of the hotness view.
type RankedVideo struct {
	VideoID            string  `json:"video_id"`
	Title              string  `json:"title"`
	ChannelTitle       string  `json:"channel_title"`
	CategoryID         int     `json:"category_id"`
	Region             string  `json:"region"`
	Score              float64 `json:"score"`
	CommentsPerMin     float64 `json:"cpm"`
	CommentsPer1kViews float64 `json:"cpk"`
}

type RankingFilter struct {
	CategoryID *int
	Limit      int
}

const (
	DefaultRankingLimit = 20
	MaxRankingLimit     = 50
)

// NormalizeLimit clamps a requested ranking size into [1, MaxRankingLimit].
func (f RankingFilter) NormalizeLimit() int {
	if f.Limit <= 0 {
		return DefaultRankingLimit
	}
	if f.Limit > MaxRankingLimit {
		return MaxRankingLimit
	}
	return f.Limit
}
