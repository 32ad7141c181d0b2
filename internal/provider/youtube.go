package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"yt-hotness/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	youtubeBaseURL = "https://www.googleapis.com/youtube/v3"

	// MaxIDsPerCall is the videos.list limit for the id parameter.
	MaxIDsPerCall = 50
	// MaxTrendingResults is the videos.list limit for chart=mostPopular.
	MaxTrendingResults = 50
)

var (
	ErrNoIDs       = errors.New("no video ids given")
	ErrTooManyIDs  = fmt.Errorf("more than %d video ids given", MaxIDsPerCall)
	errEmptyAPIKey = errors.New("youtube api key is empty")
)

// YouTubeProvider talks to the YouTube Data API v3 videos endpoint.
type YouTubeProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	tracer  trace.Tracer
	limiter *RateLimiter
}

// NewYouTubeProvider builds a provider limited to ratePerMinute outbound calls.
func NewYouTubeProvider(tracer trace.Tracer, apiKey, baseURL string, ratePerMinute int) *YouTubeProvider {
	if baseURL == "" {
		baseURL = youtubeBaseURL
	}
	return &YouTubeProvider{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		tracer:  tracer,
		limiter: NewPerMinuteLimiter(ratePerMinute),
	}
}

// FetchStatsBatch returns counters for up to MaxIDsPerCall ids in one request.
// A payload without items yields an empty slice and no error.
func (p *YouTubeProvider) FetchStatsBatch(ctx context.Context, ids []string) ([]domain.VideoStats, error) {
	ctx, span := p.tracer.Start(ctx, "youtube.fetch-stats-batch")
	defer span.End()
	span.SetAttributes(attribute.Int("ids", len(ids)))

	if len(ids) == 0 {
		return nil, ErrNoIDs
	}
	if len(ids) > MaxIDsPerCall {
		return nil, ErrTooManyIDs
	}

	q := url.Values{}
	q.Set("part", "statistics")
	q.Set("id", strings.Join(ids, ","))

	body, err := p.doRequest(ctx, "/videos", q)
	if err != nil {
		return nil, fmt.Errorf("fetch stats: %w", err)
	}

	items := decodeItems(body)
	out := make([]domain.VideoStats, 0, len(items))
	for _, item := range items {
		out = append(out, item.stats())
	}
	return out, nil
}

// FetchTrending returns the most-popular chart for a region and category, at
// most limit items in provider rank order.
func (p *YouTubeProvider) FetchTrending(ctx context.Context, region string, categoryID, limit int) ([]domain.TrendingVideo, error) {
	ctx, span := p.tracer.Start(ctx, "youtube.fetch-trending")
	defer span.End()
	span.SetAttributes(
		attribute.String("region", region),
		attribute.Int("category_id", categoryID),
	)

	if limit <= 0 || limit > MaxTrendingResults {
		limit = MaxTrendingResults
	}

	q := url.Values{}
	q.Set("part", "snippet,statistics")
	q.Set("chart", "mostPopular")
	q.Set("regionCode", region)
	q.Set("videoCategoryId", strconv.Itoa(categoryID))
	q.Set("maxResults", strconv.Itoa(limit))

	body, err := p.doRequest(ctx, "/videos", q)
	if err != nil {
		return nil, fmt.Errorf("fetch trending %s/%d: %w", region, categoryID, err)
	}

	items := decodeItems(body)
	out := make([]domain.TrendingVideo, 0, len(items))
	for _, item := range items {
		out = append(out, domain.TrendingVideo{
			Video: domain.Video{
				VideoID:      item.ID,
				Title:        item.Snippet.Title,
				ChannelID:    item.Snippet.ChannelID,
				ChannelTitle: item.Snippet.ChannelTitle,
				CategoryID:   int(item.Snippet.CategoryID.value),
				Region:       region,
				PublishedAt:  parsePublishedAt(item.Snippet.PublishedAt),
			},
			Stats: item.stats(),
		})
	}
	return out, nil
}

func (p *YouTubeProvider) doRequest(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if p.apiKey == "" {
		return nil, errEmptyAPIKey
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	q.Set("key", p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("youtube API error %d: %s", resp.StatusCode, string(bytes.TrimSpace(body)))
	}

	return io.ReadAll(resp.Body)
}

type videoListResponse struct {
	Items []json.RawMessage `json:"items"`
}

type videoStatistics struct {
	ViewCount    count `json:"viewCount"`
	CommentCount count `json:"commentCount"`
	LikeCount    count `json:"likeCount"`
}

type videoSnippet struct {
	Title        string `json:"title"`
	ChannelID    string `json:"channelId"`
	ChannelTitle string `json:"channelTitle"`
	CategoryID   count  `json:"categoryId"`
	PublishedAt  string `json:"publishedAt"`
}

type videoItem struct {
	ID         string           `json:"id"`
	Statistics *videoStatistics `json:"statistics"`
	Snippet    videoSnippet     `json:"snippet"`
}

func (i videoItem) stats() domain.VideoStats {
	s := domain.VideoStats{VideoID: i.ID}
	if i.Statistics == nil {
		return s
	}
	s.ViewCount = i.Statistics.ViewCount.value
	s.CommentCount = i.Statistics.CommentCount.value
	if i.Statistics.LikeCount.set {
		likes := i.Statistics.LikeCount.value
		s.LikeCount = &likes
	}
	return s
}

// count accepts the API's quoted integers as well as bare numbers. Anything
// else leaves it unset instead of failing the whole payload.
type count struct {
	value int64
	set   bool
}

func (c *count) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(raw, 64)
		// 2^63 is the first float64 past the int64 range
		if ferr != nil || math.IsNaN(f) || f < 0 || f >= math.MaxInt64 {
			return nil
		}
		n = int64(f)
	}
	if n < 0 {
		return nil
	}
	c.value = n
	c.set = true
	return nil
}

// decodeItems returns the well-formed items of a videos.list payload. A
// payload without items yields nothing; an item whose statistics or snippet
// has the wrong shape keeps its id with default values for that part.
func decodeItems(body []byte) []videoItem {
	var resp videoListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		zap.L().Warn("youtube: unexpected payload shape", zap.Error(err))
		return nil
	}

	items := make([]videoItem, 0, len(resp.Items))
	for i, raw := range resp.Items {
		item, ok := decodeItem(raw)
		if !ok {
			zap.L().Warn("youtube: skipping item without id", zap.Int("index", i))
			continue
		}
		items = append(items, item)
	}
	return items
}

func decodeItem(raw json.RawMessage) (videoItem, bool) {
	var item videoItem
	if err := json.Unmarshal(raw, &item); err == nil {
		return item, item.ID != ""
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return videoItem{}, false
	}
	item = videoItem{}
	if err := json.Unmarshal(fields["id"], &item.ID); err != nil || item.ID == "" {
		return videoItem{}, false
	}
	if rawStats, ok := fields["statistics"]; ok {
		var stats videoStatistics
		if err := json.Unmarshal(rawStats, &stats); err == nil {
			item.Statistics = &stats
		}
	}
	if rawSnippet, ok := fields["snippet"]; ok {
		var snippet videoSnippet
		if err := json.Unmarshal(rawSnippet, &snippet); err == nil {
			item.Snippet = snippet
		}
	}
	zap.L().Warn("youtube: item partially malformed", zap.String("video_id", item.ID))
	return item, true
}

func parsePublishedAt(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
