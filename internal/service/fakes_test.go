package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"yt-hotness/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

// stubStats answers every id with fixed counts unless the batch holds a
// failing id. Ids in missing are dropped the way the API drops deleted videos.
type stubStats struct {
	mu      sync.Mutex
	calls   [][]string
	failOn  map[string]error
	noLikes map[string]bool
	missing map[string]bool
	onFetch func()
}

func (s *stubStats) FetchStatsBatch(ctx context.Context, ids []string) ([]domain.VideoStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, append([]string(nil), ids...))
	if s.onFetch != nil {
		s.onFetch()
	}
	out := make([]domain.VideoStats, 0, len(ids))
	for _, id := range ids {
		if err, ok := s.failOn[id]; ok {
			return nil, err
		}
		if s.missing[id] {
			continue
		}
		stats := domain.VideoStats{VideoID: id, ViewCount: 100, CommentCount: 10}
		if !s.noLikes[id] {
			likes := int64(5)
			stats.LikeCount = &likes
		}
		out = append(out, stats)
	}
	return out, nil
}

type snapshotKey struct {
	videoID    string
	capturedAt time.Time
}

// memStore keeps snapshots keyed like the unique (video_id, captured_at) index.
type memStore struct {
	mu        sync.Mutex
	ids       []string
	listErr   error
	insertErr error
	limit     int
	rows      map[snapshotKey]domain.Snapshot
	attempts  int
	ctxErrs   []error
}

func newMemStore(ids ...string) *memStore {
	return &memStore{ids: ids, rows: make(map[snapshotKey]domain.Snapshot)}
}

func (m *memStore) ListTrackedVideoIDs(ctx context.Context, limit int) ([]string, error) {
	m.limit = limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	if len(m.ids) > limit {
		return m.ids[:limit], nil
	}
	return m.ids, nil
}

func (m *memStore) InsertSnapshots(ctx context.Context, capturedAt time.Time, stats []domain.VideoStats) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	for _, s := range stats {
		key := snapshotKey{videoID: s.VideoID, capturedAt: capturedAt}
		m.attempts++
		if _, exists := m.rows[key]; exists {
			continue
		}
		m.rows[key] = domain.NewSnapshot(s, capturedAt)
	}
	return len(stats), nil
}

type stubTrending struct {
	items      []domain.TrendingVideo
	err        error
	gotRegion  string
	gotLimit   int
	categories []int
}

func (s *stubTrending) FetchTrending(ctx context.Context, region string, categoryID, limit int) ([]domain.TrendingVideo, error) {
	s.gotRegion = region
	s.gotLimit = limit
	s.categories = append(s.categories, categoryID)
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.TrendingVideo, len(s.items))
	copy(out, s.items)
	return out, nil
}

type stubCatalogStore struct {
	err        error
	capturedAt time.Time
	merged     []domain.TrendingVideo
}

func (s *stubCatalogStore) MergeTrending(ctx context.Context, capturedAt time.Time, items []domain.TrendingVideo) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.capturedAt = capturedAt
	s.merged = append(s.merged, items...)
	return len(items), nil
}

type stubRanking struct {
	rows   []domain.RankedVideo
	err    error
	calls  int
	filter domain.RankingFilter
}

func (s *stubRanking) TopHotness(ctx context.Context, filter domain.RankingFilter) ([]domain.RankedVideo, error) {
	s.calls++
	s.filter = filter
	return s.rows, s.err
}

type fakeRedis struct {
	data   map[string][]byte
	setErr error
	getErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string][]byte)}
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = append([]byte(nil), v...)
	case string:
		f.data[key] = []byte(v)
	default:
		bytes, _ := json.Marshal(v)
		f.data[key] = bytes
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	if v, ok := f.data[key]; ok {
		return redis.NewStringResult(string(v), nil)
	}
	return redis.NewStringResult("", redis.Nil)
}
