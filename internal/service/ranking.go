package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"yt-hotness/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const rankingCacheTTL = 60 * time.Second

type RankingReader interface {
	TopHotness(ctx context.Context, filter domain.RankingFilter) ([]domain.RankedVideo, error)
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RankingService serves the hotness ranking, cached briefly in Redis when configured.
type RankingService struct {
	tracer trace.Tracer
	logger *zap.Logger
	repo   RankingReader
	redis  RedisClient
}

func NewRankingService(tracer trace.Tracer, logger *zap.Logger, repo RankingReader, redisClient RedisClient) *RankingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RankingService{tracer: tracer, logger: logger, repo: repo, redis: redisClient}
}

func (s *RankingService) Top(ctx context.Context, filter domain.RankingFilter) ([]domain.RankedVideo, error) {
	ctx, span := s.tracer.Start(ctx, "ranking-service.top")
	defer span.End()

	filter.Limit = filter.NormalizeLimit()
	key := rankingCacheKey(filter)

	if s.redis != nil {
		cached, err := s.getCache(ctx, key)
		if err != nil {
			s.logger.Warn("ranking cache read error", zap.Error(err))
		}
		if cached != nil {
			return cached, nil
		}
	}

	rows, err := s.repo.TopHotness(ctx, filter)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if err := s.setCache(ctx, key, rows); err != nil {
			s.logger.Warn("ranking cache write error", zap.Error(err))
		}
	}
	return rows, nil
}

func rankingCacheKey(filter domain.RankingFilter) string {
	category := "all"
	if filter.CategoryID != nil {
		category = fmt.Sprintf("%d", *filter.CategoryID)
	}
	return fmt.Sprintf("hotness:top:%s:%d", category, filter.Limit)
}

func (s *RankingService) setCache(ctx context.Context, key string, rows []domain.RankedVideo) error {
	data, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, data, rankingCacheTTL).Err()
}

func (s *RankingService) getCache(ctx context.Context, key string) ([]domain.RankedVideo, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rows []domain.RankedVideo
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
