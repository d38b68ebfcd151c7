package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/TIANLI0/PopCut/config"
	"github.com/TIANLI0/PopCut/model"
	"github.com/TIANLI0/PopCut/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "cutout:"

// ResultCache 抠图结果缓存，未命中返回 nil, nil
type ResultCache interface {
	GetResult(ctx context.Context, id string) (*model.CutoutResult, error)
	SetResult(ctx context.Context, id string, result *model.CutoutResult) error
}

type RedisService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisService(cfg *config.RedisConfig) *RedisService {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisService{
		client: client,
		ttl:    cfg.TTL,
	}
}

func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// GetResult 从缓存获取抠图结果
func (s *RedisService) GetResult(ctx context.Context, id string) (*model.CutoutResult, error) {
	data, err := s.client.Get(ctx, cacheKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // 缓存未命中
		}
		return nil, err
	}

	var result model.CutoutResult
	if err := json.Unmarshal(data, &result); err != nil {
		utils.Logger.Error("failed to unmarshal cutout result",
			zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return &result, nil
}

// SetResult 写入缓存
func (s *RedisService) SetResult(ctx context.Context, id string, result *model.CutoutResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, cacheKeyPrefix+id, data, s.ttl).Err()
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

var _ ResultCache = (*RedisService)(nil)
