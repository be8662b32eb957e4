package service

import (
	"context"
	"time"

	"github.com/windfall/speakscore/internal/client"
	"github.com/windfall/speakscore/internal/errors"
)

// Redis key prefix for finished assessment results
const resultKeyPrefix = "assessment:result:"

// RedisResultStore keeps finished results in Redis for a limited time.
type RedisResultStore struct {
	redis *client.RedisClient
	ttl   time.Duration
}

// NewRedisResultStore creates a result store expiring entries after ttl.
func NewRedisResultStore(redis *client.RedisClient, ttl time.Duration) *RedisResultStore {
	return &RedisResultStore{redis: redis, ttl: ttl}
}

// Save stores result under id.
func (s *RedisResultStore) Save(ctx context.Context, id string, result *AssessmentResult) error {
	if err := s.redis.SetJSON(ctx, resultKeyPrefix+id, result, s.ttl); err != nil {
		return errors.Wrap(errors.ErrStorageService, "failed to store result", err)
	}
	return nil
}

// Get loads the result stored under id.
func (s *RedisResultStore) Get(ctx context.Context, id string) (*AssessmentResult, error) {
	var result AssessmentResult
	hit, err := s.redis.GetJSON(ctx, resultKeyPrefix+id, &result)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorageService, "failed to load result", err)
	}
	if !hit {
		return nil, errors.NotFound("assessment result")
	}
	result.ID = id
	return &result, nil
}
