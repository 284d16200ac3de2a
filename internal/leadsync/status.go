package leadsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	statusKey = "leadsync:last_run"
	statusTTL = 7 * 24 * time.Hour
)

// StatusStore persists the summary of the most recent run.
type StatusStore interface {
	Save(ctx context.Context, summary Summary) error
	Last(ctx context.Context) (Summary, bool, error)
}

// RedisStatusStore keeps the last summary as JSON under a single key.
type RedisStatusStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisStatusStore(client *redis.Client) *RedisStatusStore {
	return &RedisStatusStore{client: client, key: statusKey, ttl: statusTTL}
}

func (s *RedisStatusStore) Save(ctx context.Context, summary Summary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode run summary: %w", err)
	}
	return s.client.Set(ctx, s.key, data, s.ttl).Err()
}

func (s *RedisStatusStore) Last(ctx context.Context) (Summary, bool, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Summary{}, false, nil
	}
	if err != nil {
		return Summary{}, false, err
	}

	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return Summary{}, false, fmt.Errorf("decode run summary: %w", err)
	}
	return summary, true, nil
}

// NopStatusStore is used when Redis is not configured.
type NopStatusStore struct{}

func (NopStatusStore) Save(context.Context, Summary) error { return nil }

func (NopStatusStore) Last(context.Context) (Summary, bool, error) { return Summary{}, false, nil }
