package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore shares progress between API replicas and the CLI. Entries live at
// progress:<tenant>:<kind>:<ref>; a per-tenant set indexes them so listing never scans keys.
// Completed entries get a TTL equal to the grace window.
type RedisStore struct {
	client *redis.Client
	grace  time.Duration
}

// NewRedisStore creates a store backed by Redis.
func NewRedisStore(addr, password string, db int, grace time.Duration) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisStore{client: rdb, grace: grace}
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func entryKey(key Key) string {
	return "progress:" + key.String()
}

func indexKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("progress:index:%s", tenantID)
}

func (s *RedisStore) Save(ctx context.Context, p Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}
	var ttl time.Duration
	if p.Status == StatusCompleted {
		ttl = s.grace
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, entryKey(p.Key), data, ttl)
	pipe.SAdd(ctx, indexKey(p.TenantID), entryKey(p.Key))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis progress save error: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key Key) (*Progress, error) {
	data, err := s.client.Get(ctx, entryKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis progress get error: %w", err)
	}
	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode progress: %w", err)
	}
	return &p, nil
}

// ListByTenant reads every indexed entry and prunes index members whose entry expired.
func (s *RedisStore) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Progress, error) {
	members, err := s.client.SMembers(ctx, indexKey(tenantID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis progress index error: %w", err)
	}
	out := make([]Progress, 0, len(members))
	if len(members) == 0 {
		return out, nil
	}
	values, err := s.client.MGet(ctx, members...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis progress list error: %w", err)
	}
	var expired []interface{}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			expired = append(expired, members[i])
			continue
		}
		var p Progress
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			continue
		}
		out = append(out, p)
	}
	if len(expired) > 0 {
		s.client.SRem(ctx, indexKey(tenantID), expired...)
	}
	sortByStart(out)
	return out, nil
}
