package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/logger"
	"fly2any-growth/internal/observability"
)

// KeyPrefix namespaces decision keys in Redis.
const KeyPrefix = "growth:decision:"

// Connect creates a Redis client from an address or redis:// URL and pings it.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

// RedisStore shares decisions across engine replicas. Expiry is delegated to Redis.
// Any Redis error is logged and treated as a miss.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisStore creates a new RedisStore.
func NewRedisStore(opts RedisOptions) *RedisStore {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	return &RedisStore{
		client: opts.Client,
		ttl:    opts.TTL,
		log:    logger.OrNop(opts.Logger),
	}
}

func (s *RedisStore) Get(ctx context.Context, userID string) (domain.GrowthDecision, bool) {
	raw, err := s.client.Get(ctx, KeyPrefix+userID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.fail("get", userID, err)
		}
		return domain.GrowthDecision{}, false
	}

	var d domain.GrowthDecision
	if err := json.Unmarshal(raw, &d); err != nil {
		s.fail("decode", userID, err)
		return domain.GrowthDecision{}, false
	}
	return d, true
}

func (s *RedisStore) Set(ctx context.Context, d domain.GrowthDecision) {
	if d.UserID == "" {
		return
	}
	raw, err := json.Marshal(d)
	if err != nil {
		s.fail("encode", d.UserID, err)
		return
	}
	if err := s.client.Set(ctx, KeyPrefix+d.UserID, raw, s.ttl).Err(); err != nil {
		s.fail("set", d.UserID, err)
	}
}

func (s *RedisStore) Invalidate(ctx context.Context, userID string) {
	if err := s.client.Del(ctx, KeyPrefix+userID).Err(); err != nil {
		s.fail("del", userID, err)
	}
}

// Len counts decision keys with SCAN. Returns -1 on error.
func (s *RedisStore) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	n := 0
	iter := s.client.Scan(ctx, 0, KeyPrefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		s.fail("scan", "", err)
		return -1
	}
	return n
}

func (s *RedisStore) fail(op, userID string, err error) {
	observability.RecordCacheError()
	s.log.Warn("redis cache error", "op", op, "user_id", userID, "error", err)
}

var _ Store = (*RedisStore)(nil)
