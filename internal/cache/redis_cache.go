// Package cache keeps analysis results in Redis keyed by a fingerprint of
// the dataset and options that produced them.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = time.Hour

// AnalysisCache stores JSON values under analysis:{org}:{fingerprint}.
type AnalysisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New connects to redisURL and fails when the server does not answer.
func New(redisURL string, ttl time.Duration) (*AnalysisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewWithClient(client, ttl), nil
}

func NewWithClient(client *redis.Client, ttl time.Duration) *AnalysisCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &AnalysisCache{client: client, prefix: "analysis:", ttl: ttl}
}

func (c *AnalysisCache) key(orgID, fingerprint string) string {
	return c.prefix + orgID + ":" + fingerprint
}

// Get decodes the cached value into dest. It reports false on a miss.
func (c *AnalysisCache) Get(ctx context.Context, orgID, fingerprint string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, c.key(orgID, fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read cached analysis: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("decode cached analysis: %w", err)
	}
	return true, nil
}

func (c *AnalysisCache) Set(ctx context.Context, orgID, fingerprint string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	if err := c.client.Set(ctx, c.key(orgID, fingerprint), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache analysis: %w", err)
	}
	return nil
}

// Invalidate drops every cached analysis of an organization. It is called
// after an import replaces the working set.
func (c *AnalysisCache) Invalidate(ctx context.Context, orgID string) error {
	iter := c.client.Scan(ctx, 0, c.prefix+orgID+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cached analyses: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate cached analyses: %w", err)
	}
	return nil
}

func (c *AnalysisCache) Close() error {
	return c.client.Close()
}

func (c *AnalysisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Fingerprint hashes the JSON encoding of parts in order. Callers pass the
// dataset and every option that changes the result.
func Fingerprint(parts ...any) (string, error) {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for i, part := range parts {
		if err := enc.Encode(part); err != nil {
			return "", fmt.Errorf("fingerprint part %d: %w", i, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
