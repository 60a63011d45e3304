package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	wmPrefix    = "cognicore:wm:"
	wmAgentsKey = wmPrefix + "agents"
)

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}

// RedisWorkingMemoryStore backs working memory with Redis so a crashed
// process can pick up its agents' current context. It is not long-term
// memory: items still expire and are evicted by capacity. Items live in one
// hash per agent (field = item id); expiries are indexed in a sorted set per
// agent (score = unix expiry) so sweeps never scan payloads. Ordering by
// priority happens on read.
type RedisWorkingMemoryStore struct {
	rdb *redis.Client
}

func NewRedisWorkingMemoryStore(rdb *redis.Client) *RedisWorkingMemoryStore {
	return &RedisWorkingMemoryStore{rdb: rdb}
}

func scopeKey(scope domain.Scope) string {
	return scope.TenantID.String() + ":" + scope.AgentID.String()
}

func itemsKey(sk string) string  { return wmPrefix + sk + ":items" }
func expiryKey(sk string) string { return wmPrefix + sk + ":expiry" }

func (s *RedisWorkingMemoryStore) Insert(ctx context.Context, item *domain.WorkingMemoryItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal working memory item: %w", err)
	}

	sk := scopeKey(domain.Scope{TenantID: item.TenantID, AgentID: item.AgentID})
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, itemsKey(sk), item.ID.String(), data)
		if item.ExpiresAt != nil {
			pipe.ZAdd(ctx, expiryKey(sk), redis.Z{Score: float64(item.ExpiresAt.Unix()), Member: item.ID.String()})
		}
		pipe.SAdd(ctx, wmAgentsKey, sk)
		return nil
	})
	return err
}

func (s *RedisWorkingMemoryStore) List(ctx context.Context, scope domain.Scope) ([]domain.WorkingMemoryItem, error) {
	raw, err := s.rdb.HGetAll(ctx, itemsKey(scopeKey(scope))).Result()
	if err != nil {
		return nil, err
	}
	items := make([]domain.WorkingMemoryItem, 0, len(raw))
	for _, v := range raw {
		var it domain.WorkingMemoryItem
		if err := json.Unmarshal([]byte(v), &it); err != nil {
			return nil, fmt.Errorf("unmarshal working memory item: %w", err)
		}
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority > items[j].Priority
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (s *RedisWorkingMemoryStore) Delete(ctx context.Context, scope domain.Scope, id uuid.UUID) error {
	sk := scopeKey(scope)
	n, err := s.rdb.HDel(ctx, itemsKey(sk), id.String()).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return s.rdb.ZRem(ctx, expiryKey(sk), id.String()).Err()
}

func (s *RedisWorkingMemoryStore) Clear(ctx context.Context, scope domain.Scope) error {
	sk := scopeKey(scope)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, itemsKey(sk), expiryKey(sk))
		pipe.SRem(ctx, wmAgentsKey, sk)
		return nil
	})
	return err
}

func (s *RedisWorkingMemoryStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	agents, err := s.rdb.SMembers(ctx, wmAgentsKey).Result()
	if err != nil {
		return 0, err
	}
	cutoff := strconv.FormatInt(now.Unix(), 10)

	var total int64
	for _, sk := range agents {
		ids, err := s.rdb.ZRangeByScore(ctx, expiryKey(sk), &redis.ZRangeBy{Min: "-inf", Max: cutoff}).Result()
		if err != nil {
			return total, err
		}
		if len(ids) == 0 {
			continue
		}
		n, err := s.rdb.HDel(ctx, itemsKey(sk), ids...).Result()
		if err != nil {
			return total, err
		}
		if err := s.rdb.ZRemRangeByScore(ctx, expiryKey(sk), "-inf", cutoff).Err(); err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
