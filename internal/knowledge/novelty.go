package knowledge

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// noveltyCap bounds how many recently served chunk IDs are tracked
	// per user.
	noveltyCap = 50
	// noveltyTTL is how long a served chunk stays demoted.
	noveltyTTL = 7 * 24 * time.Hour
)

// NoveltyStore remembers which chunks a user has recently been served so
// retrieval can prefer material they have not seen.
type NoveltyStore interface {
	// Recent returns the chunk IDs served to the user within the
	// novelty window, most recent first.
	Recent(ctx context.Context, userID int64) ([]int64, error)
	// Remember records chunk IDs as served to the user now.
	Remember(ctx context.Context, userID int64, chunkIDs []int64) error
}

type servedChunk struct {
	id       int64
	servedAt time.Time
}

// memoryNoveltyStore is a process-local NoveltyStore. It suits tests and
// single-instance deployments without Redis.
type memoryNoveltyStore struct {
	mu     sync.Mutex
	served map[int64][]servedChunk
	now    func() time.Time
}

// NewMemoryNoveltyStore creates an in-memory novelty store.
func NewMemoryNoveltyStore() NoveltyStore {
	return &memoryNoveltyStore{served: map[int64][]servedChunk{}, now: time.Now}
}

func (s *memoryNoveltyStore) Recent(_ context.Context, userID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := s.prune(userID)
	ids := make([]int64, 0, len(fresh))
	for i := len(fresh) - 1; i >= 0; i-- {
		ids = append(ids, fresh[i].id)
	}
	return ids, nil
}

func (s *memoryNoveltyStore) Remember(_ context.Context, userID int64, chunkIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.prune(userID)
	now := s.now()
	for _, id := range chunkIDs {
		entries = append(entries, servedChunk{id: id, servedAt: now})
	}
	if len(entries) > noveltyCap {
		entries = entries[len(entries)-noveltyCap:]
	}
	s.served[userID] = entries
	return nil
}

// prune drops expired entries for a user and returns the survivors in
// oldest-first order. Callers must hold the mutex.
func (s *memoryNoveltyStore) prune(userID int64) []servedChunk {
	cutoff := s.now().Add(-noveltyTTL)
	var fresh []servedChunk
	for _, entry := range s.served[userID] {
		if entry.servedAt.After(cutoff) {
			fresh = append(fresh, entry)
		}
	}
	s.served[userID] = fresh
	return fresh
}

// redisNoveltyStore keeps served chunk IDs in a per-user sorted set
// scored by serve time.
type redisNoveltyStore struct {
	client *redis.Client
}

// NewRedisNoveltyStore creates a Redis-backed novelty store.
func NewRedisNoveltyStore(client *redis.Client) NoveltyStore {
	return &redisNoveltyStore{client: client}
}

func noveltyKey(userID int64) string {
	return fmt.Sprintf("novelty:user:%d", userID)
}

func (s *redisNoveltyStore) Recent(ctx context.Context, userID int64) ([]int64, error) {
	key := noveltyKey(userID)
	cutoff := time.Now().Add(-noveltyTTL).UnixMilli()
	if err := s.client.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return nil, fmt.Errorf("trim expired novelty entries: %w", err)
	}
	members, err := s.client.ZRevRange(ctx, key, 0, noveltyCap-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read novelty entries: %w", err)
	}
	ids := make([]int64, 0, len(members))
	for _, member := range members {
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse novelty entry %q: %w", member, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *redisNoveltyStore) Remember(ctx context.Context, userID int64, chunkIDs []int64) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	key := noveltyKey(userID)
	now := float64(time.Now().UnixMilli())
	members := make([]redis.Z, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		members = append(members, redis.Z{Score: now, Member: strconv.FormatInt(id, 10)})
	}
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, members...)
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-noveltyCap-1))
	pipe.Expire(ctx, key, noveltyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record novelty entries: %w", err)
	}
	return nil
}
