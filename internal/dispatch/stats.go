package dispatch

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatsEvent describes one executed job.
type StatsEvent struct {
	Kind     Kind
	OK       bool
	At       time.Time
	Duration time.Duration
}

// StatsStore persists job outcomes. Implementations may keep them in memory,
// Redis, etc. The queue treats errors as best-effort.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}

type Counters struct {
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
}

// MemoryStatsStore keeps cumulative counters per job kind.
type MemoryStatsStore struct {
	mu     sync.Mutex
	total  Counters
	byKind map[Kind]Counters
	last   time.Time
}

func NewMemoryStatsStore() *MemoryStatsStore {
	return &MemoryStatsStore{byKind: make(map[Kind]Counters)}
}

func (s *MemoryStatsStore) Record(_ context.Context, ev StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.byKind[ev.Kind]
	if ev.OK {
		s.total.Succeeded++
		c.Succeeded++
	} else {
		s.total.Failed++
		c.Failed++
	}
	s.byKind[ev.Kind] = c
	if ev.At.After(s.last) {
		s.last = ev.At
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByKind() map[Kind]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Kind]Counters, len(s.byKind))
	for k, v := range s.byKind {
		out[k] = v
	}
	return out
}

// LastExecuted is the start time of the most recent job, zero if none ran.
func (s *MemoryStatsStore) LastExecuted() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// RedisStatsStore keeps counters in Redis hashes so they survive restarts
// and can be shared by several replicas.
type RedisStatsStore struct {
	rdb    *redis.Client
	prefix string
	// ttl applies to per-minute buckets only; totals never expire.
	ttl time.Duration
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.prefix = strings.Trim(prefix, ":") }
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "dispatch:stats",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) Record(ctx context.Context, ev StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	field := string(ev.Kind) + ":failed"
	if ev.OK {
		field = string(ev.Kind) + ":succeeded"
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)

	bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
	pipe.HIncrBy(ctx, bucketKey, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, bucketKey, s.ttl)
	}

	_, err := pipe.Exec(ctx)
	return err
}

// Totals reads the cumulative counters back.
func (s *RedisStatsStore) Totals(ctx context.Context) (map[Kind]Counters, error) {
	raw, err := s.rdb.HGetAll(ctx, s.prefix+":total").Result()
	if err != nil {
		return nil, err
	}
	out := make(map[Kind]Counters)
	for field, val := range raw {
		kind, outcome, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			continue
		}
		c := out[Kind(kind)]
		if outcome == "succeeded" {
			c.Succeeded += n
		} else {
			c.Failed += n
		}
		out[Kind(kind)] = c
	}
	return out, nil
}
