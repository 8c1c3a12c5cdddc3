// ABOUTME: Redis Provider storing each namespace as one hash
// ABOUTME: Commits run inside MULTI/EXEC so a batch lands atomically

package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ErrRedisURL is returned when the Redis connection URL cannot be parsed.
var ErrRedisURL = errors.New("failed to parse redis connection string")

// RedisConfig configures a RedisProvider.
type RedisConfig struct {
	URL    string
	Prefix string
}

// RedisProvider keeps every namespace in a Redis hash named <prefix>:<id>.
type RedisProvider struct {
	client *redis.Client
	prefix string
	logger *slog.Logger

	mu     sync.Mutex
	stores map[string]*redisStore
}

// NewRedisProvider connects to cfg.URL and verifies the connection with PING.
func NewRedisProvider(ctx context.Context, cfg RedisConfig) (*RedisProvider, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisURL, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewRedisProviderWithClient(client, cfg.Prefix), nil
}

// NewRedisProviderWithClient wraps an existing client. The provider closes it on Close.
func NewRedisProviderWithClient(client *redis.Client, prefix string) *RedisProvider {
	if prefix == "" {
		prefix = "sealed-prefs"
	}
	return &RedisProvider{
		client: client,
		prefix: prefix,
		logger: slog.Default().With("component", "kv.redis"),
		stores: make(map[string]*redisStore),
	}
}

// Open returns the store for ns.
func (p *RedisProvider) Open(ctx context.Context, ns Namespace) (Store, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	id := ns.ID()
	s, ok := p.stores[id]
	if !ok {
		s = &redisStore{
			client:    p.client,
			hash:      p.prefix + ":" + id,
			listeners: newListenerSet(),
			logger:    p.logger.With("namespace", id),
		}
		p.stores[id] = s
	}
	return s, nil
}

// Close closes the Redis client.
func (p *RedisProvider) Close() error {
	return p.client.Close()
}

type redisStore struct {
	client    *redis.Client
	hash      string
	listeners *listenerSet
	logger    *slog.Logger
}

var _ Store = (*redisStore)(nil)

func (s *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.HGet(ctx, s.hash, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("getting preference: %w", err)
	}
	return v, true, nil
}

func (s *redisStore) Contains(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.HExists(ctx, s.hash, key).Result()
	if err != nil {
		return false, fmt.Errorf("checking preference: %w", err)
	}
	return ok, nil
}

func (s *redisStore) All(ctx context.Context) (map[string]string, error) {
	m, err := s.client.HGetAll(ctx, s.hash).Result()
	if err != nil {
		return nil, fmt.Errorf("listing preferences: %w", err)
	}
	return m, nil
}

func (s *redisStore) Edit() Editor {
	return newEditor(s.write, s.listeners, s.logger)
}

func (s *redisStore) RegisterListener(l Listener) {
	s.listeners.add(l)
}

func (s *redisStore) UnregisterListener(l Listener) {
	s.listeners.remove(l)
}

func (s *redisStore) write(ctx context.Context, b Batch) ([]string, error) {
	deletes := make(map[string]*redis.IntCmd)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if b.Clear {
			pipe.Del(ctx, s.hash)
		}
		for _, op := range b.Ops {
			if op.Delete {
				deletes[op.Key] = pipe.HDel(ctx, s.hash, op.Key)
			} else {
				pipe.HSet(ctx, s.hash, op.Key, op.Value)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("committing preferences: %w", err)
	}

	changed := make([]string, 0, len(b.Ops))
	for _, op := range b.Ops {
		if cmd, ok := deletes[op.Key]; ok && cmd.Val() == 0 {
			continue
		}
		changed = append(changed, op.Key)
	}
	return changed, nil
}
