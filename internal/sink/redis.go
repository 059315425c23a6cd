package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig describes a Redis list destination.
type RedisConfig struct {
	Addr      string
	Key       string
	BatchSize int
	Timeout   time.Duration
}

type pusher interface {
	RPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	Close() error
}

// Redis appends lines to a Redis list with RPUSH, BatchSize lines per round
// trip.
type Redis struct {
	client  pusher
	key     string
	size    int
	timeout time.Duration
	batch   []any
}

// OpenRedis connects to cfg.Addr and checks that the server is reachable.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	cfg = cfg.withDefaults()
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return newRedis(client, cfg), nil
}

func (cfg RedisConfig) withDefaults() RedisConfig {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return cfg
}

func newRedis(client pusher, cfg RedisConfig) *Redis {
	cfg = cfg.withDefaults()
	return &Redis{
		client:  client,
		key:     cfg.Key,
		size:    cfg.BatchSize,
		timeout: cfg.Timeout,
		batch:   make([]any, 0, cfg.BatchSize),
	}
}

// WriteLine implements Sink.
func (r *Redis) WriteLine(line string) error {
	r.batch = append(r.batch, line)
	if len(r.batch) < r.size {
		return nil
	}
	return r.flush()
}

func (r *Redis) flush() error {
	if len(r.batch) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.client.RPush(ctx, r.key, r.batch...).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", r.key, err)
	}
	clear(r.batch)
	r.batch = r.batch[:0]
	return nil
}

// Close implements Sink.
func (r *Redis) Close() error {
	if r.client == nil {
		return nil
	}
	err := r.flush()
	err = errors.Join(err, r.client.Close())
	r.client = nil
	return err
}

// Abort implements Sink. Batches already pushed stay in the list; the
// unsent remainder is dropped.
func (r *Redis) Abort() error {
	if r.client == nil {
		return nil
	}
	clear(r.batch)
	r.batch = r.batch[:0]
	err := r.client.Close()
	r.client = nil
	return err
}
