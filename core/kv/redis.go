package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/m3rciful/assistbot/core/logger"
	"github.com/m3rciful/assistbot/core/metrics"
)

const defaultOpTimeout = 3 * time.Second

// ErrNilClient is returned when NewRedis is called without a client.
var ErrNilClient = errors.New("kv: nil redis client")

// Redis implements Store on top of a go-redis client.
type Redis struct {
	rdb         goredis.UniversalClient
	opTimeout   time.Duration
	closeClient bool
}

var _ Store = (*Redis)(nil)

// RedisOptions configures NewRedis.
type RedisOptions struct {
	Client goredis.UniversalClient
	// OpTimeout bounds every single command; 0 -> 3s.
	OpTimeout time.Duration
	// CloseClient is set when the store exclusively owns the client.
	CloseClient bool
}

// NewRedis wraps an existing client.
func NewRedis(opts RedisOptions) (*Redis, error) {
	if opts.Client == nil {
		return nil, ErrNilClient
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = defaultOpTimeout
	}
	return &Redis{rdb: opts.Client, opTimeout: opts.OpTimeout, closeClient: opts.CloseClient}, nil
}

// Dial parses a redis:// URL, connects and verifies the connection with PING.
func Dial(ctx context.Context, url string, opTimeout time.Duration) (*Redis, error) {
	opt, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("kv: parse redis url: %w", err)
	}
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	opt.DialTimeout = opTimeout
	opt.ReadTimeout = opTimeout
	opt.WriteTimeout = opTimeout
	// single-shot semantics: a failed command is final for that attempt
	opt.MaxRetries = -1

	client := goredis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	start := time.Now()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		logger.KV.Error("redis connect failed",
			slog.String("event", "kv.connect"),
			slog.String("host", opt.Addr),
			slog.Int("db", opt.DB),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("kv: redis ping %s: %w: %w", opt.Addr, ErrUnavailable, err)
	}
	logger.KV.Info("redis connected",
		slog.String("event", "kv.connect"),
		slog.String("host", opt.Addr),
		slog.Int("db", opt.DB),
		slog.Int64("duration_ms", logger.Took(start).Milliseconds()),
	)
	return NewRedis(RedisOptions{Client: client, OpTimeout: opTimeout, CloseClient: true})
}

func (r *Redis) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, r.opTimeout)
}

// Get implements Store.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	cctx, cancel := r.ctx(ctx)
	defer cancel()
	val, err := r.rdb.Get(cctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		metrics.ObserveStoreOp("get", "miss")
		return "", ErrMiss
	}
	if err != nil {
		return "", r.fail("get", key, err)
	}
	metrics.ObserveStoreOp("get", "hit")
	return val, nil
}

// Set implements Store.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	cctx, cancel := r.ctx(ctx)
	defer cancel()
	if err := r.rdb.Set(cctx, key, value, 0).Err(); err != nil {
		return r.fail("set", key, err)
	}
	metrics.ObserveStoreOp("set", "ok")
	return nil
}

// SetEX implements Store.
func (r *Redis) SetEX(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return r.Set(ctx, key, value)
	}
	cctx, cancel := r.ctx(ctx)
	defer cancel()
	if err := r.rdb.Set(cctx, key, value, ttl).Err(); err != nil {
		return r.fail("setex", key, err)
	}
	metrics.ObserveStoreOp("setex", "ok")
	return nil
}

// SetNX implements Store.
func (r *Redis) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	cctx, cancel := r.ctx(ctx)
	defer cancel()
	ok, err := r.rdb.SetNX(cctx, key, value, ttl).Result()
	if err != nil {
		return false, r.fail("setnx", key, err)
	}
	metrics.ObserveStoreOp("setnx", "ok")
	return ok, nil
}

// Delete implements Store.
func (r *Redis) Delete(ctx context.Context, key string) error {
	cctx, cancel := r.ctx(ctx)
	defer cancel()
	if err := r.rdb.Del(cctx, key).Err(); err != nil {
		return r.fail("del", key, err)
	}
	metrics.ObserveStoreOp("del", "ok")
	return nil
}

// Close releases the client only when this store owns it.
func (r *Redis) Close() error {
	if !r.closeClient {
		return nil
	}
	if err := r.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
		return err
	}
	return nil
}

func (r *Redis) fail(op, key string, err error) error {
	metrics.ObserveStoreOp(op, "fail")
	return fmt.Errorf("kv: redis %s %q: %w: %w", op, key, ErrUnavailable, err)
}
