// Package lock implements the lease that keeps a single bot process polling
// the Telegram API at a time.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/assistbot/core/kv"
	"github.com/m3rciful/assistbot/core/logger"
)

var (
	// ErrConflict means another process holds the lease.
	ErrConflict = errors.New("lock: held by another instance")
	// ErrLost means the lease was taken over while it was being kept.
	ErrLost = errors.New("lock: lease lost")
)

const (
	// DefaultKey is the singleton lease key.
	DefaultKey = "bot:instance:lock"
	// DefaultTTL is the lease duration; a crashed owner frees the lease after it.
	DefaultTTL = 10 * time.Second
)

// Options configures New.
type Options struct {
	Key string
	TTL time.Duration
	// Token identifies the owner; empty -> random UUID.
	Token string
}

// Lock is a SET NX lease in a kv.Store.
type Lock struct {
	store kv.Store
	key   string
	ttl   time.Duration
	token string
	// lost is set once Keep saw another owner in the lease.
	lost atomic.Bool
}

// New builds a Lock. It does not touch the store.
func New(store kv.Store, opts Options) *Lock {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Token == "" {
		opts.Token = uuid.NewString()
	}
	return &Lock{store: store, key: opts.Key, ttl: opts.TTL, token: opts.Token}
}

// Token returns the owner token written into the lease.
func (l *Lock) Token() string { return l.token }

// Acquire claims the lease if it is free and reports whether it did.
func (l *Lock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.store.SetNX(ctx, l.key, l.token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("lock: acquire %s: %w", l.key, err)
	}
	level := slog.LevelInfo
	status := "ok"
	if !ok {
		level = slog.LevelWarn
		status = "fail"
	}
	logger.Lock.LogAttrs(ctx, level, "acquire",
		slog.String("event", "lock.acquire"),
		slog.String("status", status),
		slog.String("key", l.key),
		slog.String("token", l.token),
		slog.Int64("ttl_ms", l.ttl.Milliseconds()),
	)
	return ok, nil
}

// MustAcquire is Acquire that maps a held lease to ErrConflict.
func (l *Lock) MustAcquire(ctx context.Context) error {
	ok, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

// Lost reports whether Keep found the lease owned by another process.
func (l *Lock) Lost() bool { return l.lost.Load() }

// Release deletes the lease. It is a no-op once the lease was lost, so the
// new owner keeps it. Errors are logged and dropped.
func (l *Lock) Release(ctx context.Context) {
	if l.lost.Load() {
		logger.Lock.LogAttrs(ctx, slog.LevelWarn, "release skipped",
			slog.String("event", "lock.release"),
			slog.String("outcome", "skip"),
			slog.String("key", l.key),
		)
		return
	}
	if err := l.store.Delete(ctx, l.key); err != nil {
		logger.Lock.LogAttrs(ctx, slog.LevelWarn, "release failed",
			slog.String("event", "lock.release"),
			slog.String("status", "fail"),
			slog.String("key", l.key),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Lock.LogAttrs(ctx, slog.LevelInfo, "released",
		slog.String("event", "lock.release"),
		slog.String("status", "ok"),
		slog.String("key", l.key),
	)
}

// Keep refreshes the lease every TTL/3 until ctx is done. It returns ErrLost
// once the stored token belongs to someone else. Store errors are retried on
// the next tick; the check and refresh are not atomic.
func (l *Lock) Keep(ctx context.Context) error {
	interval := l.ttl / 3
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := l.refresh(ctx); err != nil {
				if errors.Is(err, ErrLost) {
					l.lost.Store(true)
					logger.Lock.LogAttrs(ctx, slog.LevelError, "lease lost",
						slog.String("event", "lock.keep"),
						slog.String("status", "fail"),
						slog.String("key", l.key),
						slog.String("err", err.Error()),
					)
					return err
				}
				if ctx.Err() != nil {
					return nil
				}
				logger.Lock.LogAttrs(ctx, slog.LevelWarn, "refresh failed",
					slog.String("event", "lock.keep"),
					slog.String("status", "retry"),
					slog.String("key", l.key),
					slog.String("err", err.Error()),
				)
			}
		}
	}
}

func (l *Lock) refresh(ctx context.Context) error {
	owner, err := l.store.Get(ctx, l.key)
	switch {
	case kv.IsMiss(err):
		ok, err := l.store.SetNX(ctx, l.key, l.token, l.ttl)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: reclaimed by another instance", ErrLost)
		}
		return nil
	case err != nil:
		return err
	case owner != l.token:
		return fmt.Errorf("%w: owner is %s", ErrLost, owner)
	}
	return l.store.SetEX(ctx, l.key, l.token, l.ttl)
}
