// Package sender runs outbound Telegram calls on a small worker pool with
// bounded retries for transient network failures.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/assistbot/core/logger"
	"github.com/m3rciful/assistbot/core/metrics"
	"github.com/m3rciful/assistbot/core/telegram/netutil"
)

// Options controls the dispatcher. Zero fields take defaults.
type Options struct {
	// Workers is the number of shards, each drained by one goroutine.
	Workers int
	// QueueSize is the buffer of each shard.
	QueueSize    int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
	// ShouldRetry overrides netutil.ShouldRetry.
	ShouldRetry func(error) bool
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	if o.ShouldRetry == nil {
		o.ShouldRetry = netutil.ShouldRetry
	}
	return o
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes outbound Telegram calls asynchronously.
// Jobs of one chat always land on the same shard, so replies keep their order.
type Dispatcher struct {
	opts    Options
	backoff netutil.Backoff
	shards  []chan job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	failed atomic.Uint64
}

// NewDispatcher starts the shard workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{
		opts:    opts,
		backoff: netutil.Backoff{Retries: opts.MaxRetries, Step: opts.RetryBackoff},
		shards:  make([]chan job, opts.Workers),
	}
	d.wg.Add(len(d.shards))
	for i := range d.shards {
		d.shards[i] = make(chan job, opts.QueueSize)
		go func(jobs <-chan job) {
			defer d.wg.Done()
			for j := range jobs {
				d.deliver(j)
			}
		}(d.shards[i])
	}
	return d
}

// Enqueue schedules run on the shard owning the chat found in ctx.
// run must be idempotent when retries are enabled.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.shards[d.shard(ctx)] <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// shard keys by chat, or by user when the update has no chat.
func (d *Dispatcher) shard(ctx context.Context) int {
	key := logger.ChatIDFrom(ctx)
	if key == 0 {
		key = logger.UserIDFrom(ctx)
	}
	if key < 0 {
		key = -key
	}
	return int(key % int64(len(d.shards)))
}

// ErrorCount returns the number of jobs that finally failed.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.failed.Load()
}

// Close stops accepting jobs and waits until queued ones are processed.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.shards {
		close(ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// deliver runs j with retries. The handler may have returned already, so
// its cancellation is ignored and MaxDuration bounds the job instead.
func (d *Dispatcher) deliver(j job) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(j.ctx), d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.backoff.Attempts()
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = ctx.Err(); err != nil {
			break
		}
		if err = j.run(); err == nil {
			metrics.ObserveSend(j.action, "ok")
			attrs := j.attrs(slog.Int64("duration_ms", logger.Took(start).Milliseconds()))
			if attempt > 1 {
				attrs = append(attrs, slog.Int("attempts", attempt))
			}
			logger.Debug(j.ctx, "tg.sender", "send.ok", attrs...)
			return
		}
		if attempt == attempts || !d.opts.ShouldRetry(err) {
			break
		}
		metrics.ObserveSend(j.action, "retry")
		logger.Debug(j.ctx, "tg.sender", "send.retry", j.attrs(
			slog.Int("attempts", attempt),
			slog.Int64("backoff_ms", d.backoff.Delay(attempt).Milliseconds()),
			slog.String("err", netutil.Redact(err)),
		)...)
		if werr := d.backoff.Wait(ctx, attempt); werr != nil {
			err = errors.Join(err, werr)
			break
		}
	}

	d.failed.Add(1)
	metrics.ObserveSend(j.action, "fail")
	logger.Error(j.ctx, "tg.sender", "send.fail", j.attrs(
		slog.String("status", "fail"),
		slog.String("err", netutil.Redact(err)),
		slog.String("err_code", classify(err)),
		slog.Int64("duration_ms", logger.Took(start).Milliseconds()),
	)...)
}

// attrs prefixes extra with the operation and endpoint. Update identifiers
// come from the job context through the log handler.
func (j job) attrs(extra ...slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(extra)+2)
	out = append(out, slog.String("op", j.action))
	if j.endpoint != "" {
		out = append(out, slog.String("handler", j.endpoint))
	}
	return append(out, extra...)
}
