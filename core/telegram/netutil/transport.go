package netutil

import (
	"context"
	"net/http"
	"time"
)

// Backoff is a linear retry schedule: the n-th retry waits n*Step.
type Backoff struct {
	Retries int
	Step    time.Duration
}

// Attempts is the total number of tries including the first one.
func (b Backoff) Attempts() int {
	if b.Retries < 0 {
		return 1
	}
	return b.Retries + 1
}

// Delay returns the wait before retry number attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 || b.Step <= 0 {
		return 0
	}
	return b.Step * time.Duration(attempt)
}

// Wait sleeps for Delay(attempt) or until ctx is done.
func (b Backoff) Wait(ctx context.Context, attempt int) error {
	d := b.Delay(attempt)
	if d == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Transport retries round trips that fail with an error ShouldRetry accepts.
// A request whose body cannot be rewound is sent once.
type Transport struct {
	Base    http.RoundTripper
	Backoff Backoff
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	replayable := req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
	attempts := t.Backoff.Attempts()
	if !replayable {
		attempts = 1
	}

	var err error
	for attempt := 1; ; attempt++ {
		try := req
		if attempt > 1 {
			if try, err = rewind(req); err != nil {
				return nil, err
			}
		}
		var resp *http.Response
		if resp, err = base.RoundTrip(try); err == nil {
			return resp, nil
		}
		if attempt >= attempts || !ShouldRetry(err) {
			return nil, err
		}
		if werr := t.Backoff.Wait(req.Context(), attempt); werr != nil {
			return nil, werr
		}
	}
}

func rewind(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.GetBody == nil {
		return clone, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone.Body = body
	return clone, nil
}
