package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// ratioSampler lets through keep out of every window debug events.
// A zero window disables sampling, so every event passes.
type ratioSampler struct {
	keep   atomic.Uint64
	window atomic.Uint64
	seen   atomic.Uint64
}

func newRatioSampler(keep, window int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(keep, window)
	return s
}

// Set replaces the ratio and restarts the window.
func (s *ratioSampler) Set(keep, window int) {
	if keep <= 0 || window <= 0 {
		keep, window = 0, 0
	}
	if keep > window {
		keep = window
	}
	s.window.Store(0)
	s.keep.Store(uint64(keep))
	s.seen.Store(0)
	s.window.Store(uint64(window))
}

// Allow reports whether the next event passes.
func (s *ratioSampler) Allow() bool {
	window := s.window.Load()
	if window == 0 {
		return true
	}
	pos := (s.seen.Add(1) - 1) % window
	return pos < s.keep.Load()
}

// parseRatio accepts "keep/window", a bare window "N" (meaning 1/N),
// and "off". Invalid input yields 0, 0.
func parseRatio(raw string) (int, int) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" || raw == "off" {
		return 0, 0
	}
	if num, den, ok := strings.Cut(raw, "/"); ok {
		n, err1 := strconv.Atoi(strings.TrimSpace(num))
		d, err2 := strconv.Atoi(strings.TrimSpace(den))
		if err1 != nil || err2 != nil {
			return 0, 0
		}
		return n, d
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, 0
	}
	return 1, v
}
