// Package kv defines the networked key/value store every bot component keeps
// its cross-request state in, and the implementations backing it.
//
// Implementations must distinguish a plain miss (ErrMiss) from an unreachable
// store (ErrUnavailable) so callers can choose between defaults and failure.
package kv

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrMiss is returned by Get when the key does not exist or has expired.
	ErrMiss = errors.New("kv: key not found")
	// ErrUnavailable wraps every transport or server failure of the store.
	ErrUnavailable = errors.New("kv: store unavailable")
)

// Store is a string key/value store with optional expiry.
// Must be safe for concurrent use.
type Store interface {
	// Get returns the value or ErrMiss.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value without expiry.
	Set(ctx context.Context, key, value string) error
	// SetEX stores value that expires after ttl.
	SetEX(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX stores value with ttl only if key is absent and reports whether it did.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases resources.
	Close() error
}

// IsMiss reports whether err is a plain miss.
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}

// IsUnavailable reports whether err signals an unreachable store.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
