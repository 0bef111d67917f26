package state

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/assistbot/core/kv"
	"github.com/m3rciful/assistbot/core/logger"
)

// Store reads and writes user sessions in a kv.Store.
//
// Reads fail open to defaults, clears are best effort. Only explicit
// selections (SetMode, SetMenuLayout) report errors to the caller.
type Store struct {
	kv kv.Store
}

// NewStore wraps a key/value store.
func NewStore(store kv.Store) *Store {
	return &Store{kv: store}
}

// SetMode persists the pending mode of a user without expiry.
func (s *Store) SetMode(ctx context.Context, userID int64, mode Mode) error {
	if err := s.kv.Set(ctx, modeKey(userID), string(mode)); err != nil {
		return fmt.Errorf("state: set mode %s: %w", mode, err)
	}
	logger.Session.LogAttrs(ctx, slog.LevelDebug, "mode set",
		slog.String("event", "session.mode.set"),
		slog.Int64("user_id", userID),
		slog.String("mode", string(mode)),
	)
	return nil
}

// Mode returns the pending mode of a user; ModeNone when absent, unknown or unreadable.
func (s *Store) Mode(ctx context.Context, userID int64) Mode {
	raw, err := s.kv.Get(ctx, modeKey(userID))
	if err != nil {
		if !kv.IsMiss(err) {
			s.logReadError(ctx, "session.mode.get", userID, err)
		}
		return ModeNone
	}
	mode, ok := ParseMode(raw)
	if !ok {
		logger.Session.LogAttrs(ctx, slog.LevelWarn, "unknown stored mode",
			slog.String("event", "session.mode.get"),
			slog.Int64("user_id", userID),
			slog.String("mode", logger.SanitizeLimit(raw, 32)),
		)
	}
	return mode
}

// ClearMode removes the pending mode. Errors are logged and dropped.
func (s *Store) ClearMode(ctx context.Context, userID int64) {
	if err := s.kv.Delete(ctx, modeKey(userID)); err != nil {
		logger.Session.LogAttrs(ctx, slog.LevelWarn, "mode clear failed",
			slog.String("event", "session.mode.clear"),
			slog.String("status", "fail"),
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
	}
}

// SetMenuLayout persists the preferred menu layout without expiry.
func (s *Store) SetMenuLayout(ctx context.Context, userID int64, layout Layout) error {
	if err := s.kv.Set(ctx, layoutKey(userID), string(layout)); err != nil {
		return fmt.Errorf("state: set layout %s: %w", layout, err)
	}
	return nil
}

// MenuLayout returns the preferred layout; LayoutGrid when absent, unknown or unreadable.
func (s *Store) MenuLayout(ctx context.Context, userID int64) Layout {
	raw, err := s.kv.Get(ctx, layoutKey(userID))
	if err != nil {
		if !kv.IsMiss(err) {
			s.logReadError(ctx, "session.layout.get", userID, err)
		}
		return LayoutGrid
	}
	layout, _ := ParseLayout(raw)
	return layout
}

func (s *Store) logReadError(ctx context.Context, event string, userID int64, err error) {
	logger.Session.LogAttrs(ctx, slog.LevelWarn, "session read failed, using default",
		slog.String("event", event),
		slog.String("status", "fail"),
		slog.Int64("user_id", userID),
		slog.String("err", err.Error()),
	)
}
