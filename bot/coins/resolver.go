package coins

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/m3rciful/assistbot/core/kv"
	"github.com/m3rciful/assistbot/core/logger"
)

// ListingKey is the store key of the cached coin listing.
const ListingKey = "coins:listing"

const defaultListingTTL = time.Hour

// Source is the upstream the resolver reads from. *Client implements it.
type Source interface {
	Listing(ctx context.Context) ([]Coin, error)
	Quote(ctx context.Context, id string) (Quote, error)
}

// Options configures New.
type Options struct {
	Source Source
	Store  kv.Store
	// Aliases maps lower-case symbols to coin ids and is consulted before the listing.
	Aliases map[string]string
	// ListingTTL bounds the cached listing; 0 -> 1h.
	ListingTTL time.Duration
}

// Resolver maps user input to coin ids and fetches quotes.
type Resolver struct {
	src        Source
	store      kv.Store
	aliases    map[string]string
	listingTTL time.Duration
}

// New builds a Resolver.
func New(opts Options) (*Resolver, error) {
	if opts.Source == nil {
		return nil, errors.New("coins: nil source")
	}
	if opts.Store == nil {
		return nil, errors.New("coins: nil store")
	}
	if opts.ListingTTL <= 0 {
		opts.ListingTTL = defaultListingTTL
	}
	aliases := make(map[string]string, len(opts.Aliases))
	for sym, id := range opts.Aliases {
		aliases[strings.ToLower(strings.TrimSpace(sym))] = strings.TrimSpace(id)
	}
	return &Resolver{
		src:        opts.Source,
		store:      opts.Store,
		aliases:    aliases,
		listingTTL: opts.ListingTTL,
	}, nil
}

// Resolve returns the coin id for a symbol, id or name. Matching is
// case-insensitive; symbol or id matches win over name matches and the
// first listing entry wins among equal matches.
func (r *Resolver) Resolve(ctx context.Context, input string) (string, error) {
	needle := strings.ToLower(strings.TrimSpace(input))
	if needle == "" {
		return "", ErrNotFound
	}
	if id, ok := r.aliases[needle]; ok {
		return id, nil
	}

	listing, err := r.listing(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if id, ok := match(listing, needle); ok {
		return id, nil
	}
	return "", ErrNotFound
}

func match(listing []Coin, needle string) (string, bool) {
	for _, c := range listing {
		if strings.EqualFold(c.Symbol, needle) || strings.EqualFold(c.ID, needle) {
			return c.ID, true
		}
	}
	for _, c := range listing {
		if strings.EqualFold(c.Name, needle) {
			return c.ID, true
		}
	}
	return "", false
}

// Quote fetches a live quote for id.
func (r *Resolver) Quote(ctx context.Context, id string) (Quote, error) {
	return r.src.Quote(ctx, id)
}

// Warm fetches the listing and stores it regardless of what is cached.
func (r *Resolver) Warm(ctx context.Context) error {
	listing, err := r.src.Listing(ctx)
	if err != nil {
		return fmt.Errorf("coins: warm listing: %w", err)
	}
	if err := r.storeListing(ctx, listing); err != nil {
		return fmt.Errorf("coins: warm listing: %w", err)
	}
	return nil
}

// listing returns the cached listing or refetches it. Store failures count as a miss.
func (r *Resolver) listing(ctx context.Context) ([]Coin, error) {
	raw, err := r.store.Get(ctx, ListingKey)
	switch {
	case err == nil:
		var listing []Coin
		derr := msgpack.Unmarshal([]byte(raw), &listing)
		if derr == nil {
			return listing, nil
		}
		logger.Coins.LogAttrs(ctx, slog.LevelWarn, "cached listing undecodable, refetching",
			slog.String("event", "coins.listing"),
			slog.String("cache", "refresh"),
			slog.String("err", derr.Error()),
		)
	case kv.IsMiss(err):
	default:
		logger.Coins.LogAttrs(ctx, slog.LevelWarn, "listing cache read failed",
			slog.String("event", "coins.listing"),
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}

	start := time.Now()
	listing, err := r.src.Listing(ctx)
	if err != nil {
		logger.Coins.LogAttrs(ctx, slog.LevelWarn, "listing fetch failed",
			slog.String("event", "coins.listing"),
			slog.String("status", "fail"),
			slog.String("cache", "miss"),
			slog.String("err", err.Error()),
		)
		return nil, err
	}
	logger.Coins.LogAttrs(ctx, slog.LevelInfo, "listing fetched",
		slog.String("event", "coins.listing"),
		slog.String("status", "ok"),
		slog.String("cache", "miss"),
		slog.Int("count", len(listing)),
		slog.Int64("duration_ms", logger.Took(start).Milliseconds()),
	)
	if err := r.storeListing(ctx, listing); err != nil {
		logger.Coins.LogAttrs(ctx, slog.LevelWarn, "listing cache write failed",
			slog.String("event", "coins.listing"),
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	return listing, nil
}

func (r *Resolver) storeListing(ctx context.Context, listing []Coin) error {
	b, err := msgpack.Marshal(listing)
	if err != nil {
		return fmt.Errorf("encode listing: %w", err)
	}
	return r.store.SetEX(ctx, ListingKey, string(b), r.listingTTL)
}
