package coins

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m3rciful/assistbot/core/logger"
)

const (
	defaultBaseURL = "https://api.coingecko.com/api/v3"
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 512
)

// ClientOptions configures NewClient.
type ClientOptions struct {
	BaseURL string
	// APIKey is sent in APIKeyHeader when set.
	APIKey       string
	APIKeyHeader string
	// Timeout bounds each request; 0 -> 10s.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to a CoinGecko-compatible REST API. Requests are never retried.
type Client struct {
	hc           *http.Client
	baseURL      string
	apiKey       string
	apiKeyHeader string
	timeout      time.Duration
}

// NewClient builds a market data client.
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.APIKeyHeader == "" {
		opts.APIKeyHeader = "x-cg-demo-api-key"
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		hc:           hc,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		apiKey:       opts.APIKey,
		apiKeyHeader: opts.APIKeyHeader,
		timeout:      opts.Timeout,
	}
}

// Listing fetches the full coin listing.
func (c *Client) Listing(ctx context.Context) ([]Coin, error) {
	resp, cancel, err := c.get(ctx, "/coins/list")
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("list", resp)
	}
	var coins []Coin
	if err := json.NewDecoder(resp.Body).Decode(&coins); err != nil {
		return nil, fmt.Errorf("coins: decode listing: %w", err)
	}
	return coins, nil
}

type quotePayload struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Symbol     string `json:"symbol"`
	MarketData *struct {
		CurrentPrice struct {
			USD *float64 `json:"usd"`
		} `json:"current_price"`
		PriceChange24h *float64 `json:"price_change_percentage_24h"`
		MarketCap      struct {
			USD *float64 `json:"usd"`
		} `json:"market_cap"`
	} `json:"market_data"`
}

// Quote fetches live market data for a coin id.
// 429 maps to ErrRateLimited, a malformed 200 to ErrFormat and everything else to ErrNotFound.
func (c *Client) Quote(ctx context.Context, id string) (Quote, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Quote{}, ErrNotFound
	}
	start := time.Now()
	resp, cancel, err := c.get(ctx, "/coins/"+url.PathEscape(id))
	if err != nil {
		logger.Coins.LogAttrs(ctx, slog.LevelWarn, "quote request failed",
			slog.String("event", "coins.quote"),
			slog.String("status", "fail"),
			slog.String("coin_id", id),
			slog.String("err", err.Error()),
		)
		return Quote{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	defer cancel()
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		logger.Coins.LogAttrs(ctx, slog.LevelWarn, "quote rate limited",
			slog.String("event", "coins.quote"),
			slog.String("status", "rate_limited"),
			slog.String("coin_id", id),
			slog.Int("http_code", resp.StatusCode),
		)
		return Quote{}, ErrRateLimited
	default:
		err := statusError("quote", resp)
		logger.Coins.LogAttrs(ctx, slog.LevelInfo, "quote unavailable",
			slog.String("event", "coins.quote"),
			slog.String("status", "fail"),
			slog.String("coin_id", id),
			slog.Int("http_code", resp.StatusCode),
		)
		return Quote{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var p quotePayload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return Quote{}, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	q, err := p.quote()
	if err != nil {
		logger.Coins.LogAttrs(ctx, slog.LevelWarn, "quote malformed",
			slog.String("event", "coins.quote"),
			slog.String("status", "fail"),
			slog.String("coin_id", id),
			slog.String("err", err.Error()),
		)
		return Quote{}, err
	}
	if q.ID == "" {
		q.ID = id
	}
	logger.Coins.LogAttrs(ctx, slog.LevelDebug, "quote fetched",
		slog.String("event", "coins.quote"),
		slog.String("status", "ok"),
		slog.String("coin_id", id),
		slog.Int64("duration_ms", logger.Took(start).Milliseconds()),
	)
	return q, nil
}

func (p quotePayload) quote() (Quote, error) {
	var missing []string
	if strings.TrimSpace(p.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(p.Symbol) == "" {
		missing = append(missing, "symbol")
	}
	if p.MarketData == nil {
		missing = append(missing, "market_data")
	} else {
		if p.MarketData.CurrentPrice.USD == nil {
			missing = append(missing, "current_price.usd")
		}
		if p.MarketData.PriceChange24h == nil {
			missing = append(missing, "price_change_percentage_24h")
		}
		if p.MarketData.MarketCap.USD == nil {
			missing = append(missing, "market_cap.usd")
		}
	}
	if len(missing) > 0 {
		return Quote{}, fmt.Errorf("%w: missing %s", ErrFormat, strings.Join(missing, ", "))
	}
	return Quote{
		ID:               p.ID,
		Name:             p.Name,
		Symbol:           strings.ToUpper(p.Symbol),
		PriceUSD:         *p.MarketData.CurrentPrice.USD,
		Change24hPercent: *p.MarketData.PriceChange24h,
		MarketCapUSD:     *p.MarketData.MarketCap.USD,
	}, nil
}

// get issues a GET bounded by the client timeout. The caller must call cancel
// after the body is consumed.
func (c *Client) get(ctx context.Context, path string) (*http.Response, context.CancelFunc, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	req, err := http.NewRequestWithContext(cctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(c.apiKeyHeader, c.apiKey)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return resp, cancel, nil
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("coins: %s: http %d: %s", op, resp.StatusCode, strings.TrimSpace(string(body)))
}
