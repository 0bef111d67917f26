// Package coins resolves user input to market data coin ids and fetches live quotes.
//
// The coin listing is cached in a kv.Store and refetched lazily after it
// expires. Quotes are always fetched live.
package coins

import "errors"

var (
	// ErrNotFound means the input matched no coin or no quote could be produced.
	ErrNotFound = errors.New("coins: not found")
	// ErrRateLimited means the market data API throttled the request.
	ErrRateLimited = errors.New("coins: rate limited")
	// ErrFormat means the coin exists but its market data could not be parsed.
	ErrFormat = errors.New("coins: malformed market data")
)

// Coin is one entry of the coin listing.
type Coin struct {
	ID     string `json:"id" msgpack:"i"`
	Symbol string `json:"symbol" msgpack:"s"`
	Name   string `json:"name" msgpack:"n"`
}

// Quote is a live market snapshot of a coin. It is never stored.
type Quote struct {
	ID               string
	Name             string
	Symbol           string
	PriceUSD         float64
	Change24hPercent float64
	MarketCapUSD     float64
}
