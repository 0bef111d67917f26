package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/assistbot/core/telegram/netutil"
)

const (
	dialTimeout     = 5 * time.Second
	tlsTimeout      = 5 * time.Second
	idleConnTimeout = 30 * time.Second
	keepAlive       = 30 * time.Second
	// headerSlack and requestSlack extend the long-poll wait.
	headerSlack  = 5 * time.Second
	requestSlack = 20 * time.Second
)

// apiBackoff is the retry schedule for Bot API round trips.
var apiBackoff = netutil.Backoff{Retries: 3, Step: 2 * time.Second}

// BuildHTTPClient returns the client used for Bot API calls. longPoll is the
// getUpdates wait, so header and request deadlines sit past it.
func BuildHTTPClient(longPoll time.Duration) *http.Client {
	longPoll = max(longPoll, 0)
	dialer := &net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsTimeout,
		ResponseHeaderTimeout: longPoll + headerSlack,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   longPoll + requestSlack,
		Transport: &netutil.Transport{Base: base, Backoff: apiBackoff},
	}
}
