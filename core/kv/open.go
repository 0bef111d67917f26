package kv

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// SchemeMemory selects the in-process store.
const SchemeMemory = "memory://"

// Open builds a Store from a URL: memory:// or redis:// / rediss://.
func Open(ctx context.Context, url string, opTimeout time.Duration) (Store, error) {
	url = strings.TrimSpace(url)
	switch {
	case url == "":
		return nil, fmt.Errorf("kv: empty store url")
	case strings.HasPrefix(url, SchemeMemory):
		return NewMemory(), nil
	case strings.HasPrefix(url, "redis://"), strings.HasPrefix(url, "rediss://"):
		return Dial(ctx, url, opTimeout)
	default:
		return nil, fmt.Errorf("kv: unsupported store url %q; allowed: redis://, rediss://, memory://", url)
	}
}
