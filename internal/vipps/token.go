package vipps

import (
	"context"
	"sync"
	"time"
)

// tokenCache holds the merchant access token together with its expiry
// and a single-flight guard.  It is constructed once per Client and
// passed around explicitly instead of living in a package-level
// variable, so tests can exercise it and nothing hides shared state.
//
// The single-flight rule: when the cached token is missing or expired,
// exactly one caller performs the fetch while everyone else waits on
// the in-flight channel and then re-reads the cache.
type tokenCache struct {
	mu      sync.Mutex
	token   string
	expiry  time.Time
	pending chan struct{} // non-nil while a fetch is in flight
}

// expirySlack renews tokens a minute early so a token that is valid at
// check time cannot expire mid-request.
const expirySlack = time.Minute

// get returns the cached token or fetches a fresh one via fetch().  The
// fetch runs outside the lock; concurrent callers during a miss block on
// the same in-flight fetch rather than issuing their own.
func (c *tokenCache) get(ctx context.Context, fetch func(context.Context) (string, time.Time, error)) (string, error) {
	for {
		c.mu.Lock()
		if c.token != "" && time.Now().Before(c.expiry.Add(-expirySlack)) {
			tok := c.token
			c.mu.Unlock()
			return tok, nil
		}
		if c.pending != nil {
			wait := c.pending
			c.mu.Unlock()
			select {
			case <-wait:
				continue // re-check the cache; the fetch may have failed
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		done := make(chan struct{})
		c.pending = done
		c.mu.Unlock()

		tok, exp, err := fetch(ctx)

		c.mu.Lock()
		if err == nil {
			c.token = tok
			c.expiry = exp
		}
		c.pending = nil
		close(done)
		c.mu.Unlock()
		return tok, err
	}
}

// invalidate drops the cached token so the next call fetches a fresh
// one.  Called after the gateway answers 401 to a payment call.
func (c *tokenCache) invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiry = time.Time{}
	c.mu.Unlock()
}
