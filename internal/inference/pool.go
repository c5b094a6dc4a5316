package inference

import (
	"sync"
	"time"

	"symptomguide/internal/logging"
)

// Pool rotates among provider credentials under a usage/cooldown policy.
// Each credential is used for up to usageLimit consecutive calls; once the
// limit is hit rotation advances. A credential whose last use is older than
// the cooldown period gets its counter reset. Acquire never blocks and
// never fails on a non-empty pool: if every credential is over its limit
// and inside its cooldown, the least-recently-used one is handed out anyway
// and the caller absorbs any provider-side throttling.
//
// The pool is shared across all sessions, so every method is safe for
// concurrent use.
type Pool struct {
	mu         sync.Mutex
	creds      []*credentialState
	next       int
	usageLimit int
	cooldown   time.Duration

	// now is replaceable in tests.
	now func() time.Time
}

type credentialState struct {
	secret   string
	useCount int
	lastUsed time.Time
}

// NewPool creates a credential pool. Returns ErrNoCredentials when secrets
// is empty.
func NewPool(secrets []string, usageLimit int, cooldown time.Duration) (*Pool, error) {
	if len(secrets) == 0 {
		return nil, ErrNoCredentials
	}
	if usageLimit < 1 {
		usageLimit = 1
	}

	creds := make([]*credentialState, 0, len(secrets))
	for _, s := range secrets {
		creds = append(creds, &credentialState{secret: s})
	}

	logging.Pool("credential pool created: %d credentials, usage_limit=%d cooldown=%v",
		len(creds), usageLimit, cooldown)

	return &Pool{
		creds:      creds,
		usageLimit: usageLimit,
		cooldown:   cooldown,
		now:        time.Now,
	}, nil
}

// Acquire returns the next eligible credential and records its use.
func (p *Pool) Acquire() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()

	for offset := 0; offset < len(p.creds); offset++ {
		idx := (p.next + offset) % len(p.creds)
		c := p.creds[idx]

		if c.useCount >= p.usageLimit && !c.lastUsed.IsZero() && now.Sub(c.lastUsed) >= p.cooldown {
			logging.PoolDebug("credential %d cooled down, resetting use count", idx)
			c.useCount = 0
		}

		if c.useCount < p.usageLimit {
			p.next = idx
			return p.use(idx, now)
		}
	}

	// Every credential is saturated inside its cooldown window. Fall back
	// to the least-recently-used one; the provider may throttle, and the
	// client's retry loop handles that.
	lru := 0
	for i, c := range p.creds {
		if c.lastUsed.Before(p.creds[lru].lastUsed) {
			lru = i
		}
	}
	logging.Pool("all credentials saturated, falling back to LRU credential %d", lru)
	p.creds[lru].useCount = 0
	p.next = lru
	return p.use(lru, now)
}

// use records a use of credential idx and advances rotation when the
// credential reaches its limit. Callers must hold p.mu.
func (p *Pool) use(idx int, now time.Time) string {
	c := p.creds[idx]
	c.useCount++
	c.lastUsed = now

	logging.PoolDebug("acquired credential %d (use %d/%d)", idx, c.useCount, p.usageLimit)

	if c.useCount >= p.usageLimit {
		p.next = (idx + 1) % len(p.creds)
	}
	return c.secret
}

// Size returns the number of pooled credentials.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.creds)
}

// UseCounts returns a snapshot of per-credential use counters, in
// configuration order. Intended for tests and diagnostics.
func (p *Pool) UseCounts() []int {
	p.mu.Lock()
	defer p.mu.Unlock()

	counts := make([]int, len(p.creds))
	for i, c := range p.creds {
		counts[i] = c.useCount
	}
	return counts
}
