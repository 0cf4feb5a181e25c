package tokens

import (
	"fmt"
	"sync"
	"time"
)

// Quota is an immutable snapshot of a credential's remaining request budget,
// parsed from API response headers. State flows through return values, never
// through shared counters.
type Quota struct {
	Remaining int
	Reset     time.Time
	Known     bool
}

// Exhausted reports whether the quota is known to be spent before its reset.
func (q Quota) Exhausted(now time.Time) bool {
	return q.Known && q.Remaining <= 0 && now.Before(q.Reset)
}

// Credential is one API token plus the last quota snapshot observed for it.
type Credential struct {
	token string
	label string // "default" or the repo it is dedicated to

	mu    sync.Mutex
	quota Quota
	inUse bool
}

func (c *Credential) Token() string { return c.token }
func (c *Credential) Label() string { return c.label }

// Observe records a quota snapshot returned by the source client.
func (c *Credential) Observe(q Quota) {
	if !q.Known {
		return
	}
	c.mu.Lock()
	c.quota = q
	c.mu.Unlock()
}

// Snapshot returns the last observed quota.
func (c *Credential) Snapshot() Quota {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quota
}

// ExhaustedError is returned when a credential cannot be handed out before
// its quota reset time.
type ExhaustedError struct {
	Label string
	Reset time.Time
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("credential %s exhausted until %s", e.Label, e.Reset.UTC().Format(time.RFC3339))
}

// BusyError is returned when a dedicated credential is already held by a
// running job.
type BusyError struct{ Label string }

func (e *BusyError) Error() string { return fmt.Sprintf("credential %s already in use", e.Label) }

// Pool assigns credentials to extraction jobs: a dedicated token per repo when
// configured, otherwise the shared default. A dedicated credential is never
// handed out twice at once; the default may back any number of repos, so its
// quota snapshot is the only shared state and is updated under its own lock.
type Pool struct {
	def    *Credential
	byRepo map[string]*Credential
	now    func() time.Time
}

// NewPool builds a pool from the default token and a repo→token mapping.
func NewPool(defaultToken string, dedicated map[string]string) *Pool {
	p := &Pool{
		def:    &Credential{token: defaultToken, label: "default"},
		byRepo: make(map[string]*Credential, len(dedicated)),
		now:    time.Now,
	}
	for repo, tok := range dedicated {
		if tok == "" {
			continue
		}
		p.byRepo[repo] = &Credential{token: tok, label: repo}
	}
	return p
}

// Acquire returns the credential for a repo. It fails with *ExhaustedError
// when the credential's known quota is spent before reset, and with
// *BusyError when a dedicated credential is already held.
func (p *Pool) Acquire(repo string) (*Credential, error) {
	c, dedicated := p.byRepo[repo]
	if !dedicated {
		c = p.def
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.quota.Exhausted(p.now()) {
		return nil, &ExhaustedError{Label: c.label, Reset: c.quota.Reset}
	}
	if dedicated {
		if c.inUse {
			return nil, &BusyError{Label: c.label}
		}
		c.inUse = true
	}
	return c, nil
}

// Release returns a credential to the pool.
func (p *Pool) Release(c *Credential) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.inUse = false
	c.mu.Unlock()
}
