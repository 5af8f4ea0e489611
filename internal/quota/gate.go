package quota

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"ragchat/internal/domain"
)

// Decision is the outcome of a Check, echoed back to callers as limit_info.
type Decision struct {
	Allowed         bool   `json:"allowed"`
	Limit           int    `json:"limit"`
	Current         int    `json:"current"`
	Remaining       int    `json:"remaining"`
	RetryAfterHours int    `json:"reset_in_hours,omitempty"`
	Message         string `json:"message,omitempty"`
}

// counter is one rolling-window quota state.
type counter struct {
	count   int
	resetAt time.Time
}

// Gate enforces per-identity rolling-window query limits. Registered counters
// live on the account record and survive restarts; anonymous counters are
// process-local, keyed by address, and never evicted.
type Gate struct {
	users           domain.UserRepository
	registeredLimit int
	anonymousLimit  int
	window          time.Duration
	now             func() time.Time

	mu   sync.Mutex
	anon map[string]*counter
}

type Option func(*Gate)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

func NewGate(users domain.UserRepository, registeredLimit, anonymousLimit int, window time.Duration, opts ...Option) *Gate {
	g := &Gate{
		users:           users,
		registeredLimit: registeredLimit,
		anonymousLimit:  anonymousLimit,
		window:          window,
		now:             time.Now,
		anon:            make(map[string]*counter),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check decides whether identity may run one more query. It never mutates the
// count; callers debit via Increment after the downstream attempt completes.
func (g *Gate) Check(ctx context.Context, identity domain.Identity) (Decision, error) {
	if identity.Registered() {
		return g.checkRegistered(ctx, identity.UserID)
	}
	return g.checkAnonymous(identity.Address), nil
}

func (g *Gate) checkRegistered(ctx context.Context, userID string) (Decision, error) {
	user, err := g.users.GetByID(ctx, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("load quota counter: %w", err)
	}
	if user == nil {
		return Decision{}, domain.ErrNotFound
	}

	now := g.now()
	count := user.QueryCount
	resetAt := user.LimitResetTime

	// Lazy rolling reset: the window restarts on first use after expiry.
	if resetAt.IsZero() || now.After(resetAt) {
		resetAt = now.Add(g.window)
		if err := g.users.ResetQuota(ctx, userID, resetAt); err != nil {
			return Decision{}, fmt.Errorf("reset quota counter: %w", err)
		}
		count = 0
	}

	return g.decide(count, g.registeredLimit, resetAt,
		"Daily query limit (%d) reached. Resets in %d hours."), nil
}

func (g *Gate) checkAnonymous(address string) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	c, ok := g.anon[address]
	if !ok {
		c = &counter{resetAt: now.Add(g.window)}
		g.anon[address] = c
	}
	if now.After(c.resetAt) {
		c.count = 0
		c.resetAt = now.Add(g.window)
	}

	return g.decide(c.count, g.anonymousLimit, c.resetAt,
		"Query limit (%d) reached. Please login for more queries or wait %d hours.")
}

func (g *Gate) decide(count, limit int, resetAt time.Time, deniedFormat string) Decision {
	if count >= limit {
		hours := int(math.Ceil(resetAt.Sub(g.now()).Hours()))
		if hours < 0 {
			hours = 0
		}
		return Decision{
			Allowed:         false,
			Limit:           limit,
			Current:         count,
			RetryAfterHours: hours,
			Message:         fmt.Sprintf(deniedFormat, limit, hours),
		}
	}
	return Decision{
		Allowed:   true,
		Limit:     limit,
		Current:   count,
		Remaining: limit - count,
	}
}

// Increment debits one query. It must only follow a successful Check; that
// contract is not re-verified here.
func (g *Gate) Increment(ctx context.Context, identity domain.Identity) error {
	if identity.Registered() {
		if err := g.users.IncrementQuota(ctx, identity.UserID); err != nil {
			return fmt.Errorf("increment quota counter: %w", err)
		}
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.anon[identity.Address]
	if !ok {
		c = &counter{resetAt: g.now().Add(g.window)}
		g.anon[identity.Address] = c
	}
	c.count++
	return nil
}
