package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultAccount is the bucket for triggers that name no account and have
// no configured fallback
const DefaultAccount = "default"

// Decision is the outcome of taking one trigger from an account's bucket
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter hands out check-in triggers per account. Each account gets its
// own token bucket refilled at perHour/3600 tokens a second.
type Limiter struct {
	accounts map[string]*rate.Limiter
	mu       sync.Mutex
	every    rate.Limit
	burst    int
	perHour  int
	fallback string
}

// NewLimiter creates a limiter allowing perHour triggers an hour per
// account with bursts of up to burst
func NewLimiter(perHour int, burst int) *Limiter {
	return &Limiter{
		accounts: make(map[string]*rate.Limiter),
		every:    rate.Limit(float64(perHour) / 3600.0),
		burst:    burst,
		perHour:  perHour,
		fallback: DefaultAccount,
	}
}

// WithFallback sets the account charged for triggers that name none. The run
// manager falls back to the configured account in that case, so the two
// should match.
func (l *Limiter) WithFallback(account string) *Limiter {
	if account != "" {
		l.fallback = account
	}
	return l
}

// Key returns the bucket a trigger for username is charged to
func (l *Limiter) Key(username string) string {
	if username != "" {
		return username
	}
	return l.fallback
}

func (l *Limiter) bucket(account string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.accounts[account]
	if !ok {
		b = rate.NewLimiter(l.every, l.burst)
		l.accounts[account] = b
	}
	return b
}

// Take charges one trigger to account. A rejected trigger consumes nothing.
func (l *Limiter) Take(account string) Decision {
	b := l.bucket(account)

	r := b.Reserve()
	if !r.OK() {
		return Decision{}
	}
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		return Decision{RetryAfter: delay}
	}

	remaining := int(b.Tokens())
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Remaining: remaining}
}

// PerHour returns the configured hourly limit
func (l *Limiter) PerHour() int {
	return l.perHour
}
