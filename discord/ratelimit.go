package discord

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// userLimiter keeps one token bucket per user. Idle buckets expire from the
// cache, which is equivalent to a full bucket.
type userLimiter struct {
	mu       sync.Mutex
	limiters *cache.Cache
	every    time.Duration
	burst    int
	now      func() time.Time
}

func newUserLimiter(every time.Duration, burst int) *userLimiter {
	return &userLimiter{
		limiters: cache.New(30*time.Minute, 1*time.Hour),
		every:    every,
		burst:    burst,
		now:      time.Now,
	}
}

// Allow takes a token for userID. When none is available it returns false
// and how long until the next one.
func (l *userLimiter) Allow(userID string) (bool, time.Duration) {
	if l == nil || l.every <= 0 {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var lim *rate.Limiter
	if v, ok := l.limiters.Get(userID); ok {
		lim = v.(*rate.Limiter)
	} else {
		lim = rate.NewLimiter(rate.Every(l.every), l.burst)
	}
	l.limiters.Set(userID, lim, cache.DefaultExpiration)

	now := l.now()
	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return false, l.every
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}
