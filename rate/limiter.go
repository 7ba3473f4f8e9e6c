package rate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per visitor key. Buckets untouched for
// longer than Expiry are swept once a minute.
type Limiter struct {
	Expiry   time.Duration
	Burst    int
	LimitRPS float64
	visitors map[string]*visitorLimiter
	mu       sync.Mutex
	done     chan struct{}
	once     sync.Once
}

type visitorLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func NewLimiter(burst int, expiry time.Duration, limitRPS float64) *Limiter {
	lm := &Limiter{
		Expiry:   expiry,
		LimitRPS: limitRPS,
		Burst:    burst,
		visitors: make(map[string]*visitorLimiter),
		done:     make(chan struct{}),
	}
	go lm.sweep(time.Minute)
	return lm
}

func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[key]
	if !ok {
		v = &visitorLimiter{
			limiter: rate.NewLimiter(rate.Limit(l.LimitRPS), l.Burst),
		}
		l.visitors[key] = v
	}
	v.lastAccess = time.Now()
	return v.limiter.Allow()
}

// Len reports how many visitors currently hold a bucket.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.done) })
}

func (l *Limiter) sweep(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-t.C:
			l.evict(time.Now())
		}
	}
}

func (l *Limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, v := range l.visitors {
		if now.Sub(v.lastAccess) > l.Expiry {
			delete(l.visitors, key)
		}
	}
}

func Every(interval time.Duration) float64 {
	return float64(rate.Every(interval))
}
