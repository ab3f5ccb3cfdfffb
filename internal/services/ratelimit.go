package services

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/lasttime-backend/internal/platform/logger"
)

const (
	BucketCategoriesCreate = "categories:create"
	BucketCategoriesList   = "categories:list"
	BucketCategoriesDelete = "categories:delete"
	BucketActivityCreate   = "activity:create"
	BucketActivityList     = "activity:list"
	BucketActivityGet      = "activity:get"
	BucketActivityDelete   = "activity:delete"
	BucketDefault          = "default"

	DefaultRateLimitWindow = time.Minute
)

// DefaultBudgets are per-window request budgets keyed by bucket.
func DefaultBudgets() map[string]int {
	return map[string]int{
		BucketCategoriesCreate: 20,
		BucketCategoriesList:   60,
		BucketCategoriesDelete: 20,
		BucketActivityCreate:   30,
		BucketActivityList:     60,
		BucketActivityGet:      60,
		BucketActivityDelete:   20,
		BucketDefault:          100,
	}
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the time left until the current window closes.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if !d.ResetAt.After(now) {
		return 0
	}
	return d.ResetAt.Sub(now)
}

type RateLimiter interface {
	Admit(ctx context.Context, clientKey, bucket string, limit int) (Decision, error)
}

// ClientKey identifies a caller: the client address, qualified by the user id
// once the caller is authenticated.
func ClientKey(ip, userID string) string {
	if userID == "" {
		return ip
	}
	return ip + ":" + userID
}

func windowBounds(now time.Time, window time.Duration) (index int64, resetAt time.Time) {
	index = now.UnixNano() / int64(window)
	resetAt = time.Unix(0, (index+1)*int64(window))
	return index, resetAt
}

type windowCounter struct {
	index int64
	count int
	reset time.Time
}

// MemoryRateLimiter keeps fixed-window counters in process memory.
type MemoryRateLimiter struct {
	log    *logger.Logger
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	counters map[string]*windowCounter

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func NewMemoryRateLimiter(baseLog *logger.Logger, window time.Duration) *MemoryRateLimiter {
	if window <= 0 {
		window = DefaultRateLimitWindow
	}
	return &MemoryRateLimiter{
		log:      baseLog.With("service", "MemoryRateLimiter"),
		window:   window,
		now:      time.Now,
		counters: map[string]*windowCounter{},
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (m *MemoryRateLimiter) Admit(_ context.Context, clientKey, bucket string, limit int) (Decision, error) {
	now := m.now()
	index, resetAt := windowBounds(now, m.window)
	key := bucket + "|" + clientKey

	m.mu.Lock()
	c := m.counters[key]
	if c == nil || c.index != index {
		c = &windowCounter{index: index, reset: resetAt}
		m.counters[key] = c
	}
	allowed := c.count < limit
	if allowed {
		c.count++
	}
	remaining := limit - c.count
	m.mu.Unlock()

	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: allowed, Limit: limit, Remaining: remaining, ResetAt: resetAt}, nil
}

// Start launches the janitor that drops counters of closed windows.
func (m *MemoryRateLimiter) Start() {
	m.startOnce.Do(func() {
		go m.janitor()
	})
}

func (m *MemoryRateLimiter) janitor() {
	defer close(m.done)
	ticker := time.NewTicker(m.window)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if n := m.sweep(); n > 0 {
				m.log.Debug("Rate limit counters swept", "removed", n)
			}
		}
	}
}

func (m *MemoryRateLimiter) sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for k, c := range m.counters {
		if !c.reset.After(now) {
			delete(m.counters, k)
			removed++
		}
	}
	return removed
}

// Close stops the janitor. It is safe to call more than once, or without Start.
func (m *MemoryRateLimiter) Close() error {
	m.stopOnce.Do(func() {
		close(m.stop)
		started := true
		m.startOnce.Do(func() { started = false })
		if started {
			<-m.done
		}
	})
	return nil
}

// Reset clears all counters.
func (m *MemoryRateLimiter) Reset() {
	m.mu.Lock()
	m.counters = map[string]*windowCounter{}
	m.mu.Unlock()
}

func (m *MemoryRateLimiter) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.counters)
}
