package infrastructure

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MessageRateLimiter implements token bucket rate limiting per chat
type MessageRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*chatLimiter
	rate     rate.Limit
	burst    int
	idleTTL  time.Duration
}

type chatLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMessageRateLimiter creates a rate limiter with specified rate and burst.
// A non-positive perSecond disables limiting.
func NewMessageRateLimiter(perSecond float64, burst int) *MessageRateLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &MessageRateLimiter{
		limiters: make(map[string]*chatLimiter),
		rate:     limit,
		burst:    burst,
		idleTTL:  10 * time.Minute,
	}
}

// Allow checks if a chat can send a message (consumes 1 token if allowed)
func (rl *MessageRateLimiter) Allow(chatID string) bool {
	return rl.get(chatID).Allow()
}

func (rl *MessageRateLimiter) get(chatID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.limiters[chatID]
	if !ok {
		entry = &chatLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[chatID] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// Run removes idle chats periodically until ctx is done
func (rl *MessageRateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.sweep(now)
		}
	}
}

func (rl *MessageRateLimiter) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for chatID, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > rl.idleTTL {
			delete(rl.limiters, chatID)
		}
	}
}

// GetStats returns rate limiter statistics
func (rl *MessageRateLimiter) GetStats() map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	stats := map[string]interface{}{
		"active_chats": len(rl.limiters),
		"burst":        rl.burst,
	}
	if rl.rate == rate.Inf {
		stats["rate"] = "unlimited"
	} else {
		stats["rate"] = float64(rl.rate)
	}
	return stats
}
