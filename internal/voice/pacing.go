package voice

import (
	"context"
	"sync"
	"time"

	"github.com/dgnsrekt/tunebox/internal/mtypes"
	"golang.org/x/time/rate"
)

const (
	// ActionJoinVoice paces transport connects.
	ActionJoinVoice = "join_voice"
	// ActionExtractInfo paces metadata extraction.
	ActionExtractInfo = "extract_info"
)

// Pacer enforces a minimum interval between calls of the same action.
type Pacer struct {
	interval time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewPacer creates a pacer. A non-positive interval disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{interval: interval, limiters: make(map[string]*rate.Limiter)}
}

// Wait blocks until action may run or ctx is done.
func (p *Pacer) Wait(ctx context.Context, action string) error {
	if err := p.limiter(action).Wait(ctx); err != nil {
		return mtypes.NewError(mtypes.ErrorCodeRateLimited, "rate limit wait cancelled", err).
			WithContext("action", action)
	}
	return nil
}

func (p *Pacer) limiter(action string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.limiters[action]
	if !ok {
		limit := rate.Inf
		if p.interval > 0 {
			limit = rate.Every(p.interval)
		}
		l = rate.NewLimiter(limit, 1)
		p.limiters[action] = l
	}
	return l
}
