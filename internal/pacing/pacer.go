package pacing

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer выдерживает паузу между отправками в канал.
type Pacer interface {
	Wait(ctx context.Context) error
}

// FixedDelay: первая отправка сразу, каждая следующая не раньше чем через
// delay после предыдущей.
type FixedDelay struct {
	mu    sync.Mutex
	delay time.Duration
	last  time.Time
	now   func() time.Time
}

func NewFixedDelay(delay time.Duration) *FixedDelay {
	return &FixedDelay{delay: delay, now: time.Now}
}

func (p *FixedDelay) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.last.IsZero() && p.delay > 0 {
		if wait := p.delay - p.now().Sub(p.last); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
	}

	p.last = p.now()
	return nil
}

// TokenBucket ограничивает отправки числом в минуту с запасом burst.
type TokenBucket struct {
	limiter *rate.Limiter
}

func NewTokenBucket(perMinute, burst int) *TokenBucket {
	if perMinute <= 0 {
		perMinute = 20
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucket{
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
	}
}

func (p *TokenBucket) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Nop не ждёт (dry-run).
type Nop struct{}

func (Nop) Wait(ctx context.Context) error { return ctx.Err() }
