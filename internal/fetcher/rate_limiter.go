package fetcher

import (
	"context"
	"sync"
	"time"
)

// RateLimiter ограничивает параллелизм и частоту запросов к одному хосту.
// Запросы к хосту разносятся не чаще чем раз в minute/rpm.
type RateLimiter struct {
	maxConcurrent int
	interval      time.Duration
	hosts         map[string]*hostLimiter
	mu            sync.Mutex
}

type hostLimiter struct {
	sem  chan struct{}
	next time.Time
	mu   sync.Mutex
}

func NewRateLimiter(maxConcurrent, rpm int) *RateLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	var interval time.Duration
	if rpm > 0 {
		interval = time.Minute / time.Duration(rpm)
	}
	return &RateLimiter{
		maxConcurrent: maxConcurrent,
		interval:      interval,
		hosts:         make(map[string]*hostLimiter),
	}
}

func (rl *RateLimiter) Wait(ctx context.Context, host string) error {
	rl.mu.Lock()
	limiter, exists := rl.hosts[host]
	if !exists {
		limiter = &hostLimiter{
			sem: make(chan struct{}, rl.maxConcurrent),
		}
		rl.hosts[host] = limiter
	}
	rl.mu.Unlock()

	select {
	case limiter.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-limiter.sem }()

	// Резервируем слот и ждём его вне мьютекса
	limiter.mu.Lock()
	now := time.Now()
	slot := limiter.next
	if slot.Before(now) {
		slot = now
	}
	limiter.next = slot.Add(rl.interval)
	limiter.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
