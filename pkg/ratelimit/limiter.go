// Package ratelimit реализует token bucket для ограничения частоты
// REST-запросов к бирже.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RateLimiter - token bucket: ведро наполняется со скоростью rate
// токенов в секунду до емкости burst, каждый запрос потребляет один
// токен. Burst покрывает пачку запросов одного тика (обе котировки
// плюс отмены), rate удерживает средний поток в пределах лимита биржи.
type RateLimiter struct {
	mu         sync.Mutex
	rate       float64
	burst      float64
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter создает limiter; rate - запросов в секунду,
// burst - емкость ведра (неположительные значения заменяются дефолтами)
func NewRateLimiter(rate, burst float64) *RateLimiter {
	if rate <= 0 {
		rate = 10
	}
	if burst < rate {
		burst = rate * 2
	}
	return &RateLimiter{
		rate:       rate,
		burst:      burst,
		tokens:     burst,
		lastRefill: time.Now(),
	}
}

// refill пополняет токены за прошедшее время. Вызывается под mu.
func (rl *RateLimiter) refill() {
	now := time.Now()
	rl.tokens += now.Sub(rl.lastRefill).Seconds() * rl.rate
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}
	rl.lastRefill = now
}

// Wait блокирует до получения токена или отмены контекста
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		rl.refill()
		if rl.tokens >= 1 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
		rl.mu.Unlock()

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
