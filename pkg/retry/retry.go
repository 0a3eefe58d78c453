// Package retry реализует повтор сетевых вызовов к бирже с
// экспоненциальным backoff и jitter.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Config - параметры повтора.
//
// Задержка перед попыткой attempt:
// delay = min(InitialDelay * Multiplier^attempt, MaxDelay) +- jitter
type Config struct {
	// MaxRetries - число попыток, включая первую
	MaxRetries int

	// InitialDelay - задержка перед второй попыткой
	InitialDelay time.Duration

	// MaxDelay ограничивает рост задержки сверху
	MaxDelay time.Duration

	// Multiplier - множитель экспоненциального роста
	Multiplier float64

	// JitterFactor - доля случайной вариации задержки (0..1),
	// разводит повторы конкурирующих клиентов по времени
	JitterFactor float64
}

// NetworkConfig - профиль для REST-вызовов биржи:
// 4 попытки с задержками 1s, 2s, 4s
func NetworkConfig() Config {
	return Config{
		MaxRetries:   4,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.2,
	}
}

// validate подставляет дефолты вместо нулевых значений
func (c *Config) validate() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 1
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	if c.JitterFactor < 0 {
		c.JitterFactor = 0
	}
	if c.JitterFactor > 1 {
		c.JitterFactor = 1
	}
}

// delay вычисляет задержку перед попыткой attempt (нумерация с нуля)
func (c *Config) delay(attempt int) time.Duration {
	d := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt))
	if d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	if c.JitterFactor > 0 {
		d += d * c.JitterFactor * (rand.Float64()*2 - 1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Do выполняет операцию с повторами. Возвращает nil после первой
// успешной попытки, иначе последнюю ошибку. Ошибка, обернутая в
// Permanent, прекращает повторы немедленно. Отмена контекста
// прерывает ожидание между попытками.
func Do(ctx context.Context, operation func() error, cfg Config) error {
	cfg.validate()

	var lastErr error
	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return lastErr
			}
			return ctx.Err()
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		var perm *PermanentError
		if errors.As(err, &perm) {
			return err
		}
		if attempt >= cfg.MaxRetries-1 {
			break
		}

		select {
		case <-time.After(cfg.delay(attempt)):
		case <-ctx.Done():
			return lastErr
		}
	}
	return lastErr
}

// PermanentError помечает ошибку как неповторяемую: повтор с тем же
// запросом даст тот же отказ (невалидные параметры, отказ авторизации)
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent оборачивает ошибку, прекращающую повторы
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}
