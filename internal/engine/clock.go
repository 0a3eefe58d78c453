package engine

import "time"

// Clock абстрагирует источник времени, чтобы тики и запуски калибровки
// можно было детерминированно тестировать продвижением виртуальных часов.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker - минимальный интерфейс поверх time.Ticker
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// realClock - системные часы
type realClock struct{}

// RealClock возвращает Clock на основе системного времени
func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (rt *realTicker) C() <-chan time.Time { return rt.t.C }
func (rt *realTicker) Stop()               { rt.t.Stop() }
