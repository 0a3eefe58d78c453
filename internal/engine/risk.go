package engine

import (
	"fmt"
	"sync"
	"time"

	"marketmaker/internal/models"
)

// EventKind - тип ордерного события для rate-счетчиков
type EventKind int

// Виды событий
const (
	EventSubmit EventKind = iota
	EventCancel
)

func (k EventKind) String() string {
	if k == EventCancel {
		return "cancel"
	}
	return "submit"
}

// RateUnit определяет единицу измерения cancel-rate лимита.
// Исходная система использовала долю (cancels/orders) с дефолтом 0.85,
// что похоже на перепутанную единицу; поэтому единица - конфигурация,
// а не зашитое значение.
type RateUnit int

// Единицы rate-лимитов
const (
	RateUnitCountPerMin RateUnit = iota // событий в минуту
	RateUnitRatio                       // cancels / orders в окне
)

// Причины breach'ей
const (
	BreachOrderNotional = "order_notional"
	BreachInventory     = "inventory_cap"
	BreachLeverage      = "leverage"
	BreachCancelRate    = "cancel_rate"
	BreachOrderRate     = "order_rate"
)

// Breach - обнаруженное нарушение лимита.
// Breach никогда не теряется молча: он и записывается (для алертов),
// и применяется (clip/reject/halt) в том же проходе - без задержки
// между обнаружением и применением.
type Breach struct {
	Kind    string    `json:"kind"`
	Reason  string    `json:"reason"`
	Clipped bool      `json:"clipped"` // true: ордер обрезан, false: отклонен
	At      time.Time `json:"at"`
}

// OrderIntent - предлагаемый к размещению ордер до проверки рисков
type OrderIntent struct {
	Side  models.Side `json:"side"`
	Price float64     `json:"price"`
	Size  float64     `json:"size"`
}

// Notional возвращает нотионал ордера в котируемой валюте
func (o OrderIntent) Notional() float64 {
	return o.Price * o.Size
}

// rateWindow - скользящее минутное окно временных меток событий.
// Доступ только под мьютексом RiskEngine.
type rateWindow struct {
	events []time.Time
	window time.Duration
}

func newRateWindow(window time.Duration) *rateWindow {
	return &rateWindow{window: window}
}

func (w *rateWindow) add(now time.Time) {
	w.events = append(w.events, now)
	w.prune(now)
}

func (w *rateWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.events) && w.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		w.events = append(w.events[:0], w.events[i:]...)
	}
}

func (w *rateWindow) count(now time.Time) int {
	w.prune(now)
	return len(w.events)
}

// RiskEngine валидирует каждую котировку/ордер против настроенных лимитов,
// ведет скользящие rate-счетчики и умеет останавливать торговлю.
//
// Владение: RiskEngine эксклюзивно владеет RiskLimits и rate-счетчиками
// и является единственным инициатором перехода в Halted по breach'у.
type RiskEngine struct {
	mu           sync.RWMutex
	limits       models.RiskLimits
	cancelEvents *rateWindow
	orderEvents  *rateWindow
	rateUnit     RateUnit
	inventoryUSD float64
	lastEvent    string
	clock        Clock

	// onBreach вызывается СИНХРОННО при rate-breach'е.
	// Это единственный путь кроме действия оператора, останавливающий торговлю.
	onBreach func(reason string)
}

// NewRiskEngine создает риск-движок с заданными лимитами
func NewRiskEngine(limits models.RiskLimits, unit RateUnit, clock Clock) *RiskEngine {
	if clock == nil {
		clock = RealClock()
	}
	return &RiskEngine{
		limits:       limits,
		cancelEvents: newRateWindow(time.Minute),
		orderEvents:  newRateWindow(time.Minute),
		rateUnit:     unit,
		clock:        clock,
	}
}

// SetOnBreach устанавливает обработчик остановки торговли
func (r *RiskEngine) SetOnBreach(fn func(reason string)) {
	r.mu.Lock()
	r.onBreach = fn
	r.mu.Unlock()
}

// SetLimits атомарно заменяет лимиты без перезапуска цикла котирования.
// Новые лимиты видны на границе следующего тика, никогда посреди тика.
func (r *RiskEngine) SetLimits(limits models.RiskLimits) error {
	if err := limits.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.limits = limits
	r.mu.Unlock()
	return nil
}

// Reset очищает скользящие окна счетчиков. Вызывается при операторском
// запуске после halt'а, иначе старый всплеск немедленно повторит breach.
func (r *RiskEngine) Reset() {
	r.mu.Lock()
	r.cancelEvents.events = r.cancelEvents.events[:0]
	r.orderEvents.events = r.orderEvents.events[:0]
	r.lastEvent = ""
	r.mu.Unlock()
}

// Limits возвращает копию текущих лимитов
func (r *RiskEngine) Limits() models.RiskLimits {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limits
}

// NotifyInventory принимает от Order Manager'а актуальный инвентарь в USD
func (r *RiskEngine) NotifyInventory(inventoryUSD float64) {
	r.mu.Lock()
	r.inventoryUSD = inventoryUSD
	r.mu.Unlock()
}

// LastEvent возвращает описание последнего риск-события для статуса
func (r *RiskEngine) LastEvent() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastEvent
}

// Evaluate проверяет предлагаемые ордера против лимитов.
//
// Правила в порядке применения к каждому ордеру:
//  1. нотионал > max_order_usd              -> clip до лимита
//  2. |инвентарь после ордера| > max_inventory_usd -> clip до свободного
//     запаса, reject если запаса нет
//  3. implied leverage > max_leverage       -> clip до equity*max_leverage
//
// Возвращает одобренные (возможно обрезанные) ордера и список breach'ей.
// Нулевой лимит означает "без ограничения" для нотионала/плеча, но НЕ для
// инвентаря: max_inventory_usd = 0 запрещает наращивание позиции.
func (r *RiskEngine) Evaluate(proposed []OrderIntent, inventoryUSD, equityUSD float64) ([]OrderIntent, []Breach) {
	r.mu.RLock()
	limits := r.limits
	r.mu.RUnlock()

	now := r.clock.Now()
	approved := make([]OrderIntent, 0, len(proposed))
	var breaches []Breach

	projected := inventoryUSD
	for _, order := range proposed {
		if order.Price <= 0 || order.Size <= 0 {
			continue
		}

		// 1. Лимит нотионала одного ордера
		if limits.MaxOrderUSD > 0 && order.Notional() > limits.MaxOrderUSD {
			breaches = append(breaches, Breach{
				Kind:    BreachOrderNotional,
				Reason:  fmt.Sprintf("%s order notional %.2f exceeds max_order_usd %.2f, clipped", order.Side, order.Notional(), limits.MaxOrderUSD),
				Clipped: true,
				At:      now,
			})
			order.Size = limits.MaxOrderUSD / order.Price
		}

		// 2. Лимит инвентаря: ордер не может вывести |inventory| за предел.
		// headroom - сколько нотионала в направлении ордера еще допустимо;
		// ордер, сокращающий позицию, всегда укладывается в headroom.
		direction := 1.0
		if order.Side == models.SideSell {
			direction = -1.0
		}
		notional := order.Notional()
		headroom := limits.MaxInventoryUSD - direction*projected
		if notional > headroom {
			if headroom <= 0 {
				breaches = append(breaches, Breach{
					Kind:   BreachInventory,
					Reason: fmt.Sprintf("%s order rejected: inventory %.2f at max_inventory_usd %.2f", order.Side, projected, limits.MaxInventoryUSD),
					At:     now,
				})
				continue
			}
			breaches = append(breaches, Breach{
				Kind:    BreachInventory,
				Reason:  fmt.Sprintf("%s order clipped to inventory headroom %.2f", order.Side, headroom),
				Clipped: true,
				At:      now,
			})
			order.Size = headroom / order.Price
			notional = headroom
		}

		// 3. Лимит плеча: notional / equity
		if limits.MaxLeverage > 0 && equityUSD > 0 {
			maxNotional := equityUSD * limits.MaxLeverage
			if notional > maxNotional {
				breaches = append(breaches, Breach{
					Kind:    BreachLeverage,
					Reason:  fmt.Sprintf("%s order implies leverage %.2fx over max %.2fx, clipped", order.Side, notional/equityUSD, limits.MaxLeverage),
					Clipped: true,
					At:      now,
				})
				order.Size = maxNotional / order.Price
				notional = maxNotional
			}
		}

		if order.Size <= 0 {
			continue
		}
		projected += direction * notional
		approved = append(approved, order)
	}

	if len(breaches) > 0 {
		r.recordBreaches(breaches)
	}
	return approved, breaches
}

// RecordOrderEvent инкрементирует скользящие окна и проверяет rate-лимиты.
// Превышение max_cancel_rate_per_min или max_order_rate_per_min поднимает
// breach: он возвращается вызывающему И синхронно применяется через
// onBreach (перевод движка в Halted) в том же проходе.
func (r *RiskEngine) RecordOrderEvent(kind EventKind) *Breach {
	r.mu.Lock()
	now := r.clock.Now()
	switch kind {
	case EventSubmit:
		r.orderEvents.add(now)
	case EventCancel:
		r.cancelEvents.add(now)
	}
	limits := r.limits
	orderRate := r.orderRateLocked(now)
	cancelRate := r.cancelRateLocked(now)

	var breach *Breach
	switch {
	case limits.MaxCancelRatePerMin > 0 && cancelRate > limits.MaxCancelRatePerMin:
		breach = &Breach{
			Kind:   BreachCancelRate,
			Reason: fmt.Sprintf("cancel rate %.2f/min exceeds max %.2f/min", cancelRate, limits.MaxCancelRatePerMin),
			At:     now,
		}
	case limits.MaxOrderRatePerMin > 0 && orderRate > limits.MaxOrderRatePerMin:
		breach = &Breach{
			Kind:   BreachOrderRate,
			Reason: fmt.Sprintf("order rate %.2f/min exceeds max %.2f/min", orderRate, limits.MaxOrderRatePerMin),
			At:     now,
		}
	}
	var onBreach func(string)
	if breach != nil {
		r.lastEvent = breach.Reason
		onBreach = r.onBreach
	}
	r.mu.Unlock()

	if breach != nil {
		BreachesTotal.WithLabelValues(breach.Kind).Inc()
		if onBreach != nil {
			onBreach(breach.Reason)
		}
	}
	return breach
}

// CancelRatePerMin возвращает текущий cancel-rate в настроенной единице
func (r *RiskEngine) CancelRatePerMin() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelRateLocked(r.clock.Now())
}

// OrderRatePerMin возвращает текущий order-rate (событий в минуту)
func (r *RiskEngine) OrderRatePerMin() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orderRateLocked(r.clock.Now())
}

func (r *RiskEngine) orderRateLocked(now time.Time) float64 {
	return float64(r.orderEvents.count(now))
}

func (r *RiskEngine) cancelRateLocked(now time.Time) float64 {
	cancels := float64(r.cancelEvents.count(now))
	if r.rateUnit == RateUnitRatio {
		orders := float64(r.orderEvents.count(now))
		if orders < 1 {
			orders = 1
		}
		return cancels / orders
	}
	return cancels
}

// recordBreaches фиксирует breach'и evaluate-прохода для статуса и метрик
func (r *RiskEngine) recordBreaches(breaches []Breach) {
	r.mu.Lock()
	r.lastEvent = breaches[len(breaches)-1].Reason
	r.mu.Unlock()
	for _, b := range breaches {
		BreachesTotal.WithLabelValues(b.Kind).Inc()
	}
}
