package models

import "time"

// Side определяет направление ордера
type Side string

// Направления ордера
const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite возвращает противоположное направление
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderStatus определяет статус ордера в жизненном цикле
type OrderStatus string

// Статусы ордера (state machine)
const (
	OrderStatusNew             OrderStatus = "new"              // создан, подтверждение биржи не получено
	OrderStatusOpen            OrderStatus = "open"             // подтвержден биржей, стоит в стакане
	OrderStatusPartiallyFilled OrderStatus = "partially_filled" // частично исполнен
	OrderStatusFilled          OrderStatus = "filled"           // полностью исполнен (терминальный)
	OrderStatusCancelled       OrderStatus = "cancelled"        // отменен (терминальный)
	OrderStatusRejected        OrderStatus = "rejected"         // отклонен биржей (терминальный)
)

// IsTerminal возвращает true для терминальных статусов.
// Терминальный ордер архивируется и исключается из множества живых ордеров.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	case OrderStatusNew, OrderStatusOpen, OrderStatusPartiallyFilled:
		return false
	}
	return false
}

// ValidOrderTransitions определяет допустимые переходы статусов.
// Переходы происходят ТОЛЬКО по подтверждению биржи, никогда спекулятивно.
var ValidOrderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusNew:             {OrderStatusOpen, OrderStatusRejected, OrderStatusCancelled, OrderStatusFilled, OrderStatusPartiallyFilled},
	OrderStatusOpen:            {OrderStatusPartiallyFilled, OrderStatusFilled, OrderStatusCancelled},
	OrderStatusPartiallyFilled: {OrderStatusPartiallyFilled, OrderStatusFilled, OrderStatusCancelled},
}

// CanTransitionOrder проверяет допустимость перехода статуса ордера
func CanTransitionOrder(from, to OrderStatus) bool {
	allowed, ok := ValidOrderTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Order представляет запись об ордере
type Order struct {
	ID        int         `json:"id" db:"id"`
	OrderID   string      `json:"order_id" db:"order_id"` // идентификатор биржи
	Symbol    string      `json:"symbol" db:"symbol"`
	Side      Side        `json:"side" db:"side"`
	Price     float64     `json:"price" db:"price"`
	Size      float64     `json:"size" db:"size"`
	FilledQty float64     `json:"filled_qty" db:"filled_qty"`
	Status    OrderStatus `json:"status" db:"status"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt *time.Time  `json:"updated_at,omitempty" db:"updated_at"`
}
