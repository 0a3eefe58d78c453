package engine

import "errors"

// ErrInvalidState возвращается при недопустимом переходе состояния
// (например, start() когда движок уже Running). Состояние при этом
// не меняется, ошибка сообщается вызывающему.
var ErrInvalidState = errors.New("invalid engine state transition")

// Status определяет состояние движка
type Status int

// Состояния движка (state machine)
const (
	StatusStopped Status = iota // остановлен оператором
	StatusRunning               // цикл котирования активен
	StatusHalted                // остановлен риск-движком (breach)
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusRunning:
		return "running"
	case StatusHalted:
		return "halted"
	}
	return "unknown"
}

// State - состояние движка с причиной остановки для Halted
type State struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"` // заполнен только для Halted
}

// validTransitions определяет допустимые переходы между состояниями.
// Halted входится ТОЛЬКО риск-движком; выход из Halted - только
// явным действием оператора (start с ревалидацией лимитов, либо stop).
var validTransitions = map[Status][]Status{
	StatusStopped: {StatusRunning},
	StatusRunning: {StatusStopped, StatusHalted},
	StatusHalted:  {StatusStopped, StatusRunning},
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
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

// StateInfo возвращает описание состояния для UI
func StateInfo(s State) string {
	switch s.Status {
	case StatusStopped:
		return "Engine stopped"
	case StatusRunning:
		return "Engine running (quoting)"
	case StatusHalted:
		return "Engine halted by risk engine: " + s.Reason
	}
	return "Unknown state"
}
