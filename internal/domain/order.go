package domain

import "time"

// OrderStatus representa el ciclo de vida de una orden en el CLOB.
// El venue es la fuente de verdad; los registros locales son un cache
// que se reconcilia en cada ciclo.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusLive      OrderStatus = "LIVE"
	StatusPartial   OrderStatus = "PARTIALLY_FILLED"
	StatusFilled    OrderStatus = "FILLED"
	StatusCancelled OrderStatus = "CANCELLED"
	StatusRejected  OrderStatus = "REJECTED"
	StatusError     OrderStatus = "ERROR"
)

// Terminal devuelve true si la orden no puede cambiar más de estado.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected, StatusError:
		return true
	}
	return false
}

// validTransitions codifica la máquina de estados:
// PENDING → LIVE|REJECTED|ERROR, LIVE → PARTIALLY_FILLED|FILLED|CANCELLED,
// PARTIALLY_FILLED → FILLED|CANCELLED.
var validTransitions = map[OrderStatus][]OrderStatus{
	StatusPending: {StatusLive, StatusRejected, StatusError},
	StatusLive:    {StatusPartial, StatusFilled, StatusCancelled},
	StatusPartial: {StatusFilled, StatusCancelled},
}

// CanTransition devuelve true si el cambio de estado es legal.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, t := range validTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// Order es una orden gestionada por el lifecycle manager.
type Order struct {
	ID           string // UUID local
	VenueOrderID string // hash de orden del CLOB (0x...)
	ConditionID  string
	TokenID      string
	Side         Side
	Price        float64
	Size         float64 // tamaño total en shares
	FilledSize   float64
	Status       OrderStatus
	PlacedAt     time.Time
	UpdatedAt    time.Time
	Question     string
	FailReason   string // causa del REJECTED/ERROR
}

// QuoteKey identifica una orden por (token, side, price) para deduplicar
// exposición maker redundante entre ciclos.
type QuoteKey struct {
	TokenID string
	Side    Side
	Price   float64
}

// Key devuelve la QuoteKey de la orden.
func (o Order) Key() QuoteKey {
	return QuoteKey{TokenID: o.TokenID, Side: o.Side, Price: o.Price}
}

// Remaining devuelve el tamaño aún no fillado.
func (o Order) Remaining() float64 {
	r := o.Size - o.FilledSize
	if r < 0 {
		return 0
	}
	return r
}
