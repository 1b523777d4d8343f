package domain

// PlaceOrderRequest se envía al executor del CLOB.
type PlaceOrderRequest struct {
	TokenID     string
	ConditionID string
	Price       float64
	Size        float64 // shares
	Side        Side
	NegRisk     bool
}

// PlacedOrder es la respuesta del CLOB tras colocar una orden.
type PlacedOrder struct {
	VenueOrderID string
	Status       string
	MadeAmount   float64 // porción resting en el book
	TakenAmount  float64 // porción fillada inmediatamente
}

// VenueOrder es una orden abierta reportada por el CLOB.
type VenueOrder struct {
	VenueOrderID string
	ConditionID  string
	TokenID      string
	Side         Side
	Price        float64
	Size         float64
	FilledSize   float64
	Outcome      string
}
