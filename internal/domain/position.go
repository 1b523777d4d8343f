package domain

// Position es una tenencia actual leída del position feed del venue.
// No se muta localmente salvo para marcar que ya se pidió la salida.
type Position struct {
	TokenID       string
	ConditionID   string
	MarketTitle   string
	Outcome       string
	Size          float64 // shares
	AvgPrice      float64
	CurrentPrice  float64
	CurrentValue  float64
	CashPnL       float64
	ExitRequested bool
}

// IsDust devuelve true si la posición está por debajo del mínimo gestionable.
func (p Position) IsDust(minSize float64) bool {
	return p.Size < minSize
}
