package domain

// FeedResult es el resultado de drenar un catálogo paginado de mercados.
// Una página fallida aborta solo esa página: los mercados acumulados se
// devuelven igual, con el fallo registrado como warning.
type FeedResult struct {
	Markets     []Market
	PagesFailed int
	Warnings    []string
}

// Partial devuelve true si al menos una página falló.
func (r FeedResult) Partial() bool {
	return r.PagesFailed > 0
}

// CycleSummary es el resumen ligero de un ciclo de scan.
type CycleSummary struct {
	MarketsSeen   int
	Eligible      int
	Quoted        int
	OrdersPlaced  int
	OrdersFailed  int
	PartialPages  int
	BestEstReward float64
	DurationMS    int64
}
