package polymarket

import (
	"bytes"
	"encoding/json"
	"strings"
)

// DTOs raw de las APIs de Polymarket. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go, que es la capa
// de reconciliación tipada entre los dos esquemas de catálogo.

// --- CLOB API (catálogo orientado a orderbook) ---

// samplingMarketsResponse es la respuesta paginada de GET /sampling-markets.
type samplingMarketsResponse struct {
	Limit      int              `json:"limit"`
	Count      int              `json:"count"`
	NextCursor string           `json:"next_cursor"`
	Data       []samplingMarket `json:"data"`
}

// samplingMarket es un mercado con rewards activos del CLOB.
type samplingMarket struct {
	ConditionID     string      `json:"condition_id"`
	QuestionID      string      `json:"question_id"`
	Question        string      `json:"question"`
	Category        string      `json:"category"`
	Tokens          []clobToken `json:"tokens"`
	Rewards         clobRewards `json:"rewards"`
	Active          bool        `json:"active"`
	Closed          bool        `json:"closed"`
	EnableOrderBook bool        `json:"enable_order_book"`
	AcceptingOrders bool        `json:"accepting_orders"`
	EndDateISO      string      `json:"end_date_iso"`
	NegRisk         bool        `json:"neg_risk"`
}

// clobToken representa un outcome en el CLOB.
type clobToken struct {
	TokenID string  `json:"token_id"`
	Outcome string  `json:"outcome"`
	Price   float64 `json:"price"`
	Winner  bool    `json:"winner"`
}

// clobRewards contiene la configuración de rewards del mercado.
type clobRewards struct {
	Rates     []rewardRate `json:"rates"`
	MinSize   float64      `json:"min_size"`
	MaxSpread float64      `json:"max_spread"`
}

// rewardRate es la tasa de reward por asset.
type rewardRate struct {
	AssetAddress     string  `json:"asset_address"`
	RewardsDailyRate float64 `json:"rewards_daily_rate"`
}

// orderBookRequest es el body del POST /books batch.
type orderBookRequest struct {
	TokenID string `json:"token_id"`
}

// orderBookResponse es la respuesta de un item en POST /books.
type orderBookResponse struct {
	AssetID string         `json:"asset_id"`
	Bids    []bookEntryRaw `json:"bids"`
	Asks    []bookEntryRaw `json:"asks"`
}

// bookEntryRaw es un nivel de precio raw de la API (strings para mayor precisión).
type bookEntryRaw struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// --- Gamma API (catálogo de metadata, agrupado por evento) ---

// gammaEventsResponse es la respuesta de GET /events (paginada por offset).
type gammaEventsResponse []gammaEvent

// gammaEvent agrupa mercados bajo un evento.
type gammaEvent struct {
	Slug    string        `json:"slug"`
	Markets []gammaMarket `json:"markets"`
}

// gammaMarket usa nombres de campo distintos al CLOB para los mismos
// conceptos (camelCase, rewards bajo claves propias). Varios numéricos
// llegan como strings JSON, de ahí json.Number.
type gammaMarket struct {
	ConditionID   string       `json:"conditionId"`
	Question      string       `json:"question"`
	Slug          string       `json:"slug"`
	Category      string       `json:"category"`
	EndDateISO    string       `json:"endDateIso"`
	Volume24h     json.Number  `json:"volume24hr"`
	Liquidity     json.Number  `json:"liquidityNum"`
	RewardMinSize json.Number  `json:"rewardsMinSize"`
	RewardSpread  json.Number  `json:"rewardsMaxSpread"`
	Active        bool         `json:"active"`
	Closed        bool         `json:"closed"`
	EnableBook    bool         `json:"enableOrderBook"`
	Accepting     bool         `json:"acceptingOrders"`
	Outcomes      stringList   `json:"outcomes"`
	ClobTokenIDs  clobTokenIDs `json:"clobTokenIds"`
}

// clobTokenIDs tolera el formato habitual de Gamma: un string JSON que
// contiene a su vez un array JSON.
type clobTokenIDs []string

func (c *clobTokenIDs) UnmarshalJSON(b []byte) error {
	ids, err := decodeStringArray(b)
	if err != nil {
		return err
	}
	*c = ids
	return nil
}

// stringList idem para listas de outcomes.
type stringList []string

func (s *stringList) UnmarshalJSON(b []byte) error {
	vals, err := decodeStringArray(b)
	if err != nil {
		return err
	}
	*s = vals
	return nil
}

// decodeStringArray acepta tanto `["a","b"]` como `"[\"a\",\"b\"]"`.
func decodeStringArray(b []byte) ([]string, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil, nil
	}
	if b[0] == '"' {
		var raw string
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil, err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil, nil
		}
		var vals []string
		if err := json.Unmarshal([]byte(raw), &vals); err != nil {
			return nil, err
		}
		return vals, nil
	}
	var vals []string
	if err := json.Unmarshal(b, &vals); err != nil {
		return nil, err
	}
	return vals, nil
}

// --- data-api (position feed) ---

// dataPosition es una tenencia reportada por GET /positions.
type dataPosition struct {
	Asset        string  `json:"asset"`
	ConditionID  string  `json:"conditionId"`
	Size         float64 `json:"size"`
	AvgPrice     float64 `json:"avgPrice"`
	CurPrice     float64 `json:"curPrice"`
	CurrentValue float64 `json:"currentValue"`
	CashPnl      float64 `json:"cashPnl"`
	Title        string  `json:"title"`
	Outcome      string  `json:"outcome"`
	NegativeRisk bool    `json:"negativeRisk"`
}
