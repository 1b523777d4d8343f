package polymarket

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyfarm/internal/domain"
)

func TestMergeMarkets_FieldPrecedence(t *testing.T) {
	clob := domain.Market{
		ConditionID:     "0xabc",
		Question:        "CLOB question",
		Category:        "clob-cat",
		Active:          true,
		EnableOrderBook: true,
		AcceptingOrders: true,
		Rewards:         domain.RewardConfig{DailyRate: 30, MinSize: 10, MaxSpread: 0.04},
		Tokens:          []domain.Token{{TokenID: "t1"}, {TokenID: "t2"}},
	}
	gamma := domain.Market{
		ConditionID: "0xabc",
		Question:    "Gamma question",
		Slug:        "gamma-slug",
		Category:    "gamma-cat",
		Volume24h:   5000,
		Liquidity:   90000,
		EndDate:     time.Date(2026, 9, 18, 0, 0, 0, 0, time.UTC),
		Rewards:     domain.RewardConfig{MinSize: 99, MaxSpread: 0.99},
	}

	m := mergeMarkets(clob, gamma)

	// El CLOB manda en tradabilidad y reward terms
	assert.True(t, m.Tradable())
	assert.InDelta(t, 10.0, m.Rewards.MinSize, 1e-9)
	assert.InDelta(t, 0.04, m.Rewards.MaxSpread, 1e-9)
	assert.Equal(t, "CLOB question", m.Question)

	// Gamma manda en volumen/liquidez/metadata
	assert.InDelta(t, 5000.0, m.Volume24h, 1e-9)
	assert.InDelta(t, 90000.0, m.Liquidity, 1e-9)
	assert.Equal(t, "gamma-cat", m.Category)
	assert.Equal(t, "gamma-slug", m.Slug)
	assert.Equal(t, gamma.EndDate, m.EndDate)
}

func TestMergeMarkets_GammaFillsGaps(t *testing.T) {
	clob := domain.Market{ConditionID: "0xabc", Active: true}
	gamma := domain.Market{
		ConditionID: "0xabc",
		Question:    "Gamma question",
		Rewards:     domain.RewardConfig{DailyRate: 5, MinSize: 20, MaxSpread: 0.03},
		Tokens:      []domain.Token{{TokenID: "t1", Outcome: "Yes"}},
	}

	m := mergeMarkets(clob, gamma)

	assert.Equal(t, "Gamma question", m.Question)
	assert.True(t, m.HasRewards())
	require.Len(t, m.Tokens, 1)
	assert.Equal(t, "t1", m.Tokens[0].TokenID)
}

func TestParseEndDate_Layouts(t *testing.T) {
	cases := map[string]bool{
		"2026-09-18T00:00:00Z":     true,
		"2026-09-18T00:00:00.000Z": true,
		"2026-09-18":               true,
		"not-a-date":               false,
		"":                         false,
	}
	for in, ok := range cases {
		got := parseEndDate(in)
		assert.Equal(t, ok, !got.IsZero(), "input %q", in)
	}
}

func TestDecodeStringArray_Forms(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"native array", `["a","b"]`, []string{"a", "b"}},
		{"stringified array", `"[\"a\", \"b\"]"`, []string{"a", "b"}},
		{"empty string", `""`, nil},
		{"null", `null`, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decodeStringArray([]byte(tc.in))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := decodeStringArray([]byte(`"not json"`))
	assert.Error(t, err)
}

func TestMapBookEntries_SortsAndSkipsInvalid(t *testing.T) {
	raw := []bookEntryRaw{
		{Price: "0.40", Size: "10"},
		{Price: "0.45", Size: "5"},
		{Price: "0", Size: "100"},
		{Price: "0.42", Size: "-1"},
	}

	bids := mapBookEntries(raw, false)
	require.Len(t, bids, 2)
	assert.InDelta(t, 0.45, bids[0].Price, 1e-9)

	asks := mapBookEntries(raw, true)
	assert.InDelta(t, 0.40, asks[0].Price, 1e-9)
}

func TestClassifyVenueError(t *testing.T) {
	assert.True(t, errors.Is(classifyVenueError("invalid signature"), domain.ErrSignature))
	assert.True(t, errors.Is(classifyVenueError("Unauthorized"), domain.ErrSignature))
	assert.True(t, errors.Is(classifyVenueError("order crosses book"), domain.ErrVenueRejected))
}

func TestDetectPricePrecision(t *testing.T) {
	assert.Equal(t, int64(100), detectPricePrecision(0.60))
	assert.Equal(t, int64(1000), detectPricePrecision(0.673))
	assert.Equal(t, int64(10000), detectPricePrecision(0.4205))
}
