package polymarket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchPositions_MapsAndSkipsMalformed(t *testing.T) {
	data := loadFixture(t, "data_positions.json")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/positions", r.URL.Path)
		assert.Equal(t, "0xWallet", r.URL.Query().Get("user"))
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}))
	defer srv.Close()

	client := newTestClient(nil, nil, srv)
	positions, err := client.FetchPositions(context.Background(), "0xWallet")

	require.NoError(t, err)
	// El fixture trae 4 entries: una sin asset y otra con size 0 se descartan
	require.Len(t, positions, 2)

	p := positions[0]
	assert.Equal(t, "token_yes_001", p.TokenID)
	assert.Equal(t, "0xabc123", p.ConditionID)
	assert.InDelta(t, 150.0, p.Size, 1e-9)
	assert.InDelta(t, 0.68, p.AvgPrice, 1e-9)
	assert.InDelta(t, 0.72, p.CurrentPrice, 1e-9)
	assert.InDelta(t, 6.0, p.CashPnL, 1e-9)
	assert.Equal(t, "Yes", p.Outcome)

	// La posición chica sobrevive al mapping; el filtro de dust es del exit manager
	assert.False(t, positions[0].IsDust(1.0))
	assert.True(t, positions[1].IsDust(1.0))
}

func TestFetchPositions_RequiresWallet(t *testing.T) {
	client := newTestClient(nil, nil, nil)
	_, err := client.FetchPositions(context.Background(), "")
	assert.Error(t, err)
}
