package polymarket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyfarm/internal/adapters/polymarket"
)

func newTestClient(clobSrv, gammaSrv, dataSrv *httptest.Server) *polymarket.Client {
	clobURL, gammaURL, dataURL := "", "", ""
	if clobSrv != nil {
		clobURL = clobSrv.URL
	}
	if gammaSrv != nil {
		gammaURL = gammaSrv.URL
	}
	if dataSrv != nil {
		dataURL = dataSrv.URL
	}
	return polymarket.NewClient(clobURL, gammaURL, dataURL)
}

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("../../../testdata/fixtures/" + name)
	require.NoError(t, err)
	return data
}

func TestCLOBFeed_PaginatesUntilSentinel(t *testing.T) {
	page1 := loadFixture(t, "clob_sampling_markets_page1.json")
	page2 := loadFixture(t, "clob_sampling_markets_page2.json")

	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sampling-markets", r.URL.Path)
		requests++
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("next_cursor") == "" {
			w.Write(page1)
			return
		}
		assert.Equal(t, "MTAw", r.URL.Query().Get("next_cursor"))
		w.Write(page2)
	}))
	defer srv.Close()

	feed := polymarket.NewCLOBFeed(newTestClient(srv, nil, nil))
	result, err := feed.FetchMarkets(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, requests)
	assert.False(t, result.Partial())
	require.Len(t, result.Markets, 3)

	// Sin duplicados entre páginas
	seen := map[string]bool{}
	for _, m := range result.Markets {
		assert.False(t, seen[m.ConditionID], "duplicate condition_id %s", m.ConditionID)
		seen[m.ConditionID] = true
	}

	m := result.Markets[0]
	assert.Equal(t, "0xabc123", m.ConditionID)
	assert.True(t, m.IsBinary())
	assert.True(t, m.HasRewards())
	assert.InDelta(t, 25.5, m.Rewards.DailyRate, 0.001)
	assert.InDelta(t, 0.04, m.Rewards.MaxSpread, 0.0001)

	multi := result.Markets[1]
	assert.False(t, multi.IsBinary())
	require.Len(t, multi.Tokens, 4)

	noRewards := result.Markets[2]
	assert.False(t, noRewards.HasRewards())
	assert.False(t, noRewards.Tradable())
}

func TestCLOBFeed_PartialCatalogOnPageFailure(t *testing.T) {
	page1 := loadFixture(t, "clob_sampling_markets_page1.json")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("next_cursor") == "" {
			w.Header().Set("Content-Type", "application/json")
			w.Write(page1)
			return
		}
		// La segunda página falla: el feed debe devolver lo acumulado
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	feed := polymarket.NewCLOBFeed(newTestClient(srv, nil, nil))
	result, err := feed.FetchMarkets(context.Background())

	require.NoError(t, err)
	assert.True(t, result.Partial())
	assert.Equal(t, 1, result.PagesFailed)
	require.Len(t, result.Warnings, 1)
	assert.Len(t, result.Markets, 2)
}

func TestFetchOrderBooks_BatchAndSorting(t *testing.T) {
	data := loadFixture(t, "clob_orderbooks_batch.json")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/books", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}))
	defer srv.Close()

	client := newTestClient(srv, nil, nil)
	books, err := client.FetchOrderBooks(context.Background(), []string{"token_yes_001", "token_no_001"})

	require.NoError(t, err)
	require.Len(t, books, 2)

	yes := books["token_yes_001"]
	require.Len(t, yes.Bids, 3)
	assert.InDelta(t, 0.71, yes.Bids[0].Price, 1e-9) // mejor bid primero
	require.Len(t, yes.Asks, 2)                      // el nivel con precio 0 se descarta
	assert.InDelta(t, 0.73, yes.Asks[0].Price, 1e-9) // mejor ask primero
	assert.True(t, yes.TwoSided())
	assert.InDelta(t, (0.73-0.71)/0.72, yes.SpreadPct(), 1e-9)

	// Book sin asks: spread indefinido → peor caso
	no := books["token_no_001"]
	assert.False(t, no.TwoSided())
	assert.Equal(t, -1.0, no.SpreadPct())
}

func TestFetchOrderBooks_EmptyInput(t *testing.T) {
	client := newTestClient(nil, nil, nil)
	books, err := client.FetchOrderBooks(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, books)
}
