package polymarket

// clob.go — catálogo CLOB (orientado a orderbook) y fetch batch de books.
//
// FetchOrderBooks dispara los batch requests en goroutines concurrentes.
// El rate limiter (token bucket) en doWithRetry controla el ritmo
// automáticamente, sin semáforo explícito.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alejandrodnm/polyfarm/internal/domain"
)

const (
	samplingMarketsPath = "/sampling-markets"
	booksPath           = "/books"
	pageSize            = 100
	batchSize           = 20 // máx token_ids por request a /books
)

// CLOBFeed implementa ports.MarketProvider sobre GET /sampling-markets.
type CLOBFeed struct {
	client *Client
}

// NewCLOBFeed crea el provider del catálogo CLOB.
func NewCLOBFeed(client *Client) *CLOBFeed {
	return &CLOBFeed{client: client}
}

// FetchMarkets pagina /sampling-markets con next_cursor hasta agotar los
// resultados. Una página fallida aborta solo el resto de la paginación:
// lo acumulado hasta entonces se devuelve con un warning, porque una
// lista parcial fresca sigue siendo accionable mientras dura la ventana
// de rewards.
func (f *CLOBFeed) FetchMarkets(ctx context.Context) (domain.FeedResult, error) {
	var result domain.FeedResult
	cursor := ""
	page := 0

	for {
		url := fmt.Sprintf("%s%s?limit=%d", f.client.clobBase, samplingMarketsPath, pageSize)
		if cursor != "" {
			url += "&next_cursor=" + cursor
		}

		var resp samplingMarketsResponse
		if err := f.client.get(ctx, f.client.clobLimiter, url, &resp); err != nil {
			result.PagesFailed++
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("clob page %d failed: %v", page, err))
			slog.Warn("clob: page failed, returning partial catalog",
				"page", page, "accumulated", len(result.Markets), "err", err)
			break
		}

		result.Markets = append(result.Markets, mapSamplingMarkets(resp.Data)...)
		page++

		slog.Debug("fetched sampling markets page",
			"count", len(resp.Data),
			"total", len(result.Markets),
		)

		// "LTE=" es el cursor vacío codificado en base64 que indica última página
		if resp.NextCursor == "" || resp.NextCursor == "LTE=" {
			break
		}
		cursor = resp.NextCursor
	}

	slog.Info("clob catalog fetched",
		"markets", len(result.Markets),
		"pages_failed", result.PagesFailed,
	)
	return result, nil
}

// FetchOrderBooks obtiene los orderbooks para los token_ids dados usando
// el endpoint batch. Lanza un goroutine por batch (máx batchSize tokens)
// y los ejecuta concurrentemente.
func (c *Client) FetchOrderBooks(ctx context.Context, tokenIDs []string) (map[string]domain.OrderBook, error) {
	if len(tokenIDs) == 0 {
		return map[string]domain.OrderBook{}, nil
	}

	batches := splitBatches(tokenIDs, batchSize)

	type batchResult struct {
		books map[string]domain.OrderBook
		err   error
		idx   int
	}

	resultCh := make(chan batchResult, len(batches))
	var wg sync.WaitGroup

	for i, batch := range batches {
		wg.Add(1)
		go func() {
			defer wg.Done()
			books, err := c.fetchBooksBatch(ctx, batch)
			resultCh <- batchResult{books: books, err: err, idx: i}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	result := make(map[string]domain.OrderBook, len(tokenIDs))
	var firstErr error

	for r := range resultCh {
		if r.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("clob.FetchOrderBooks batch %d: %w", r.idx, r.err)
			}
			continue
		}
		for k, v := range r.books {
			result[k] = v
		}
	}

	if firstErr != nil {
		return nil, firstErr
	}

	slog.Debug("order books fetched", "tokens", len(tokenIDs), "books", len(result))
	return result, nil
}

// splitBatches divide tokenIDs en slices de tamaño máximo size.
func splitBatches(tokenIDs []string, size int) [][]string {
	if size <= 0 {
		size = batchSize
	}
	batches := make([][]string, 0, (len(tokenIDs)+size-1)/size)
	for i := 0; i < len(tokenIDs); i += size {
		end := i + size
		if end > len(tokenIDs) {
			end = len(tokenIDs)
		}
		batches = append(batches, tokenIDs[i:end])
	}
	return batches
}

// fetchBooksBatch hace un POST /books para un batch de token_ids.
func (c *Client) fetchBooksBatch(ctx context.Context, tokenIDs []string) (map[string]domain.OrderBook, error) {
	body := make([]orderBookRequest, len(tokenIDs))
	for i, id := range tokenIDs {
		body[i] = orderBookRequest{TokenID: id}
	}

	var resp []orderBookResponse
	url := c.clobBase + booksPath
	if err := c.post(ctx, c.booksLimiter, url, body, &resp); err != nil {
		return nil, fmt.Errorf("POST /books: %w", err)
	}

	return mapOrderBooks(resp), nil
}
