package scanner

// concurrent.go — worker pool de evaluación de mercados.
//
// El fetch de books por mercado es la latencia dominante del ciclo;
// evaluarlos en paralelo baja el ciclo de ~20s a ~3-5s. El rate limiter
// del cliente HTTP controla el ritmo real hacia la API.

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/alejandrodnm/polyfarm/internal/domain"
)

// evaluateConcurrent evalúa todos los mercados con un worker pool acotado.
// Con workers <= 0 usa runtime.NumCPU() × 2.
func evaluateConcurrent(ctx context.Context, s *Scanner, markets []domain.Market, workers int) []Evaluation {
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}

	workCh := make(chan domain.Market, len(markets))
	resultCh := make(chan Evaluation, len(markets))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range workCh {
				if ctx.Err() != nil {
					return
				}
				resultCh <- s.evaluate(ctx, m)
			}
		}()
	}

	for _, m := range markets {
		workCh <- m
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	evals := make([]Evaluation, 0, len(markets))
	for ev := range resultCh {
		evals = append(evals, ev)
	}

	slog.Debug("concurrent evaluation complete",
		"markets", len(markets),
		"evaluated", len(evals),
		"workers", workers,
	)
	return evals
}
