// Package retry implementa la política de reintentos acotados que usan
// las llamadas de red: máximo de intentos fijo con backoff exponencial,
// respetando la cancelación del contexto.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Policy define cuántas veces y con qué espera se reintenta una operación.
type Policy struct {
	MaxAttempts int           // intentos totales, incluido el primero
	BaseWait    time.Duration // espera tras el primer fallo; se duplica en cada intento
}

// Default es la política usada por el lifecycle manager: 3 intentos,
// backoff 500ms → 1s.
var Default = Policy{MaxAttempts: 3, BaseWait: 500 * time.Millisecond}

// Permanent envuelve un error para marcar que no debe reintentarse.
type Permanent struct {
	Err error
}

func (p Permanent) Error() string { return p.Err.Error() }
func (p Permanent) Unwrap() error { return p.Err }

// NoRetry marca un error como permanente (fallos de firma, rechazos del
// venue): Do lo devuelve inmediatamente sin agotar intentos.
func NoRetry(err error) error {
	if err == nil {
		return nil
	}
	return Permanent{Err: err}
}

// Do ejecuta fn hasta que tenga éxito, devuelva un error permanente, se
// agoten los intentos o el contexto se cancele.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}

		var perm Permanent
		if errors.As(err, &perm) {
			return perm.Err
		}
		lastErr = err

		if attempt == p.MaxAttempts-1 {
			break
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * p.BaseWait
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("exhausted %d attempts: %w", p.MaxAttempts, lastErr)
}
