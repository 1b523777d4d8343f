package domain

import "errors"

// Taxonomía de errores del venue. Los adapters clasifican sus fallos
// envolviendo uno de estos sentinels; el lifecycle manager decide la
// política de reintentos con errors.Is.
var (
	// ErrSignature: firma o autorización rechazada. Indica un defecto de
	// configuración (signing mode equivocado, credenciales inválidas).
	// Nunca se reintenta a ciegas.
	ErrSignature = errors.New("signature/authorization rejected")

	// ErrVenueRejected: orden rechazada por precio/tamaño. Las condiciones
	// del mercado se movieron; no se reintenta automáticamente.
	ErrVenueRejected = errors.New("order rejected by venue")

	// ErrTransient: fallo de red o rate limit. Reintentable con backoff.
	ErrTransient = errors.New("transient venue error")
)
