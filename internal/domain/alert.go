package domain

import "time"

// AlertKind clasifica los eventos de ciclo de vida que salen por el
// canal de alertas.
type AlertKind string

const (
	AlertStart        AlertKind = "start"
	AlertOrderPlaced  AlertKind = "order_placed"
	AlertError        AlertKind = "error"
	AlertDailySummary AlertKind = "daily_summary"
)

// Alert es una notificación fire-and-forget. Un fallo al enviarla nunca
// debe bloquear la lógica de trading.
type Alert struct {
	Kind    AlertKind
	Message string
	At      time.Time
}

// NewAlert construye una alerta con timestamp actual.
func NewAlert(kind AlertKind, message string) Alert {
	return Alert{Kind: kind, Message: message, At: time.Now().UTC()}
}
