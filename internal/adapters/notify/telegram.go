package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alejandrodnm/polyfarm/internal/domain"
)

// Telegram implementa ports.Notifier contra la Bot API de Telegram.
// Es fire-and-forget: un fallo al enviar se loggea pero nunca afecta
// al ciclo de trading.
type Telegram struct {
	http    *http.Client
	baseURL string
	chatID  string
	enabled bool
}

// NewTelegram crea el notificador. Con enabled=false todos los envíos
// son no-ops, así el fanout no necesita condicionales.
func NewTelegram(token, chatID string, enabled bool) *Telegram {
	return &Telegram{
		http:    &http.Client{Timeout: 5 * time.Second},
		baseURL: "https://api.telegram.org/bot" + token,
		chatID:  chatID,
		enabled: enabled && token != "" && chatID != "",
	}
}

// NotifyCycle envía un resumen corto del ciclo. Solo se notifica cuando
// hay mercados elegibles, para no llenar el chat de ruido.
func (t *Telegram) NotifyCycle(ctx context.Context, eligibilities []domain.RewardEligibility) error {
	if !t.enabled {
		return nil
	}

	passing := filterPassing(eligibilities)
	if len(passing) == 0 {
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 %d mercados elegibles\n", len(passing))
	for i, e := range passing {
		if i >= 5 {
			fmt.Fprintf(&sb, "… y %d más\n", len(passing)-i)
			break
		}
		fmt.Fprintf(&sb, "• %s — $%.2f/día (spread %.1f%%)\n",
			domain.TruncateQuestion(e.Question, e.MarketID, 40),
			e.EstDailyReward, e.SpreadPct*100)
	}

	t.send(ctx, sb.String())
	return nil
}

// NotifyAlert envía eventos de lifecycle.
func (t *Telegram) NotifyAlert(ctx context.Context, alert domain.Alert) error {
	if !t.enabled {
		return nil
	}

	icon := "ℹ️"
	switch alert.Kind {
	case domain.AlertError:
		icon = "🚨"
	case domain.AlertOrderPlaced:
		icon = "✅"
	case domain.AlertDailySummary:
		icon = "📈"
	}

	t.send(ctx, fmt.Sprintf("%s %s", icon, alert.Message))
	return nil
}

// send hace el POST a sendMessage. Los errores se loggean y se tragan.
func (t *Telegram) send(ctx context.Context, text string) {
	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.baseURL+"/sendMessage", strings.NewReader(form.Encode()))
	if err != nil {
		slog.Warn("telegram: build request", "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.http.Do(req)
	if err != nil {
		slog.Warn("telegram: send failed", "err", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("telegram: unexpected status", "status", resp.StatusCode)
	}
}
