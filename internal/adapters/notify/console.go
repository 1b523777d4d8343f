package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/polyfarm/internal/domain"
)

// Console implementa ports.Notifier escribiendo a stdout.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// NotifyCycle imprime las elegibilidades del ciclo en el modo configurado.
func (c *Console) NotifyCycle(_ context.Context, eligibilities []domain.RewardEligibility) error {
	passing := filterPassing(eligibilities)
	if len(passing) == 0 {
		fmt.Fprintf(c.out, "[%s] %d mercados escaneados, ninguno elegible\n",
			time.Now().Format("15:04:05"), len(eligibilities))
		return nil
	}

	if c.table {
		c.printFull(eligibilities, passing)
	} else {
		c.printCompact(eligibilities, passing)
	}
	return nil
}

// NotifyAlert imprime eventos de lifecycle en una línea.
func (c *Console) NotifyAlert(_ context.Context, alert domain.Alert) error {
	fmt.Fprintf(c.out, "[%s] %s: %s\n",
		alert.At.Format("15:04:05"), alert.Kind, alert.Message)
	return nil
}

// printCompact imprime lo esencial en una línea.
func (c *Console) printCompact(all, passing []domain.RewardEligibility) {
	now := time.Now().Format("15:04:05")

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %d mkts → %d elegibles", now, len(all), len(passing))

	shown := 0
	for _, e := range passing {
		if shown >= 4 {
			break
		}
		name := domain.TruncateQuestion(e.Question, e.MarketID, 25)
		fmt.Fprintf(&sb, " | %s rwd$%.2f %s spr%.1f%%",
			name, e.EstDailyReward, competitionIcon(e.CompetitionBars), e.SpreadPct*100)
		shown++
	}

	fmt.Fprintln(c.out, sb.String())
}

// printFull imprime la tabla completa ordenada por reward estimado.
func (c *Console) printFull(all, passing []domain.RewardEligibility) {
	now := time.Now().Format("15:04:05")
	fmt.Fprintf(c.out, "\n[%s] %d mercados escaneados — %d elegibles\n",
		now, len(all), len(passing))

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Market", "Cat", "Comp", "Rwd/day", "Bid", "Ask", "Spread", "Estado")

	for i, e := range all {
		state := "OK"
		if !e.Passes {
			state = e.Reason
		}

		spread := fmt.Sprintf("%.2f%%", e.SpreadPct*100)
		if e.SpreadPct < 0 {
			spread = "n/a"
		}

		table.Append(
			fmt.Sprintf("%d", i+1),
			domain.TruncateQuestion(e.Question, e.MarketID, 38),
			e.Category,
			competitionIcon(e.CompetitionBars),
			fmt.Sprintf("$%.4f", e.EstDailyReward),
			fmt.Sprintf("%.3f", e.BestBid),
			fmt.Sprintf("%.3f", e.BestAsk),
			spread,
			state,
		)
	}

	table.Render()
	fmt.Fprintln(c.out, "  Comp = volumen 24h en barras (más barras, más competencia)")
	fmt.Fprintln(c.out, "  Rwd/day = reward diario estimado para tu tamaño de orden")
}

// competitionIcon representa el nivel de competencia como barras.
func competitionIcon(bars int) string {
	if bars < 0 {
		bars = 0
	}
	if bars > domain.MaxCompetitionBars {
		bars = domain.MaxCompetitionBars
	}
	return strings.Repeat("▰", bars) + strings.Repeat("▱", domain.MaxCompetitionBars-bars)
}

func filterPassing(eligibilities []domain.RewardEligibility) []domain.RewardEligibility {
	out := make([]domain.RewardEligibility, 0, len(eligibilities))
	for _, e := range eligibilities {
		if e.Passes {
			out = append(out, e)
		}
	}
	return out
}
