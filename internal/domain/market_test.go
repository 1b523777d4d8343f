package domain

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTradable(t *testing.T) {
	m := Market{Active: true, EnableOrderBook: true, AcceptingOrders: true}
	assert.True(t, m.Tradable())

	closed := m
	closed.Closed = true
	assert.False(t, closed.Tradable())

	notAccepting := m
	notAccepting.AcceptingOrders = false
	assert.False(t, notAccepting.Tradable())
}

func TestTruncateQuestion(t *testing.T) {
	assert.Equal(t, "short", TruncateQuestion("short", "0xabc", 20))
	assert.Equal(t, "una pregunta muy ...", TruncateQuestion("una pregunta muy larga sobre mercados", "0xabc", 20))
}

func TestTruncateQuestion_MultibyteStaysValidUTF8(t *testing.T) {
	q := "¿Ganará España la Eurocopa este año según las casas de apuestas?"
	got := TruncateQuestion(q, "0xabc", 20)

	assert.True(t, utf8.ValidString(got), "truncation must not split a multibyte rune")
	assert.Equal(t, 20, len([]rune(got)))
}

func TestTruncateQuestion_EmptyFallsBackToConditionID(t *testing.T) {
	got := TruncateQuestion("", "0x1234567890abcdef1234567890abcdef", 40)
	assert.Equal(t, "0x1234567890abcdef12...", got)
}
