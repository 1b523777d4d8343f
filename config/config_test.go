package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyfarm/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "scanner:\n  min_reward: 2.5\n"))
	require.NoError(t, err)

	assert.Equal(t, 2.5, cfg.Scanner.MinReward)
	assert.Equal(t, 60*time.Second, cfg.ScanInterval())
	assert.Equal(t, 300*time.Second, cfg.ExitInterval())
	assert.Equal(t, 4, cfg.Scanner.MaxCompetitionBars)
	assert.Equal(t, 100.0, cfg.Trading.MinOrderSize)
	assert.Equal(t, 5.0, cfg.Trading.DustMinSize)
	assert.Equal(t, "https://clob.polymarket.com", cfg.API.CLOBBase)
	assert.Equal(t, "https://data-api.polymarket.com", cfg.API.DataBase)
	assert.Equal(t, "polyfarm.db", cfg.Storage.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, domain.SigningEOA, cfg.SigningMode())
}

func TestLoad_FullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
scanner:
  interval_seconds: 120
  min_reward: 5.0
  max_competition_bars: 3
  target_categories: [Economics, Crypto]
  max_spread_pct: 0.08
trading:
  min_order_size: 200
  market_capital_cap: 500
  dust_min_size: 2
  exit_interval_seconds: 600
  skip_non_binary: true
wallet:
  signing_mode: proxy
  funder_address: "0xF00D000000000000000000000000000000000001"
storage:
  dsn: ":memory:"
log:
  level: debug
  format: json
`))
	require.NoError(t, err)

	assert.Equal(t, 120*time.Second, cfg.ScanInterval())
	assert.Equal(t, []string{"Economics", "Crypto"}, cfg.Scanner.TargetCategories)
	assert.Equal(t, 500.0, cfg.Trading.MarketCapitalCap)
	assert.True(t, cfg.Trading.SkipNonBinary)
	assert.Equal(t, domain.SigningProxy, cfg.SigningMode())
	assert.Equal(t, ":memory:", cfg.Storage.DSN)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_UnknownSigningModeFails(t *testing.T) {
	_, err := Load(writeConfig(t, "wallet:\n  signing_mode: magic\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signing mode")
}

func TestLoad_ProxyModeRequiresFunder(t *testing.T) {
	_, err := Load(writeConfig(t, "wallet:\n  signing_mode: proxy\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "funder_address")
}

func TestLoad_TelegramEnabledRequiresCredentials(t *testing.T) {
	_, err := Load(writeConfig(t, "telegram:\n  enabled: true\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEGRAM_TOKEN")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PRIVATE_KEY", "deadbeef")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, "log:\n  level: info\n"))
	require.NoError(t, err)

	assert.Equal(t, "deadbeef", cfg.Wallet.PrivateKey)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
