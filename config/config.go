package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/polyfarm/internal/domain"
)

// Config es la configuración completa del bot.
type Config struct {
	Scanner  ScannerConfig  `yaml:"scanner"`
	Trading  TradingConfig  `yaml:"trading"`
	Wallet   WalletConfig   `yaml:"wallet"`
	API      APIConfig      `yaml:"api"`
	Storage  StorageConfig  `yaml:"storage"`
	Telegram TelegramConfig `yaml:"telegram"`
	Log      LogConfig      `yaml:"log"`
}

// ScannerConfig controla el descubrimiento y filtro de mercados.
type ScannerConfig struct {
	IntervalSeconds    int      `yaml:"interval_seconds"`
	MinReward          float64  `yaml:"min_reward"`           // mínimo tu $/día estimado
	MaxCompetitionBars int      `yaml:"max_competition_bars"` // tier máximo de competencia (1-5)
	TargetCategories   []string `yaml:"target_categories"`    // vacío = todas
	MaxSpreadPct       float64  `yaml:"max_spread_pct"`       // techo operativo de spread
	Workers            int      `yaml:"workers"`              // goroutines de evaluación
}

// TradingConfig controla colocación y salida de órdenes.
type TradingConfig struct {
	MinOrderSize        float64 `yaml:"min_order_size"`      // shares
	MarketCapitalCap    float64 `yaml:"market_capital_cap"`  // USDC por mercado, 0 = sin cap
	DustMinSize         float64 `yaml:"dust_min_size"`       // posiciones menores no se tocan
	ExitIntervalSeconds int     `yaml:"exit_interval_seconds"`
	SkipNonBinary       bool    `yaml:"skip_non_binary"`
}

// WalletConfig identifica con qué clave y en qué modo se firma.
// La clave privada nunca va en el YAML: solo por PRIVATE_KEY en el entorno.
type WalletConfig struct {
	SigningMode   string `yaml:"signing_mode"` // eoa | proxy | safe
	FunderAddress string `yaml:"funder_address"`
	PrivateKey    string `yaml:"-"`
}

// APIConfig contiene los base URLs de las APIs.
type APIConfig struct {
	CLOBBase  string `yaml:"clob_base"`
	GammaBase string `yaml:"gamma_base"`
	DataBase  string `yaml:"data_base"`
	RPCURL    string `yaml:"rpc_url"` // opcional, para lectura de balance on-chain
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// TelegramConfig controla el canal de alertas. Token y chat ID van por
// entorno (TELEGRAM_TOKEN, TELEGRAM_CHAT_ID), nunca en el YAML.
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"-"`
	ChatID  string `yaml:"-"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ScanInterval devuelve el intervalo de escaneo como time.Duration.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Scanner.IntervalSeconds) * time.Second
}

// ExitInterval devuelve el intervalo del exit loop como time.Duration.
func (c *Config) ExitInterval() time.Duration {
	return time.Duration(c.Trading.ExitIntervalSeconds) * time.Second
}

// SigningMode devuelve el modo de firma parseado. El modo inválido ya
// se rechazó en Load, así que aquí no puede fallar.
func (c *Config) SigningMode() domain.SigningMode {
	mode, _ := domain.ParseSigningMode(c.Wallet.SigningMode)
	return mode
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PRIVATE_KEY"); v != "" {
		cfg.Wallet.PrivateKey = v
	}
	if v := os.Getenv("FUNDER_ADDRESS"); v != "" {
		cfg.Wallet.FunderAddress = v
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("RPC_URL"); v != "" {
		cfg.API.RPCURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Scanner.IntervalSeconds <= 0 {
		cfg.Scanner.IntervalSeconds = 60
	}
	if cfg.Scanner.MinReward <= 0 {
		cfg.Scanner.MinReward = 1.0
	}
	if cfg.Scanner.MaxCompetitionBars <= 0 {
		cfg.Scanner.MaxCompetitionBars = 4
	}
	if cfg.Scanner.MaxSpreadPct <= 0 {
		cfg.Scanner.MaxSpreadPct = 0.12
	}
	if cfg.Trading.MinOrderSize <= 0 {
		cfg.Trading.MinOrderSize = 100
	}
	if cfg.Trading.DustMinSize <= 0 {
		cfg.Trading.DustMinSize = 5
	}
	if cfg.Trading.ExitIntervalSeconds <= 0 {
		cfg.Trading.ExitIntervalSeconds = 300
	}
	if cfg.Wallet.SigningMode == "" {
		cfg.Wallet.SigningMode = "eoa"
	}
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.API.DataBase == "" {
		cfg.API.DataBase = "https://data-api.polymarket.com"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "polyfarm.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// validate rechaza configuraciones con las que no se puede arrancar.
// Un signing mode desconocido es error de arranque, nunca un fallback
// silencioso a EOA.
func validate(cfg *Config) error {
	if _, err := domain.ParseSigningMode(cfg.Wallet.SigningMode); err != nil {
		return fmt.Errorf("config.Load: %w", err)
	}
	mode, _ := domain.ParseSigningMode(cfg.Wallet.SigningMode)
	if mode != domain.SigningEOA && cfg.Wallet.FunderAddress == "" {
		return fmt.Errorf("config.Load: signing_mode %q requires funder_address", cfg.Wallet.SigningMode)
	}
	if cfg.Telegram.Enabled && (cfg.Telegram.Token == "" || cfg.Telegram.ChatID == "") {
		return fmt.Errorf("config.Load: telegram enabled but TELEGRAM_TOKEN/TELEGRAM_CHAT_ID missing")
	}
	return nil
}
