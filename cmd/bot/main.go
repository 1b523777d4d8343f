package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/polyfarm/config"
	"github.com/alejandrodnm/polyfarm/internal/adapters/notify"
	"github.com/alejandrodnm/polyfarm/internal/adapters/polymarket"
	"github.com/alejandrodnm/polyfarm/internal/adapters/storage"
	"github.com/alejandrodnm/polyfarm/internal/application/engine"
	"github.com/alejandrodnm/polyfarm/internal/application/exit"
	"github.com/alejandrodnm/polyfarm/internal/application/orders"
	"github.com/alejandrodnm/polyfarm/internal/application/quoter"
	"github.com/alejandrodnm/polyfarm/internal/application/scanner"
	"github.com/alejandrodnm/polyfarm/internal/domain"
	"github.com/alejandrodnm/polyfarm/internal/ports"
	"github.com/alejandrodnm/polyfarm/internal/retry"
)

// noopExecutor respalda el modo dry-run: cualquier intento de colocar
// una orden real es un bug y se rechaza.
type noopExecutor struct{}

func (noopExecutor) PlaceOrder(context.Context, domain.PlaceOrderRequest) (domain.PlacedOrder, error) {
	return domain.PlacedOrder{}, fmt.Errorf("dry-run: order placement disabled")
}

func (noopExecutor) CancelOrder(context.Context, string) error { return nil }

func (noopExecutor) GetOpenOrders(context.Context) ([]domain.VenueOrder, error) { return nil, nil }

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one scan+exit cycle and exit")
	dryRun := flag.Bool("dry-run", false, "plan quotes but place no orders")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full eligibility table (default: compact 1-line)")
	liquidate := flag.Bool("liquidate", false, "sell all positions at best bid and exit (requires -confirm)")
	confirm := flag.String("confirm", "", "confirmation token for -liquidate")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("polyfarm starting",
		"config", *configPath,
		"interval", cfg.ScanInterval(),
		"exit_interval", cfg.ExitInterval(),
		"signing_mode", cfg.Wallet.SigningMode,
		"dry_run", *dryRun,
		"once", *once,
	)

	client := polymarket.NewClient(cfg.API.CLOBBase, cfg.API.GammaBase, cfg.API.DataBase)
	feed := polymarket.NewMergedFeed(polymarket.NewCLOBFeed(client), polymarket.NewGammaFeed(client))

	executor, wallet := buildTrading(cfg, client, *dryRun)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	notifier := notify.NewMulti(
		notify.NewConsole(*table),
		notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, cfg.Telegram.Enabled),
	)

	sc := scanner.New(scanner.Config{
		MinReward:          cfg.Scanner.MinReward,
		MaxCompetitionBars: cfg.Scanner.MaxCompetitionBars,
		TargetCategories:   cfg.Scanner.TargetCategories,
		MaxSpreadPct:       cfg.Scanner.MaxSpreadPct,
		OrderSize:          cfg.Trading.MinOrderSize,
		Workers:            cfg.Scanner.Workers,
	}, feed, client, nil, nil)

	planner := quoter.New(quoter.Config{
		MinOrderSize:  cfg.Trading.MinOrderSize,
		SkipNonBinary: cfg.Trading.SkipNonBinary,
	})

	locks := orders.NewTokenLocks()
	orderMgr := orders.New(orders.Config{
		MarketCapitalCap: cfg.Trading.MarketCapitalCap,
		Retry:            retry.Default,
	}, executor, store, notifier, locks)

	exitMgr := exit.New(exit.Config{
		Wallet:      wallet,
		DustMinSize: cfg.Trading.DustMinSize,
	}, client, client, orderMgr, locks)

	eng := engine.New(engine.Config{
		ScanInterval: cfg.ScanInterval(),
		ExitInterval: cfg.ExitInterval(),
		CycleTimeout: cfg.ScanInterval(),
		DryRun:       *dryRun,
	}, sc, planner, orderMgr, exitMgr, notifier, store)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *liquidate {
		sold, err := exitMgr.LiquidateAll(ctx, *confirm)
		if err != nil {
			slog.Error("liquidation refused", "err", err)
			os.Exit(1)
		}
		slog.Info("liquidation orders submitted", "count", sold)
		return
	}

	if *once {
		if err := eng.RunOnce(ctx); err != nil {
			slog.Error("cycle failed", "err", err)
			os.Exit(1)
		}
		return
	}

	if err := eng.Run(ctx); err != nil {
		slog.Error("bot exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("polyfarm stopped cleanly")
}

// buildTrading construye el cliente de trading autenticado. En dry-run
// no hace falta clave: se usa un executor que rechaza cualquier orden,
// de modo que un bug en el gating de dry-run no pueda gastar dinero.
func buildTrading(cfg *config.Config, client *polymarket.Client, dryRun bool) (executor ports.OrderExecutor, wallet string) {
	if dryRun {
		// El exit loop sigue necesitando la dirección del maker para
		// leer posiciones; se deriva de la clave si está presente.
		maker := cfg.Wallet.FunderAddress
		if cfg.Wallet.PrivateKey != "" {
			auth, err := polymarket.NewAuthClient(client, cfg.Wallet.PrivateKey, cfg.Wallet.FunderAddress, cfg.SigningMode())
			if err != nil {
				slog.Error("invalid PRIVATE_KEY", "err", err)
				os.Exit(1)
			}
			maker = auth.Wallet().Maker()
		}
		return noopExecutor{}, maker
	}

	if cfg.Wallet.PrivateKey == "" {
		slog.Error("PRIVATE_KEY not set — required outside dry-run mode")
		os.Exit(1)
	}

	auth, err := polymarket.NewAuthClient(client, cfg.Wallet.PrivateKey, cfg.Wallet.FunderAddress, cfg.SigningMode())
	if err != nil {
		slog.Error("failed to create auth client", "err", err)
		os.Exit(1)
	}

	trading, err := polymarket.NewTradingClient(auth, cfg.API.RPCURL)
	if err != nil {
		slog.Error("failed to create trading client", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := auth.EnsureCreds(ctx); err != nil {
		slog.Error("failed to derive API credentials — check PRIVATE_KEY", "err", err)
		os.Exit(1)
	}
	slog.Info("authenticated with Polymarket CLOB",
		"address", auth.Address(),
		"maker", auth.Wallet().Maker(),
	)

	if balance, err := trading.GetBalance(ctx); err != nil {
		slog.Warn("could not read on-chain balance", "err", err)
	} else if balance >= 0 {
		slog.Info("on-chain USDC balance", "usdc", fmt.Sprintf("$%.2f", balance))
	}

	return trading, auth.Wallet().Maker()
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
