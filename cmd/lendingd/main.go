package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DavNej/lending-protocol/config"
	"github.com/DavNej/lending-protocol/gateway"
	"github.com/DavNej/lending-protocol/lending"
	"github.com/DavNej/lending-protocol/observability"
	"github.com/DavNej/lending-protocol/storage"
	"github.com/DavNej/lending-protocol/token"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", "lendingd")

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	var db storage.Database
	if cfg.DataDir != "" {
		db, err = storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			logger.Error("failed to open state database", "err", err, "dir", cfg.DataDir)
			os.Exit(1)
		}
	} else {
		db = storage.NewMemDB()
	}
	defer db.Close()

	registry := token.NewRegistry()
	factory := token.NewFactory(cfg.Ledger())

	engine := lending.NewEngine(cfg.OwnerAddress(), cfg.Ledger())
	engine.SetState(storage.NewState(db))
	engine.SetTokens(registry)
	engine.SetShareFactory(factory)
	engine.SetEmitter(observability.NewEventCounter(observability.Metrics(), nil))

	if err := seedAssets(cfg, engine, registry, factory, logger); err != nil {
		logger.Error("failed to seed assets", "err", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           gateway.NewRouter(observability.NewLedgerRecorder(observability.Metrics(), engine), factory),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("gateway listening", "addr", cfg.ListenAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("gateway stopped", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("gateway shutdown", "err", err)
	}
}

// seedAssets registers the configured assets, mints the faucet balances,
// creates each asset's pool and records its collateral ratio. Pools that
// already exist in persisted state are re-registered with the share factory
// and left alone.
//
// The asset ledgers themselves are in-memory collaborators: after a restart
// the persisted pools and loans come back, but held liquidity, posted
// collateral and share balances start from the freshly seeded state.
func seedAssets(cfg *config.Config, engine *lending.Engine, registry *token.Registry, factory *token.Factory, logger *slog.Logger) error {
	metrics := observability.Metrics()
	faucet := cfg.Faucet()
	for i := range cfg.Assets {
		asset := &cfg.Assets[i]
		addr := asset.ParsedAddress()

		ledger := token.NewLedger(asset.Name, asset.Symbol)
		if balance := asset.Balance(); balance.Sign() > 0 {
			if err := ledger.Mint(faucet, balance); err != nil {
				return fmt.Errorf("seed %s: %w", asset.Symbol, err)
			}
		}
		registry.Register(addr, ledger)

		_, err := engine.CreatePool(addr)
		metrics.ObserveOperation("create_pool", err)
		if err != nil {
			if !errors.Is(err, lending.ErrPoolAlreadyExists) {
				return fmt.Errorf("create pool %s: %w", asset.Symbol, err)
			}
			// Pool restored from persisted state: re-register its issuer,
			// which lands on the same deterministic address.
			if _, err := factory.Create(addr, asset.Name+" Supply Share", "s"+asset.Symbol); err != nil {
				return fmt.Errorf("restore share issuer %s: %w", asset.Symbol, err)
			}
			logger.Warn("pool restored from persisted state; in-memory asset balances restart from seed",
				"asset", asset.Symbol)
		}
		if ratio := asset.Ratio(); ratio.Sign() > 0 {
			err := engine.SetScaledCollateralRatio(cfg.OwnerAddress(), addr, ratio)
			metrics.ObserveOperation("set_collateral_ratio", err)
			if err != nil {
				return fmt.Errorf("set collateral ratio %s: %w", asset.Symbol, err)
			}
		}
	}
	return nil
}
