package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nasdaqstrategy/config"
	"nasdaqstrategy/gateway"
	gwmiddleware "nasdaqstrategy/gateway/middleware"
	"nasdaqstrategy/native/strategy"
	"nasdaqstrategy/observability/logging"
	"nasdaqstrategy/rpc"
	"nasdaqstrategy/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("STRATEGY_ENV"))
	logger := logging.Setup("strategyd", env, logging.Options{})

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	if strings.TrimSpace(cfg.LogFile) != "" {
		logger = logging.Setup("strategyd", env, logging.Options{File: cfg.LogFile})
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	ledger := strategy.NewLedger(storage.NewKVStore(db))
	engine := strategy.NewEngine()
	engine.SetState(ledger)

	if err := bootstrap(engine, cfg.Bootstrap, logger); err != nil {
		logger.Error("bootstrap failed", slog.Any("error", err))
		os.Exit(1)
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("starting metrics server", "addr", cfg.MetricsAddress)
		if err := http.ListenAndServe(cfg.MetricsAddress, mux); err != nil {
			logger.Error("metrics server stopped", slog.Any("error", err))
		}
	}()

	go func() {
		limiter := gwmiddleware.NewRateLimiter(gwmiddleware.RateLimit{
			RequestsPerMinute: cfg.RateLimitPerMinute,
			Burst:             cfg.RateLimitBurst,
		})
		router := gateway.New(gateway.Config{Engine: engine, RateLimiter: limiter})
		logger.Info("starting gateway", "addr", cfg.GatewayAddress)
		if err := http.ListenAndServe(cfg.GatewayAddress, router); err != nil {
			logger.Error("gateway stopped", slog.Any("error", err))
		}
	}()

	server := rpc.NewServer(engine, logger)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("rpc server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// bootstrap seeds config, treasury, and rules on first start. A ledger that is
// already initialized is left untouched.
func bootstrap(engine *strategy.Engine, seed config.Bootstrap, logger *slog.Logger) error {
	if strings.TrimSpace(seed.Mint) == "" {
		if _, err := engine.Config(); errors.Is(err, strategy.ErrNotInitialized) {
			return fmt.Errorf("no bootstrap config and ledger not initialized")
		}
		return nil
	}
	supply, err := seed.TotalSupplyAmount()
	if err != nil {
		return err
	}
	_, err = engine.Initialize(strategy.InitializeParams{
		Mint:          seed.Mint,
		FeeCollector:  seed.FeeCollector,
		Treasury:      seed.Treasury,
		TotalSupply:   supply,
		FeePercentage: seed.FeePercentage,
	})
	switch {
	case err == nil:
		logger.Info("initialized strategy config", "mint", seed.Mint)
	case errors.Is(err, strategy.ErrAlreadyInitialized):
		return nil
	default:
		return err
	}

	minPurchase, err := seed.MinPurchase()
	if err != nil {
		return err
	}
	if _, err := engine.InitializeTreasury(strategy.TreasuryParams{
		UsdcVault:          seed.UsdcVault,
		VaultAuthority:     seed.VaultAuthority,
		RebalanceFrequency: seed.RebalanceFrequency,
		MinPurchaseAmount:  minPurchase,
	}); err != nil && !errors.Is(err, strategy.ErrAlreadyInitialized) {
		return err
	}
	for _, rule := range seed.Rules {
		if _, err := engine.SetRule(rule.Asset, rule.MaxAllocationPercentage, rule.Active); err != nil {
			return err
		}
	}
	return nil
}
