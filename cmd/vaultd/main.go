package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"vaultd/config"
	"vaultd/custody"
	"vaultd/events"
	"vaultd/observability/logging"
	"vaultd/oracle"
	"vaultd/server"
	"vaultd/state"
	"vaultd/storage"
	"vaultd/vault"
)

const envVar = "VAULTD_ENV"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	logger := logging.Setup("vaultd", os.Getenv(envVar))

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	params, err := cfg.Parameters()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	var db storage.Database
	if params.DataDir == "" {
		logger.Warn("no DataDir configured, using in-memory state")
		db = storage.NewMemDB()
	} else {
		ldb, err := storage.NewLevelDB(filepath.Join(params.DataDir, "vault"))
		if err != nil {
			logger.Error("failed to open database", "error", err, "dataDir", params.DataDir)
			os.Exit(1)
		}
		db = ldb
	}
	defer db.Close()

	manager := state.NewManager(db)
	if err := seedCaps(manager, params); err != nil {
		logger.Error("failed to seed native caps", "error", err)
		os.Exit(1)
	}

	engine := vault.NewEngine(manager, params.Owner)
	engine.SetRoleRegistry(manager)
	engine.SetTokenRegistry(params.Tokens)
	engine.SetTransferer(custody.NewMemory())
	engine.SetEmitter(events.LogEmitter{Logger: logger})
	if params.OracleEndpoint != "" {
		engine.WireOracle(oracle.NewHTTPSource(params.OracleEndpoint, nil))
		logger.Info("oracle feed configured", "endpoint", params.OracleEndpoint)
	}

	limiter := server.NewRateLimiter(params.RateLimit.RequestsPerMinute, params.RateLimit.Burst)
	srv := &http.Server{
		Addr:              params.ListenAddress,
		Handler:           server.New(engine, logger, limiter).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("vaultd listening", "address", params.ListenAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

// seedCaps installs the construction-time native limits. Existing non-zero
// configuration wins so restarts do not clobber admin changes.
func seedCaps(manager *state.Manager, params config.Parameters) error {
	deposit, withdraw, err := manager.AssetCaps(vault.NativeAsset)
	if err != nil {
		return err
	}
	if deposit.Sign() == 0 && withdraw.Sign() == 0 {
		if err := manager.SetAssetCaps(vault.NativeAsset, params.NativeDepositCap, params.NativeWithdrawCap); err != nil {
			return fmt.Errorf("set native caps: %w", err)
		}
	}
	usdCap, err := manager.USDCap()
	if err != nil {
		return err
	}
	if usdCap.Sign() == 0 && params.USDCap.Sign() > 0 {
		if err := manager.SetUSDCap(params.USDCap); err != nil {
			return fmt.Errorf("set usd cap: %w", err)
		}
	}
	return nil
}
