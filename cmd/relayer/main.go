// Command relayer boots the cross-chain HTLC relayer/resolver core:
// it wires config, logging, the two chain clients, the Event
// Monitor, the Lifecycle Manager, the Secret Manager, the Liquidity
// Manager, the Relayer Controller, the Dutch Auction and the HTTP/WS
// API surface, then blocks until an interrupt signal triggers a
// graceful shutdown. Mirrors the teacher's flat, unframeworked
// func main() style (stellar-live-source/main.go, ttp-processor/main.go).
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/api"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/auction"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/chain/evmchain"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/chain/stellarchain"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/config"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/domain"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/eventmonitor"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/lifecycle"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/liquidity"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/liquidity/assetregistry"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/liquidity/balance"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/liquidity/reservation"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/orderstore"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/relayer"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/secretmgr"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := assetregistry.New()
	registerDefaultAssets(registry, logger)

	fetcher := balance.NewMemFetcher()
	balances := balance.New(fetcher, logger, cfg.CacheTTLSeconds)
	reservations := reservation.New(logger)
	liquidityMgr := liquidity.New(registry, balances, reservations, logger, liquidity.DefaultThresholds)

	store := orderstore.NewMemStore()
	secrets := secretmgr.New(store, logger)
	lifecycleMgr := lifecycle.New(store, secrets, logger, cfg.EscrowSafetyMarginSeconds)

	stellarTransport := stellarchain.NewMemTransport()
	stellarClient := stellarchain.NewClient(stellarTransport, logger)
	ethTransport := evmchain.NewMemTransport()
	ethClient := evmchain.NewClient(ethTransport, logger)

	// Both chain clients connect and capture their monitoring tip
	// independently; errgroup lets either failure short-circuit the
	// other without hand-rolled goroutine/channel bookkeeping.
	var bootGroup errgroup.Group
	bootGroup.Go(func() error {
		if err := ethClient.Connect(ctx); err != nil {
			return fmt.Errorf("ethereum client connect: %w", err)
		}
		return ethClient.StartMonitoring(ctx)
	})
	bootGroup.Go(func() error {
		if err := stellarClient.Connect(ctx); err != nil {
			return fmt.Errorf("stellar client connect: %w", err)
		}
		return stellarClient.StartMonitoring(ctx)
	})
	if err := bootGroup.Wait(); err != nil {
		logger.Fatal("chain client bootstrap failed", zap.Error(err))
	}

	monitor := eventmonitor.New(ethClient, stellarClient, logger)
	monitor.Start(ctx)

	broadcaster := eventmonitor.NewBroadcaster()
	relayerEvents := broadcaster.Subscribe()
	go broadcaster.Run(monitor.Events())
	// The Lifecycle Manager publishes derived events (SwapCompletedEvent)
	// on its own channel rather than through a chain client, so it gets
	// its own fan-in into the same broadcaster.
	go broadcaster.Run(lifecycleMgr.Events())

	controller := relayer.New(ethClient, stellarClient, lifecycleMgr, secrets, store, logger)
	go controller.Run(ctx, relayerEvents)

	balances.StartMonitoring(ctx, registry.Keys(), cfg.BalanceUpdateIntervalSeconds)
	reservationStop := make(chan struct{})
	go reservations.StartSweeping(cfg.ReservationCleanupIntervalSeconds, reservationStop)

	dutchAuction := auction.New(store, liquidityMgr, lifecycleMgr, logger, cfg.SafetyDepositBps, cfg.ReservationTimeoutSeconds)

	router := api.NewServer(store, lifecycleMgr, liquidityMgr, dutchAuction, monitor, broadcaster, logger)
	httpServer := &http.Server{Addr: cfg.Port, Handler: router}

	go func() {
		logger.Info("relayer core listening", zap.String("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received, draining")
	close(reservationStop)
	controller.Stop()
	monitor.Stop()
	ethClient.StopMonitoring()
	stellarClient.StopMonitoring()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}
	cancel()
	logger.Info("relayer core stopped")
}

// registerDefaultAssets seeds the registry with the two native assets
// this core ships examples for; a production deployment would load
// this table from its own configuration source, out of scope per
// spec §1.
func registerDefaultAssets(registry *assetregistry.Registry, logger *zap.Logger) {
	defaults := []domain.AssetConfig{
		{
			AssetKey:          domain.AssetKey{Chain: domain.ChainEthereum, Symbol: "ETH"},
			Network:           "mainnet",
			OnChainIdentifier: "native",
			Symbol:            "ETH",
			Decimals:          18,
			IsNative:          true,
		},
		{
			AssetKey:          domain.AssetKey{Chain: domain.ChainStellar, Symbol: "XLM"},
			Network:           "pubnet",
			OnChainIdentifier: "native",
			Symbol:            "XLM",
			Decimals:          7,
			IsNative:          true,
		},
	}
	for _, cfg := range defaults {
		if err := registry.Register(cfg); err != nil {
			logger.Warn("asset registration skipped", zap.Error(err))
		}
	}
}
