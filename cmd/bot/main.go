package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/denggit/crypto-trading/internal/config"
	"github.com/denggit/crypto-trading/internal/domain"
	"github.com/denggit/crypto-trading/internal/infrastructure/chain"
	"github.com/denggit/crypto-trading/internal/infrastructure/exchange"
	"github.com/denggit/crypto-trading/internal/infrastructure/logger"
	"github.com/denggit/crypto-trading/internal/infrastructure/notify"
	"github.com/denggit/crypto-trading/internal/infrastructure/risk"
	"github.com/denggit/crypto-trading/internal/infrastructure/snapshot"
	"github.com/denggit/crypto-trading/internal/infrastructure/storage"
	"github.com/denggit/crypto-trading/internal/usecase"
	"github.com/denggit/crypto-trading/internal/web"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var log *zap.Logger
	if cfg.Logging.File != "" {
		log, err = logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	} else {
		log, err = logger.NewLogger(cfg.Logging.Level)
	}
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	snap, err := snapshot.New(cfg.Storage.SnapshotDir, 2, log)
	if err != nil {
		log.Fatal("Failed to init snapshot store", zap.Error(err))
	}

	archive, err := storage.NewSQLiteStore(cfg.Storage.ArchivePath)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}

	wallet, err := exchange.NewWallet(cfg.Wallet.PrivateKey)
	if err != nil {
		log.Fatal("Failed to load wallet", zap.Error(err))
	}
	if wallet.Address() != cfg.Wallet.Address {
		log.Fatal("WALLET_ADDRESS does not match the private key",
			zap.String("derived", wallet.Address()))
	}

	rpcURL := cfg.RPC.Endpoint
	if cfg.RPC.APIKey != "" {
		rpcURL += "/?api-key=" + cfg.RPC.APIKey
	}
	rpc := exchange.NewRPCClient(rpcURL)
	trader := exchange.NewJupiterTrader(cfg.Jupiter.QuoteURL, cfg.Jupiter.SwapURL, cfg.Jupiter.APIKey, rpc, wallet, log)

	var notifier domain.Notifier = notify.NopNotifier{}
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != "" {
		notifier = notify.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID)
	}

	tasks := usecase.NewTaskRunner(4, 256, log)

	s := cfg.Strategy
	portfolio := usecase.NewPortfolioService(usecase.PortfolioConfig{
		TargetWallet:         cfg.Wallet.TargetWallet,
		CopyAmountLamports:   s.CopyAmountLamports,
		MaxBuysPerToken:      s.MaxBuysPerToken,
		SlippageBuyBps:       s.SlippageBuyBps,
		SlippageSellBps:      s.SlippageSellBps,
		DustBalance:          s.DustBalance,
		MinSellAmount:        s.MinSellAmount,
		MinSellValueLamports: s.MinSellValueLamports,
		TakeProfitSellPct:    s.TakeProfitSellPct,
		ReconcileGracePeriod: s.ReconcileGracePeriod.Duration,
		ReconcileTolerance:   s.ReconcileTolerance,
		Exit: usecase.ExitConfig{
			NearTotalRatio: s.NearTotalExitRatio,
			TinySellRatio:  s.TinySellExemptRatio,
		},
	}, trader, snap, archive, notifier, tasks, nil, log)

	if err := portfolio.Restore(); err != nil {
		log.Fatal("Failed to restore portfolio", zap.Error(err))
	}

	copySvc := usecase.NewCopyService(usecase.CopyConfig{
		MinTargetSpendLamports: s.MinTargetSpendLamports,
		MaxBuysPerToken:        s.MaxBuysPerToken,
		CopyAmountLamports:     s.CopyAmountLamports,
		MinLiquidityUSD:        cfg.Risk.MinLiquidityUSD,
		MinFDV:                 cfg.Risk.MinFDV,
		MaxFDV:                 cfg.Risk.MaxFDV,
	}, portfolio, trader, risk.NewDexScreenerChecker(), log)

	monitor := chain.NewWalletMonitor(
		cfg.RPC.WSEndpoint, cfg.RPC.TxEndpoint, cfg.RPC.APIKey, cfg.Wallet.TargetWallet,
		func(ctx context.Context, trade domain.WalletTrade) {
			if err := copySvc.HandleWalletTrade(ctx, trade); err != nil {
				log.Error("Failed to handle wallet trade",
					zap.String("mint", trade.Mint), zap.Error(err))
			}
		}, log)

	profit := usecase.NewProfitMonitor(usecase.ProfitMonitorConfig{
		TakeProfitROI: s.TakeProfitROI,
		PollInterval:  s.ProfitPollInterval.Duration,
		Cooldown:      s.ProfitCooldown.Duration,
	}, portfolio, trader, nil, log)

	stopLoss := usecase.NewStopLossMonitor(usecase.StopLossMonitorConfig{
		StopLossROI:  s.StopLossROI,
		PollInterval: s.StopLossPollInterval.Duration,
	}, portfolio, trader, log)

	reconciler := usecase.NewReconciler(usecase.ReconcilerConfig{
		TargetWallet:   cfg.Wallet.TargetWallet,
		Interval:       s.WatchdogInterval.Duration,
		ConfirmDelay:   s.WatchdogConfirmDelay.Duration,
		MinTargetValue: s.MinSellValueLamports,
	}, portfolio, trader, log)

	stats := usecase.NewStatsService(usecase.StatsConfig{
		DailyReportHour: s.DailyReportHour,
	}, portfolio, trader, archive, notifier, log)

	server := web.NewServer(cfg.Server.Port, portfolio, stats, archive, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return monitor.Run(gctx) })
	g.Go(func() error { return profit.Run(gctx) })
	g.Go(func() error { return stopLoss.Run(gctx) })
	g.Go(func() error { return reconciler.Run(gctx) })
	g.Go(func() error { return stats.RunDailyReport(gctx) })
	g.Go(func() error { return server.Start() })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	log.Info("bot started",
		zap.String("wallet", wallet.Address()),
		zap.String("target", cfg.Wallet.TargetWallet))

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error("bot stopped with error", zap.Error(err))
	}

	log.Info("Shutting down...")
	tasks.Close()
	snap.Close()
	if err := archive.Close(); err != nil {
		log.Error("Failed to close archive", zap.Error(err))
	}
}
