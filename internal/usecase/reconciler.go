package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/denggit/crypto-trading/internal/domain"
)

// ReconcilerConfig carries the watchdog/reconciliation knobs.
type ReconcilerConfig struct {
	TargetWallet   string
	Interval       time.Duration
	ConfirmDelay   time.Duration // re-check delay before trusting a zero target balance
	MinTargetValue uint64        // lamports; a target holding quoted below this counts as exited
}

// Reconciler is the safety net that runs outside the live event stream. On
// every cycle it repairs local balance drift against the chain and checks
// whether the target wallet silently exited a token we still hold. It is the
// backstop for sell notifications lost to network blips or subscription gaps.
type Reconciler struct {
	cfg       ReconcilerConfig
	portfolio *PortfolioService
	trader    domain.Trader
	logger    *zap.Logger
}

func NewReconciler(cfg ReconcilerConfig, portfolio *PortfolioService, trader domain.Trader, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		cfg:       cfg,
		portfolio: portfolio,
		trader:    trader,
		logger:    logger,
	}
}

// Run loops until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", zap.Duration("interval", r.cfg.Interval))

	for {
		select {
		case <-ticker.C:
			r.runCycle(ctx)
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return ctx.Err()
		}
	}
}

func (r *Reconciler) runCycle(ctx context.Context) {
	for _, mint := range r.portfolio.Mints() {
		if err := r.portfolio.SyncRealBalance(ctx, mint); err != nil {
			r.logger.Error("balance reconciliation failed",
				zap.String("mint", mint), zap.Error(err))
		}
		if err := r.CheckTargetExit(ctx, mint); err != nil {
			r.logger.Error("target exit check failed",
				zap.String("mint", mint), zap.Error(err))
		}
	}
}

// CheckTargetExit force-closes the local position when the target wallet no
// longer holds the token (confirmed twice, to rule out indexer lag) or when
// its remaining holding is worth less than dust.
func (r *Reconciler) CheckTargetExit(ctx context.Context, mint string) error {
	pos, ok := r.portfolio.Position(mint)
	if !ok || pos.Balance == 0 {
		return nil
	}

	balance, err := r.trader.GetBalanceRaw(ctx, r.cfg.TargetWallet, mint)
	if err != nil {
		return err
	}

	if balance == 0 {
		// A freshly spent account can read as zero for a moment; confirm.
		select {
		case <-time.After(r.cfg.ConfirmDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
		balance, err = r.trader.GetBalanceRaw(ctx, r.cfg.TargetWallet, mint)
		if err != nil {
			return err
		}
		if balance == 0 {
			r.logger.Warn("target wallet no longer holds token we hold, closing",
				zap.String("mint", mint))
			return r.portfolio.ForceSellAll(ctx, mint, domain.ActionSellForced, "target wallet exited")
		}
	}

	if r.cfg.MinTargetValue > 0 {
		quoted, err := r.trader.GetQuote(ctx, mint, domain.WSOLMint, balance)
		if err != nil {
			return err
		}
		if quoted < r.cfg.MinTargetValue {
			r.logger.Warn("target holding is dust, closing",
				zap.String("mint", mint),
				zap.Uint64("target_balance", balance),
				zap.Uint64("quoted_lamports", quoted))
			return r.portfolio.ForceSellAll(ctx, mint, domain.ActionSellForced, "target holding is dust")
		}
	}
	return nil
}
