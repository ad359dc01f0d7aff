package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/denggit/crypto-trading/internal/domain"
)

// StopLossMonitorConfig carries the stop-loss loop knobs.
type StopLossMonitorConfig struct {
	StopLossROI  float64 // liquidate at or below -StopLossROI
	PollInterval time.Duration
}

// StopLossMonitor polls every held position and fully liquidates any whose
// unrealized ROI fell to or below the negative threshold. Execution failures
// leave the position in place for the next cycle.
type StopLossMonitor struct {
	cfg       StopLossMonitorConfig
	portfolio *PortfolioService
	trader    domain.Trader
	logger    *zap.Logger
}

func NewStopLossMonitor(cfg StopLossMonitorConfig, portfolio *PortfolioService, trader domain.Trader, logger *zap.Logger) *StopLossMonitor {
	return &StopLossMonitor{
		cfg:       cfg,
		portfolio: portfolio,
		trader:    trader,
		logger:    logger,
	}
}

// Run evaluates all positions on every tick until ctx is cancelled.
func (m *StopLossMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	m.logger.Info("stop-loss monitor started",
		zap.Float64("roi_threshold", -m.cfg.StopLossROI))

	for {
		select {
		case <-ticker.C:
			for _, mint := range m.portfolio.Mints() {
				if err := m.Evaluate(ctx, mint); err != nil {
					m.logger.Error("stop-loss evaluation failed",
						zap.String("mint", mint), zap.Error(err))
				}
			}
		case <-ctx.Done():
			m.logger.Info("stop-loss monitor stopped")
			return ctx.Err()
		}
	}
}

// Evaluate checks one mint and force-closes it when the loss threshold is
// breached.
func (m *StopLossMonitor) Evaluate(ctx context.Context, mint string) error {
	pos, ok := m.portfolio.Position(mint)
	if !ok || pos.Balance == 0 || pos.CostLamports == 0 {
		return nil
	}

	quoted, err := m.trader.GetQuote(ctx, mint, domain.WSOLMint, pos.Balance)
	if err != nil {
		return err
	}

	roi := unrealizedROI(quoted, pos.CostLamports)
	if roi > -m.cfg.StopLossROI {
		return nil
	}

	m.logger.Warn("stop-loss triggered",
		zap.String("mint", mint),
		zap.Float64("roi", roi))

	reason := fmt.Sprintf("stop loss at %.1f%%", roi*100)
	return m.portfolio.ForceSellAll(ctx, mint, domain.ActionSellStopLoss, reason)
}
