package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/denggit/crypto-trading/internal/domain"
)

// ProfitMonitorConfig carries the take-profit loop knobs.
type ProfitMonitorConfig struct {
	TakeProfitROI float64       // trigger at or above this unrealized ROI
	PollInterval  time.Duration // evaluation cadence
	Cooldown      time.Duration // silence per mint after a trigger
}

// ProfitMonitor polls every held position and takes partial profit when the
// unrealized ROI crosses the threshold. The position's cost basis is left
// untouched by the partial sell, so the retained remainder (the moonbag)
// keeps being measured against the original entry. A cooldown per mint keeps
// one volatile quote from firing repeatedly.
type ProfitMonitor struct {
	cfg       ProfitMonitorConfig
	portfolio *PortfolioService
	trader    domain.Trader
	clock     domain.Clock
	logger    *zap.Logger

	mu            sync.Mutex
	cooldownUntil map[string]time.Time
}

func NewProfitMonitor(cfg ProfitMonitorConfig, portfolio *PortfolioService, trader domain.Trader, clock domain.Clock, logger *zap.Logger) *ProfitMonitor {
	if clock == nil {
		clock = domain.RealClock{}
	}
	return &ProfitMonitor{
		cfg:           cfg,
		portfolio:     portfolio,
		trader:        trader,
		clock:         clock,
		logger:        logger,
		cooldownUntil: make(map[string]time.Time),
	}
}

// Run evaluates all positions on every tick until ctx is cancelled.
func (m *ProfitMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	m.logger.Info("take-profit monitor started",
		zap.Float64("roi_threshold", m.cfg.TakeProfitROI))

	for {
		select {
		case <-ticker.C:
			for _, mint := range m.portfolio.Mints() {
				if err := m.Evaluate(ctx, mint); err != nil {
					m.logger.Error("take-profit evaluation failed",
						zap.String("mint", mint), zap.Error(err))
				}
			}
		case <-ctx.Done():
			m.logger.Info("take-profit monitor stopped")
			return ctx.Err()
		}
	}
}

// Evaluate checks one mint and triggers a partial sell when the ROI
// threshold is met. Quote failures skip the cycle.
func (m *ProfitMonitor) Evaluate(ctx context.Context, mint string) error {
	if m.inCooldown(mint) {
		return nil
	}

	pos, ok := m.portfolio.Position(mint)
	if !ok || pos.Balance == 0 {
		return nil
	}

	quoted, err := m.trader.GetQuote(ctx, mint, domain.WSOLMint, pos.Balance)
	if err != nil {
		return err
	}

	roi := unrealizedROI(quoted, pos.CostLamports)
	if roi < m.cfg.TakeProfitROI {
		return nil
	}

	m.logger.Warn("take-profit threshold hit",
		zap.String("mint", mint),
		zap.Float64("roi", roi),
		zap.Uint64("quoted_lamports", quoted))

	sold, err := m.portfolio.TakeProfitSell(ctx, mint, quoted, pos.Balance)
	if err != nil {
		return err
	}
	if sold {
		m.startCooldown(mint)
	}
	return nil
}

func (m *ProfitMonitor) inCooldown(mint string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clock.Now().Before(m.cooldownUntil[mint])
}

func (m *ProfitMonitor) startCooldown(mint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cooldownUntil[mint] = m.clock.Now().Add(m.cfg.Cooldown)
}

// unrealizedROI treats an unknown cost basis as break-even.
func unrealizedROI(valueLamports, costLamports uint64) float64 {
	if costLamports == 0 {
		return 0
	}
	return float64(valueLamports)/float64(costLamports) - 1
}
