package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/denggit/crypto-trading/internal/domain"
)

// USDCMint prices SOL for reporting.
const USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

// StatsConfig carries the reporting knobs.
type StatsConfig struct {
	DailyReportHour int // local hour at which the daily summary is sent
}

// StatsService values the portfolio for the reporting surface and sends an
// archived daily summary. Quote failures degrade individual numbers to zero
// rather than failing the whole report.
type StatsService struct {
	cfg       StatsConfig
	portfolio *PortfolioService
	trader    domain.Trader
	archive   domain.TradeArchive
	notifier  domain.Notifier
	logger    *zap.Logger
}

func NewStatsService(cfg StatsConfig, portfolio *PortfolioService, trader domain.Trader, archive domain.TradeArchive, notifier domain.Notifier, logger *zap.Logger) *StatsService {
	return &StatsService{
		cfg:       cfg,
		portfolio: portfolio,
		trader:    trader,
		archive:   archive,
		notifier:  notifier,
		logger:    logger,
	}
}

// Snapshot values every holding at the current quote and totals the wallet.
func (s *StatsService) Snapshot(ctx context.Context) (*domain.PortfolioStats, error) {
	stats := &domain.PortfolioStats{Time: time.Now()}

	// SOL price via a 1 SOL -> USDC quote.
	if usdcOut, err := s.trader.GetQuote(ctx, domain.WSOLMint, USDCMint, 1_000_000_000); err == nil {
		stats.SolPriceUSD = float64(usdcOut) / 1e6
	} else {
		s.logger.Warn("SOL price quote failed", zap.Error(err))
	}

	if lamports, err := s.trader.GetBalanceRaw(ctx, s.trader.WalletAddress(), domain.WSOLMint); err == nil {
		stats.WalletLamports = lamports
	} else {
		s.logger.Warn("wallet balance lookup failed", zap.Error(err))
	}

	for _, pos := range s.portfolio.Positions() {
		holding := domain.Holding{
			Mint:         pos.Mint,
			Balance:      pos.Balance,
			CostLamports: pos.CostLamports,
		}
		if value, err := s.trader.GetQuote(ctx, pos.Mint, domain.WSOLMint, pos.Balance); err == nil {
			holding.ValueLamports = value
			holding.ROI = unrealizedROI(value, pos.CostLamports)
			stats.HoldingsLamports += value
		} else {
			s.logger.Warn("holding quote failed", zap.String("mint", pos.Mint), zap.Error(err))
		}
		stats.Holdings = append(stats.Holdings, holding)
	}

	stats.OpenPositions = len(stats.Holdings)
	stats.TotalBuys, stats.TotalSells = s.portfolio.TradeTotals()
	stats.TotalLamports = stats.WalletLamports + stats.HoldingsLamports
	stats.TotalUSD = float64(stats.TotalLamports) / 1e9 * stats.SolPriceUSD
	return stats, nil
}

// RunDailyReport sleeps until the configured hour each day, then archives and
// sends the summary. Loops until ctx is cancelled.
func (s *StatsService) RunDailyReport(ctx context.Context) error {
	s.logger.Info("daily report scheduler started", zap.Int("hour", s.cfg.DailyReportHour))

	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), s.cfg.DailyReportHour, 0, 0, 0, now.Location())
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		s.logger.Info("next daily report scheduled", zap.Time("at", next))

		select {
		case <-time.After(next.Sub(now)):
			if err := s.SendDailyReport(ctx); err != nil {
				s.logger.Error("daily report failed", zap.Error(err))
			}
		case <-ctx.Done():
			s.logger.Info("daily report scheduler stopped")
			return ctx.Err()
		}
	}
}

// SendDailyReport builds the summary, archives it, and notifies the operator.
func (s *StatsService) SendDailyReport(ctx context.Context) error {
	stats, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}

	summary := &domain.DailySummary{
		Date:             stats.Time.Format("2006-01-02"),
		SolPriceUSD:      stats.SolPriceUSD,
		WalletLamports:   stats.WalletLamports,
		HoldingsLamports: stats.HoldingsLamports,
		TotalUSD:         stats.TotalUSD,
		BuyCount:         stats.TotalBuys,
		SellCount:        stats.TotalSells,
		CreatedAt:        stats.Time,
	}
	if s.archive != nil {
		if err := s.archive.SaveDailySummary(ctx, summary); err != nil {
			s.logger.Warn("daily summary archive failed", zap.Error(err))
		}
	}

	if s.notifier != nil {
		if err := s.notifier.Send(ctx, "Daily portfolio report", formatReport(stats)); err != nil {
			return fmt.Errorf("send daily report: %w", err)
		}
	}
	s.logger.Info("daily report sent",
		zap.Float64("total_usd", stats.TotalUSD),
		zap.Int("open_positions", stats.OpenPositions))
	return nil
}

func formatReport(stats *domain.PortfolioStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Time: %s\n\n", stats.Time.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "SOL price: $%.2f\n", stats.SolPriceUSD)
	fmt.Fprintf(&b, "Wallet: %.4f SOL\n", float64(stats.WalletLamports)/1e9)
	fmt.Fprintf(&b, "Holdings: %.4f SOL\n", float64(stats.HoldingsLamports)/1e9)
	fmt.Fprintf(&b, "Total: %.4f SOL (~$%.2f)\n\n", float64(stats.TotalLamports)/1e9, stats.TotalUSD)
	fmt.Fprintf(&b, "Buys: %d | Sells: %d\n\n", stats.TotalBuys, stats.TotalSells)

	if len(stats.Holdings) == 0 {
		b.WriteString("No open positions.\n")
		return b.String()
	}
	b.WriteString("Open positions:\n")
	for _, h := range stats.Holdings {
		fmt.Fprintf(&b, "- %s: balance %d, value %.4f SOL, ROI %+.1f%%\n",
			shortMint(h.Mint), h.Balance, float64(h.ValueLamports)/1e9, h.ROI*100)
	}
	return b.String()
}

func shortMint(mint string) string {
	if len(mint) <= 8 {
		return mint
	}
	return mint[:8] + "..."
}
