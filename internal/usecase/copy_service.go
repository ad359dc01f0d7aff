package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/denggit/crypto-trading/internal/domain"
)

// CopyConfig carries the buy-side filters applied before a copy buy.
type CopyConfig struct {
	MinTargetSpendLamports uint64
	MaxBuysPerToken        int
	CopyAmountLamports     uint64
	MinLiquidityUSD        float64
	MinFDV                 float64
	MaxFDV                 float64
}

// CopyService consumes validated target-wallet trades and drives the
// portfolio. Buys pass through the pre-trade filters (target spend size,
// liquidity, FDV, per-token cap, own balance margin) before a fixed-size copy
// buy; sells go straight to the mirroring path. Every filter failure or
// error just drops the event.
type CopyService struct {
	cfg       CopyConfig
	portfolio *PortfolioService
	trader    domain.Trader
	risk      domain.RiskChecker
	logger    *zap.Logger
}

func NewCopyService(cfg CopyConfig, portfolio *PortfolioService, trader domain.Trader, risk domain.RiskChecker, logger *zap.Logger) *CopyService {
	return &CopyService{
		cfg:       cfg,
		portfolio: portfolio,
		trader:    trader,
		risk:      risk,
		logger:    logger,
	}
}

// HandleWalletTrade processes one observed target-wallet trade.
func (s *CopyService) HandleWalletTrade(ctx context.Context, trade domain.WalletTrade) error {
	switch trade.Action {
	case domain.ActionBuy:
		return s.handleBuy(ctx, trade)
	case domain.ActionSell:
		return s.portfolio.MirrorSell(ctx, trade.Mint, trade.Amount)
	default:
		return fmt.Errorf("unexpected wallet trade action %q", trade.Action)
	}
}

func (s *CopyService) handleBuy(ctx context.Context, trade domain.WalletTrade) error {
	log := s.logger.With(zap.String("mint", trade.Mint))

	// The target testing the water with a tiny buy is noise, not a signal.
	if trade.SolSpent < s.cfg.MinTargetSpendLamports {
		log.Debug("target buy below minimum spend, ignoring",
			zap.Uint64("sol_spent", trade.SolSpent))
		return nil
	}

	if s.portfolio.BuyCount(trade.Mint) >= s.cfg.MaxBuysPerToken {
		log.Info("per-token buy cap reached, not adding")
		return nil
	}

	if s.risk != nil {
		ok, liquidity, fdv, err := s.risk.CheckToken(ctx, trade.Mint)
		if err != nil {
			return fmt.Errorf("risk check: %w", err)
		}
		if !ok {
			log.Warn("token has no tradable pool, rejected")
			return nil
		}
		if liquidity < s.cfg.MinLiquidityUSD {
			log.Warn("pool liquidity too low, rejected", zap.Float64("liquidity_usd", liquidity))
			return nil
		}
		if fdv < s.cfg.MinFDV || fdv > s.cfg.MaxFDV {
			log.Warn("FDV outside window, rejected", zap.Float64("fdv_usd", fdv))
			return nil
		}
	}

	// Keep enough SOL for the buy plus fees on the way out.
	balance, err := s.trader.GetBalanceRaw(ctx, s.trader.WalletAddress(), domain.WSOLMint)
	if err != nil {
		return fmt.Errorf("own SOL balance lookup: %w", err)
	}
	if balance < s.cfg.CopyAmountLamports*2 {
		log.Warn("insufficient SOL margin, pausing buys",
			zap.Uint64("balance_lamports", balance))
		return nil
	}

	bought, err := s.portfolio.ExecuteCopyBuy(ctx, trade.Mint)
	if err != nil {
		return err
	}
	if bought {
		log.Info("copy buy complete", zap.String("signature", trade.Signature))
	}
	return nil
}
