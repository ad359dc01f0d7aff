package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/denggit/crypto-trading/internal/domain"
)

// PortfolioConfig carries the knobs the portfolio service needs.
type PortfolioConfig struct {
	TargetWallet         string
	CopyAmountLamports   uint64
	MaxBuysPerToken      int
	SlippageBuyBps       int
	SlippageSellBps      int
	DustBalance          uint64
	MinSellAmount        uint64
	MinSellValueLamports uint64
	TakeProfitSellPct    float64
	ReconcileGracePeriod time.Duration
	ReconcileTolerance   float64
	Exit                 ExitConfig
}

// PortfolioService owns the position ledger: the in-memory position store,
// the append-only trade log and the per-mint locks that serialize every
// mutation. All trading paths (copy buy, mirrored sell, take-profit,
// stop-loss, reconciliation, forced exits) go through here.
//
// Locking discipline: a mint's mutex is held for the whole read-modify-write
// of that mint, including the swap submission itself; the short service-level
// RWMutex only guards map structure so that monitors can iterate while other
// mints are being mutated.
type PortfolioService struct {
	cfg      PortfolioConfig
	store    *PositionStore
	log      *TradeLog
	locks    *KeyMutexes
	exit     *ExitEngine
	trader   domain.Trader
	snap     domain.SnapshotStore
	archive  domain.TradeArchive
	notifier domain.Notifier
	tasks    *TaskRunner
	clock    domain.Clock
	logger   *zap.Logger

	mu sync.RWMutex // guards store map structure
}

func NewPortfolioService(
	cfg PortfolioConfig,
	trader domain.Trader,
	snap domain.SnapshotStore,
	archive domain.TradeArchive,
	notifier domain.Notifier,
	tasks *TaskRunner,
	clock domain.Clock,
	logger *zap.Logger,
) *PortfolioService {
	if clock == nil {
		clock = domain.RealClock{}
	}
	return &PortfolioService{
		cfg:      cfg,
		store:    NewPositionStore(),
		log:      NewTradeLog(),
		locks:    NewKeyMutexes(),
		exit:     NewExitEngine(cfg.Exit),
		trader:   trader,
		snap:     snap,
		archive:  archive,
		notifier: notifier,
		tasks:    tasks,
		clock:    clock,
		logger:   logger,
	}
}

// Restore loads the last persisted snapshots. Unreadable snapshots degrade to
// an empty state: the ledger is a reconstructible cache of on-chain truth,
// not the sole record.
func (s *PortfolioService) Restore() error {
	positions, err := s.snap.LoadPositions()
	if err != nil {
		s.logger.Warn("position snapshot unreadable, starting empty", zap.Error(err))
		positions = nil
	}
	events, err := s.snap.LoadTrades()
	if err != nil {
		s.logger.Warn("trade snapshot unreadable, starting empty", zap.Error(err))
		events = nil
	}

	s.mu.Lock()
	s.store.Restore(positions)
	s.mu.Unlock()
	s.log.Restore(events)

	s.logger.Info("portfolio restored",
		zap.Int("positions", len(positions)),
		zap.Int("trade_events", len(events)))
	return nil
}

// Position returns a copy of the position for mint.
func (s *PortfolioService) Position(mint string) (domain.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Get(mint)
}

// Positions returns all open positions ordered by mint.
func (s *PortfolioService) Positions() []domain.Position {
	s.mu.RLock()
	snapshot := s.store.Snapshot()
	s.mu.RUnlock()

	out := make([]domain.Position, 0, len(snapshot))
	for _, p := range snapshot {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mint < out[j].Mint })
	return out
}

// Mints returns the mints currently held.
func (s *PortfolioService) Mints() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Mints()
}

// History returns the trade log in insertion order.
func (s *PortfolioService) History() []domain.TradeEvent { return s.log.Events() }

// PositionCost returns the recorded cost basis for mint in lamports.
func (s *PortfolioService) PositionCost(mint string) uint64 {
	p, _ := s.Position(mint)
	return p.CostLamports
}

func (s *PortfolioService) BuyCount(mint string) int  { return s.log.BuyCount(mint) }
func (s *PortfolioService) SellCount(mint string) int { return s.log.SellCount(mint) }

// TradeTotals returns the cumulative counted buys and sells across all mints.
func (s *PortfolioService) TradeTotals() (buys, sells int) { return s.log.Totals() }

// ExecuteCopyBuy performs one fixed-size copy buy of mint. The per-token buy
// cap is re-checked under the mint lock because the caller's pre-check ran
// unlocked. Returns whether a buy was executed.
func (s *PortfolioService) ExecuteCopyBuy(ctx context.Context, mint string) (bool, error) {
	lock := s.locks.Get(mint)
	lock.Lock()
	defer lock.Unlock()

	if s.log.BuyCount(mint) >= s.cfg.MaxBuysPerToken {
		return false, nil
	}

	out, err := s.trader.ExecuteSwap(ctx, domain.WSOLMint, mint, s.cfg.CopyAmountLamports, s.cfg.SlippageBuyBps)
	if err != nil {
		return false, fmt.Errorf("copy buy swap: %w", err)
	}

	now := s.clock.Now()
	s.mu.Lock()
	s.store.AddBuy(mint, out, s.cfg.CopyAmountLamports, now)
	s.mu.Unlock()

	s.appendAndPersist(domain.TradeEvent{
		ID:            uuid.NewString(),
		Time:          now,
		Action:        domain.ActionBuy,
		Mint:          mint,
		Amount:        out,
		ValueLamports: s.cfg.CopyAmountLamports,
	})

	s.logger.Info("copy buy recorded",
		zap.String("mint", mint),
		zap.Uint64("amount", out),
		zap.Uint64("cost_lamports", s.cfg.CopyAmountLamports),
		zap.Int("buy_count", s.log.BuyCount(mint)))

	if s.log.BuyCount(mint) == 1 {
		s.notify("First buy", fmt.Sprintf("Copied first buy of %s\namount: %d\ncost: %d lamports", mint, out, s.cfg.CopyAmountLamports))
	}
	return true, nil
}

// MirrorSell reacts to an observed target-wallet sell of soldAmount raw units
// of mint. It fetches the target's remaining balance, runs the exit decision,
// and liquidates the decided fraction of the local position. Execution
// failures drop the event without mutating state; a missed sell is later
// caught by the watchdog.
func (s *PortfolioService) MirrorSell(ctx context.Context, mint string, soldAmount uint64) error {
	if pos, ok := s.Position(mint); !ok || pos.Balance == 0 {
		s.logger.Debug("target sold a token we do not hold", zap.String("mint", mint))
		return nil
	}

	// Oracle read before taking the lock; the decision re-reads local state
	// after acquisition.
	targetRemaining, err := s.trader.GetBalanceRaw(ctx, s.cfg.TargetWallet, mint)
	if err != nil {
		return fmt.Errorf("target balance lookup: %w", err)
	}

	lock := s.locks.Get(mint)
	lock.Lock()
	defer lock.Unlock()

	pos, ok := s.Position(mint)
	if !ok || pos.Balance == 0 {
		return nil
	}

	dec := s.exit.Decide(soldAmount, targetRemaining, s.log.BuyCount(mint), s.log.SellCount(mint))

	amount := pos.Balance
	if !dec.Forced {
		amount = uint64(float64(pos.Balance) * dec.Ratio)
	}
	if amount < s.cfg.MinSellAmount {
		s.logger.Debug("mirror sell below minimum amount, skipping",
			zap.String("mint", mint), zap.Uint64("amount", amount))
		return nil
	}

	quoted, err := s.trader.GetQuote(ctx, mint, domain.WSOLMint, amount)
	if err != nil {
		return fmt.Errorf("sell quote: %w", err)
	}
	if quoted < s.cfg.MinSellValueLamports {
		s.logger.Info("mirror sell proceeds below dust value, skipping",
			zap.String("mint", mint),
			zap.Uint64("quoted_lamports", quoted))
		return nil
	}

	proceeds, err := s.trader.ExecuteSwap(ctx, mint, domain.WSOLMint, amount, s.cfg.SlippageSellBps)
	if err != nil {
		s.logger.Error("mirror sell swap failed, dropping event",
			zap.String("mint", mint), zap.Error(err))
		return nil
	}

	action := domain.ActionSell
	if dec.Forced {
		action = domain.ActionSellForced
		s.logger.Warn("forced full liquidation",
			zap.String("mint", mint),
			zap.String("reason", string(dec.Reason)))
	}

	removed := s.applySellLocked(mint, amount, proceeds, action, !dec.Forced)

	s.logger.Info("mirror sell executed",
		zap.String("mint", mint),
		zap.Uint64("amount", amount),
		zap.Float64("ratio", dec.Ratio),
		zap.Uint64("proceeds_lamports", proceeds),
		zap.Bool("position_closed", removed))

	s.notify("Mirror sell", fmt.Sprintf("Sold %d of %s (%.1f%% of holding)\nproceeds: %d lamports", amount, mint, dec.Ratio*100, proceeds))
	return nil
}

// ForceSellAll liquidates the entire position in one swap and deletes the
// record. Used by the stop-loss monitor and the disconnect watchdog; no dust
// guard applies because the point is to get out. Swap failure leaves state
// untouched so the caller can retry on its next cycle.
func (s *PortfolioService) ForceSellAll(ctx context.Context, mint string, action domain.TradeAction, reason string) error {
	lock := s.locks.Get(mint)
	lock.Lock()
	defer lock.Unlock()

	pos, ok := s.Position(mint)
	if !ok || pos.Balance == 0 {
		return nil
	}

	proceeds, err := s.trader.ExecuteSwap(ctx, mint, domain.WSOLMint, pos.Balance, s.cfg.SlippageSellBps)
	if err != nil {
		return fmt.Errorf("force sell swap: %w", err)
	}

	s.applySellLocked(mint, pos.Balance, proceeds, action, false)

	s.logger.Warn("position force-closed",
		zap.String("mint", mint),
		zap.String("action", string(action)),
		zap.String("reason", reason),
		zap.Uint64("amount", pos.Balance),
		zap.Uint64("proceeds_lamports", proceeds))

	s.notify("Position closed: "+reason, fmt.Sprintf("Sold all %d of %s\nproceeds: %d lamports", pos.Balance, mint, proceeds))
	return nil
}

// TakeProfitSell sells the configured fraction of the position and leaves the
// cost basis untouched, so future ROI checks on the remainder still reference
// the original entry cost. If the remainder would be worth less than the
// minimum sell value, the whole position is sold instead. quotedValue is the
// caller's quote for the full current balance; the balance is re-validated
// under the lock and the call aborts if it changed in between.
func (s *PortfolioService) TakeProfitSell(ctx context.Context, mint string, quotedValue uint64, balanceAtQuote uint64) (bool, error) {
	lock := s.locks.Get(mint)
	lock.Lock()
	defer lock.Unlock()

	pos, ok := s.Position(mint)
	if !ok || pos.Balance == 0 || pos.Balance != balanceAtQuote {
		return false, nil
	}

	amount := uint64(float64(pos.Balance) * s.cfg.TakeProfitSellPct)
	residualValue := uint64(float64(quotedValue) * (1 - s.cfg.TakeProfitSellPct))
	if residualValue < s.cfg.MinSellValueLamports {
		amount = pos.Balance
	}
	if amount < s.cfg.MinSellAmount {
		return false, nil
	}

	proceeds, err := s.trader.ExecuteSwap(ctx, mint, domain.WSOLMint, amount, s.cfg.SlippageSellBps)
	if err != nil {
		return false, fmt.Errorf("take profit swap: %w", err)
	}

	removed := s.applySellLocked(mint, amount, proceeds, domain.ActionSellProfit, false)

	s.logger.Info("take profit executed",
		zap.String("mint", mint),
		zap.Uint64("amount", amount),
		zap.Uint64("proceeds_lamports", proceeds),
		zap.Bool("position_closed", removed))

	s.notify("Take profit", fmt.Sprintf("Sold %d of %s\nproceeds: %d lamports", amount, mint, proceeds))
	return true, nil
}

// SyncRealBalance compares the recorded balance for mint against the chain
// and repairs drift beyond the tolerance. A shortfall becomes a zero-value
// correction entry (slippage or transfer tax realized as a loss); a surplus
// becomes a zero-cost buy entry (airdrop or rebase). Both entry kinds are
// excluded from the round counters, so running this twice with no chain
// change writes nothing the second time.
func (s *PortfolioService) SyncRealBalance(ctx context.Context, mint string) error {
	pos, ok := s.Position(mint)
	if !ok {
		return nil
	}
	// Indexers lag right after a buy; give them a grace window.
	if s.clock.Now().Sub(pos.LastBuyAt) < s.cfg.ReconcileGracePeriod {
		return nil
	}

	chainBalance, err := s.trader.GetBalanceRaw(ctx, s.trader.WalletAddress(), mint)
	if err != nil {
		return fmt.Errorf("own balance lookup: %w", err)
	}

	lock := s.locks.Get(mint)
	lock.Lock()
	defer lock.Unlock()

	pos, ok = s.Position(mint)
	if !ok {
		return nil
	}
	if s.clock.Now().Sub(pos.LastBuyAt) < s.cfg.ReconcileGracePeriod {
		return nil
	}
	if chainBalance == pos.Balance {
		return nil
	}

	var diff uint64
	if chainBalance > pos.Balance {
		diff = chainBalance - pos.Balance
	} else {
		diff = pos.Balance - chainBalance
	}
	if pos.Balance > 0 && float64(diff)/float64(pos.Balance) <= s.cfg.ReconcileTolerance {
		return nil
	}

	now := s.clock.Now()
	event := domain.TradeEvent{
		ID:   uuid.NewString(),
		Time: now,
		Mint: mint,
	}

	s.mu.Lock()
	s.store.SetBalance(mint, chainBalance)
	removed := s.store.RemoveIfDust(mint, s.cfg.DustBalance)
	s.mu.Unlock()

	if chainBalance < pos.Balance {
		event.Action = domain.ActionSellCorrection
		event.Amount = diff
	} else {
		event.Action = domain.ActionBuy
		event.Amount = diff
	}
	s.appendAndPersist(event)

	s.logger.Warn("balance drift repaired",
		zap.String("mint", mint),
		zap.Uint64("recorded", pos.Balance),
		zap.Uint64("on_chain", chainBalance),
		zap.String("action", string(event.Action)),
		zap.Bool("position_removed", removed))
	return nil
}

// applySellLocked mutates the store and log after a successful sell. The
// caller must hold the mint lock. proportionalCost shrinks the cost basis by
// the sold fraction; forced and take-profit sells pass false (forced removal
// zeroes it with the row, take-profit deliberately keeps it).
func (s *PortfolioService) applySellLocked(mint string, amount, proceeds uint64, action domain.TradeAction, proportionalCost bool) bool {
	s.mu.Lock()
	if proportionalCost {
		s.store.ReduceProportional(mint, amount)
	} else {
		s.store.Reduce(mint, amount)
	}
	removed := s.store.RemoveIfDust(mint, s.cfg.DustBalance)
	s.mu.Unlock()

	s.appendAndPersist(domain.TradeEvent{
		ID:            uuid.NewString(),
		Time:          s.clock.Now(),
		Action:        action,
		Mint:          mint,
		Amount:        amount,
		ValueLamports: proceeds,
	})

	if removed {
		s.logger.Info("position emptied, scheduling account cleanup", zap.String("mint", mint))
		if s.tasks != nil {
			s.tasks.Submit("close-token-account", func(ctx context.Context) {
				if err := s.trader.CloseTokenAccount(ctx, mint); err != nil {
					s.logger.Warn("token account cleanup failed", zap.String("mint", mint), zap.Error(err))
				}
			})
		}
	}
	return removed
}

// appendAndPersist records the event and schedules snapshot writes of both
// stores. Persistence is asynchronous; in-memory state stays authoritative
// until the write lands.
func (s *PortfolioService) appendAndPersist(event domain.TradeEvent) {
	s.log.Append(event)

	s.mu.RLock()
	positions := s.store.Snapshot()
	s.mu.RUnlock()
	s.snap.SavePositions(positions)
	s.snap.SaveTrades(s.log.Events())

	if s.archive != nil && s.tasks != nil {
		s.tasks.Submit("archive-trade", func(ctx context.Context) {
			if err := s.archive.ArchiveTrade(ctx, event); err != nil {
				s.logger.Warn("trade archive write failed", zap.Error(err))
			}
		})
	}
}

func (s *PortfolioService) notify(title, message string) {
	if s.notifier == nil || s.tasks == nil {
		return
	}
	s.tasks.Submit("notify", func(ctx context.Context) {
		if err := s.notifier.Send(ctx, title, message); err != nil {
			s.logger.Warn("notification failed", zap.String("title", title), zap.Error(err))
		}
	})
}
