package tests

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/denggit/crypto-trading/internal/domain"
	"github.com/denggit/crypto-trading/internal/usecase"
)

// FakeMarket simulates the target wallet, our wallet and the swap venue in
// one place so scenarios can be driven end to end without any network.
type FakeMarket struct {
	mu sync.Mutex

	// PriceLamports is the value of one raw token unit in lamports, scaled
	// by 1000 to allow fractional prices (1000 = 1 lamport per unit).
	PriceLamports map[string]uint64

	TargetHoldings map[string]uint64 // target wallet balances per mint
	OwnSOL         uint64
	OwnHoldings    map[string]uint64

	SwapCount int
}

func NewFakeMarket() *FakeMarket {
	return &FakeMarket{
		PriceLamports:  make(map[string]uint64),
		TargetHoldings: make(map[string]uint64),
		OwnHoldings:    make(map[string]uint64),
		OwnSOL:         10_000_000_000, // 10 SOL
	}
}

func (f *FakeMarket) value(mint string, amount uint64) uint64 {
	return amount * f.PriceLamports[mint] / 1000
}

// TargetBuys moves the target's balance up; call before feeding the BUY event.
func (f *FakeMarket) TargetBuys(mint string, amount uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TargetHoldings[mint] += amount
}

// TargetSells reduces the target's balance and returns the sold amount.
func (f *FakeMarket) TargetSells(mint string, amount uint64) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if amount > f.TargetHoldings[mint] {
		amount = f.TargetHoldings[mint]
	}
	f.TargetHoldings[mint] -= amount
	return amount
}

func (f *FakeMarket) WalletAddress() string { return "own-wallet" }

func (f *FakeMarket) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if outputMint == domain.WSOLMint {
		return f.value(inputMint, amount), nil
	}
	price := f.PriceLamports[outputMint]
	if price == 0 {
		return 0, nil
	}
	return amount * 1000 / price, nil
}

func (f *FakeMarket) ExecuteSwap(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SwapCount++
	if inputMint == domain.WSOLMint {
		out := amount * 1000 / f.PriceLamports[outputMint]
		f.OwnSOL -= amount
		f.OwnHoldings[outputMint] += out
		return out, nil
	}
	out := f.value(inputMint, amount)
	if f.OwnHoldings[inputMint] >= amount {
		f.OwnHoldings[inputMint] -= amount
	} else {
		f.OwnHoldings[inputMint] = 0
	}
	f.OwnSOL += out
	return out, nil
}

func (f *FakeMarket) GetBalanceRaw(ctx context.Context, owner, mint string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if owner == "target-wallet" {
		return f.TargetHoldings[mint], nil
	}
	if mint == domain.WSOLMint {
		return f.OwnSOL, nil
	}
	return f.OwnHoldings[mint], nil
}

func (f *FakeMarket) CloseTokenAccount(ctx context.Context, mint string) error { return nil }

// FakeRisk approves every token.
type FakeRisk struct{}

func (FakeRisk) CheckToken(ctx context.Context, mint string) (bool, float64, float64, error) {
	return true, 100_000, 1_000_000, nil
}

// MemorySnapshot keeps snapshots in memory.
type MemorySnapshot struct {
	mu        sync.Mutex
	positions map[string]domain.Position
	trades    []domain.TradeEvent
}

func (m *MemorySnapshot) SavePositions(p map[string]domain.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = p
}

func (m *MemorySnapshot) SaveTrades(e []domain.TradeEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = e
}

func (m *MemorySnapshot) LoadPositions() (map[string]domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positions, nil
}

func (m *MemorySnapshot) LoadTrades() ([]domain.TradeEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trades, nil
}

// Bot bundles the wired services for a scenario.
type Bot struct {
	Market    *FakeMarket
	Portfolio *usecase.PortfolioService
	Copy      *usecase.CopyService
}

func NewBot() *Bot {
	return NewBotWith(NewFakeMarket(), &MemorySnapshot{})
}

// NewBotWith wires the services around an existing market and snapshot
// store, used by restart scenarios.
func NewBotWith(market *FakeMarket, snap domain.SnapshotStore) *Bot {
	logger := zap.NewNop()

	portfolio := usecase.NewPortfolioService(usecase.PortfolioConfig{
		TargetWallet:         "target-wallet",
		CopyAmountLamports:   100_000_000, // 0.1 SOL
		MaxBuysPerToken:      3,
		SlippageBuyBps:       1000,
		SlippageSellBps:      2000,
		DustBalance:          100,
		MinSellAmount:        100,
		MinSellValueLamports: 1_000_000,
		TakeProfitSellPct:    0.5,
		ReconcileGracePeriod: 2 * time.Minute,
		ReconcileTolerance:   0.005,
		Exit: usecase.ExitConfig{
			NearTotalRatio: 0.90,
			TinySellRatio:  0.05,
		},
	}, market, snap, nil, nil, nil, nil, logger)

	copySvc := usecase.NewCopyService(usecase.CopyConfig{
		MinTargetSpendLamports: 1_000_000_000,
		MaxBuysPerToken:        3,
		CopyAmountLamports:     100_000_000,
		MinLiquidityUSD:        3000,
		MinFDV:                 0,
		MaxFDV:                 5_000_000,
	}, portfolio, market, FakeRisk{}, logger)

	return &Bot{Market: market, Portfolio: portfolio, Copy: copySvc}
}

// TargetBuy simulates the target buying and the bot observing it.
func (b *Bot) TargetBuy(ctx context.Context, mint string, amount, solSpent uint64) error {
	b.Market.TargetBuys(mint, amount)
	return b.Copy.HandleWalletTrade(ctx, domain.WalletTrade{
		Action:     domain.ActionBuy,
		Mint:       mint,
		Amount:     amount,
		SolSpent:   solSpent,
		ObservedAt: time.Now(),
	})
}

// TargetSell simulates the target selling and the bot observing it.
func (b *Bot) TargetSell(ctx context.Context, mint string, amount uint64) error {
	sold := b.Market.TargetSells(mint, amount)
	return b.Copy.HandleWalletTrade(ctx, domain.WalletTrade{
		Action:     domain.ActionSell,
		Mint:       mint,
		Amount:     sold,
		ObservedAt: time.Now(),
	})
}
