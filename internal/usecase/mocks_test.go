package usecase_test

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/denggit/crypto-trading/internal/domain"
	"github.com/denggit/crypto-trading/internal/usecase"
)

type swapCall struct {
	InputMint  string
	OutputMint string
	Amount     uint64
}

// MockTrader is a hand-rolled trader double. Behavior is injected through the
// optional function fields; calls are recorded for assertions.
type MockTrader struct {
	mu sync.Mutex

	Wallet    string
	QuoteFn   func(inputMint, outputMint string, amount uint64) (uint64, error)
	SwapFn    func(inputMint, outputMint string, amount uint64, slippageBps int) (uint64, error)
	BalanceFn func(owner, mint string) (uint64, error)

	SwapCalls  []swapCall
	QuoteCalls int
	Closed     []string
}

func (m *MockTrader) WalletAddress() string { return m.Wallet }

func (m *MockTrader) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64) (uint64, error) {
	m.mu.Lock()
	m.QuoteCalls++
	m.mu.Unlock()
	if m.QuoteFn != nil {
		return m.QuoteFn(inputMint, outputMint, amount)
	}
	return amount, nil
}

func (m *MockTrader) ExecuteSwap(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (uint64, error) {
	m.mu.Lock()
	m.SwapCalls = append(m.SwapCalls, swapCall{InputMint: inputMint, OutputMint: outputMint, Amount: amount})
	m.mu.Unlock()
	if m.SwapFn != nil {
		return m.SwapFn(inputMint, outputMint, amount, slippageBps)
	}
	return amount, nil
}

func (m *MockTrader) GetBalanceRaw(ctx context.Context, owner, mint string) (uint64, error) {
	if m.BalanceFn != nil {
		return m.BalanceFn(owner, mint)
	}
	return 0, nil
}

func (m *MockTrader) CloseTokenAccount(ctx context.Context, mint string) error {
	m.mu.Lock()
	m.Closed = append(m.Closed, mint)
	m.mu.Unlock()
	return nil
}

// SellCalls returns the recorded swaps that sold a token back to SOL.
func (m *MockTrader) SellCalls() []swapCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []swapCall
	for _, c := range m.SwapCalls {
		if c.OutputMint == domain.WSOLMint {
			out = append(out, c)
		}
	}
	return out
}

// MockSnapshot keeps the last saved state in memory so restore round trips
// can be tested without touching disk.
type MockSnapshot struct {
	mu        sync.Mutex
	Positions map[string]domain.Position
	Trades    []domain.TradeEvent
}

func (m *MockSnapshot) SavePositions(positions map[string]domain.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Positions = positions
}

func (m *MockSnapshot) SaveTrades(events []domain.TradeEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Trades = events
}

func (m *MockSnapshot) LoadPositions() (map[string]domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Positions, nil
}

func (m *MockSnapshot) LoadTrades() ([]domain.TradeEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Trades, nil
}

// FakeClock is a manually advanced clock.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func nopLogger() *zap.Logger { return zap.NewNop() }

func testPortfolioConfig() usecase.PortfolioConfig {
	return usecase.PortfolioConfig{
		TargetWallet:         "target-wallet",
		CopyAmountLamports:   100,
		MaxBuysPerToken:      3,
		SlippageBuyBps:       1000,
		SlippageSellBps:      2000,
		DustBalance:          10,
		MinSellAmount:        1,
		MinSellValueLamports: 10,
		TakeProfitSellPct:    0.5,
		ReconcileGracePeriod: 2 * time.Minute,
		ReconcileTolerance:   0.005,
		Exit: usecase.ExitConfig{
			NearTotalRatio: 0.90,
			TinySellRatio:  0.05,
		},
	}
}

func newTestPortfolio(trader *MockTrader, clock domain.Clock) (*usecase.PortfolioService, *MockSnapshot) {
	snap := &MockSnapshot{}
	svc := usecase.NewPortfolioService(testPortfolioConfig(), trader, snap, nil, nil, nil, clock, nopLogger())
	return svc, snap
}
