package domain

import (
	"context"
	"time"
)

// WSOLMint is the wrapped SOL mint, used as the quote currency everywhere.
const WSOLMint = "So11111111111111111111111111111111111111112"

// Trader executes swaps and answers balance/quote oracles. Implementations
// must treat every method as fallible network I/O: a returned error means
// "unknown right now", which callers handle as skip-and-retry, never as zero.
type Trader interface {
	// GetQuote returns the estimated amount of outputMint received for
	// amount of inputMint.
	GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64) (uint64, error)
	// ExecuteSwap swaps amount of inputMint into outputMint and returns the
	// estimated out amount. An error means the swap was not executed.
	ExecuteSwap(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (uint64, error)
	// GetBalanceRaw returns the owner's confirmed balance of mint in raw
	// units (lamports for WSOL). A confirmed zero balance is (0, nil); a
	// lookup failure is an error.
	GetBalanceRaw(ctx context.Context, owner, mint string) (uint64, error)
	// CloseTokenAccount reclaims the rent of an emptied token account.
	// Best effort; failures are logged by the implementation.
	CloseTokenAccount(ctx context.Context, mint string) error
	// WalletAddress returns the public key of the trading wallet.
	WalletAddress() string
}

// RiskChecker screens a token before the first copy buy.
type RiskChecker interface {
	// CheckToken returns the best pool's liquidity and FDV in USD.
	// ok=false means the token has no tradable pool at all.
	CheckToken(ctx context.Context, mint string) (ok bool, liquidityUSD, fdvUSD float64, err error)
}

// Notifier delivers operator alerts. Delivery is best effort and must never
// block or fail a trading path.
type Notifier interface {
	Send(ctx context.Context, title, message string) error
}

// TradeArchive is the queryable history store, kept outside the hot path.
type TradeArchive interface {
	ArchiveTrade(ctx context.Context, event TradeEvent) error
	ListTrades(ctx context.Context, limit int) ([]TradeEvent, error)
	SaveDailySummary(ctx context.Context, summary *DailySummary) error
	ListDailySummaries(ctx context.Context, limit int) ([]*DailySummary, error)
}

// SnapshotStore persists the portfolio state crash-safely. Save methods are
// asynchronous: they schedule a write of the given point-in-time copy and
// return immediately.
type SnapshotStore interface {
	SavePositions(positions map[string]Position)
	SaveTrades(events []TradeEvent)
	LoadPositions() (map[string]Position, error)
	LoadTrades() ([]TradeEvent, error)
}

// Clock abstracts time for the monitors so cooldown/grace logic is testable.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
