package tests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/denggit/crypto-trading/internal/domain"
	"github.com/denggit/crypto-trading/internal/infrastructure/snapshot"
	"github.com/denggit/crypto-trading/internal/usecase"
)

const meme = "MemeMint1111111111111111111111111111111111"

func TestCopyThenMirrorThenForcedExit(t *testing.T) {
	ctx := context.Background()
	bot := NewBot()
	bot.Market.PriceLamports[meme] = 1000 // 1 lamport per raw unit

	// Target buys with 2 SOL; we copy with our fixed 0.1 SOL.
	require.NoError(t, bot.TargetBuy(ctx, meme, 1_000_000, 2_000_000_000))

	pos, ok := bot.Portfolio.Position(meme)
	require.True(t, ok)
	require.Equal(t, uint64(100_000_000), pos.Balance)
	require.Equal(t, uint64(100_000_000), pos.CostLamports)

	// Target sells half; we mirror the ratio and keep per-unit entry cost.
	require.NoError(t, bot.TargetSell(ctx, meme, 500_000))

	pos, _ = bot.Portfolio.Position(meme)
	require.Equal(t, uint64(50_000_000), pos.Balance)
	require.Equal(t, uint64(50_000_000), pos.CostLamports)

	// Target dumps the rest; near-total circuit breaker closes us fully.
	require.NoError(t, bot.TargetSell(ctx, meme, 500_000))

	_, ok = bot.Portfolio.Position(meme)
	require.False(t, ok)

	history := bot.Portfolio.History()
	require.Len(t, history, 3)
	require.Equal(t, domain.ActionBuy, history[0].Action)
	require.Equal(t, domain.ActionSell, history[1].Action)
	require.Equal(t, domain.ActionSellForced, history[2].Action)
}

func TestFinalRoundClosesAfterEqualSells(t *testing.T) {
	ctx := context.Background()
	bot := NewBot()
	bot.Market.PriceLamports[meme] = 1000

	for i := 0; i < 3; i++ {
		require.NoError(t, bot.TargetBuy(ctx, meme, 1_000_000, 2_000_000_000))
	}
	require.Equal(t, 3, bot.Portfolio.BuyCount(meme))
	pos, _ := bot.Portfolio.Position(meme)
	require.Equal(t, uint64(300_000_000), pos.Balance)

	// Two mid-round sells mirror proportionally.
	require.NoError(t, bot.TargetSell(ctx, meme, 600_000)) // 20% of 3,000,000
	require.NoError(t, bot.TargetSell(ctx, meme, 480_000)) // 20% of 2,400,000

	pos, ok := bot.Portfolio.Position(meme)
	require.True(t, ok)
	require.Equal(t, 2, bot.Portfolio.SellCount(meme))

	// Third sell against three buys: the final-round breaker fires even
	// though the target kept most of its holding.
	require.NoError(t, bot.TargetSell(ctx, meme, 576_000)) // 30% of 1,920,000

	_, ok = bot.Portfolio.Position(meme)
	require.False(t, ok)

	history := bot.Portfolio.History()
	require.Equal(t, domain.ActionSellForced, history[len(history)-1].Action)
}

func TestTinySellsExemptUntilOverrun(t *testing.T) {
	ctx := context.Background()
	bot := NewBot()
	bot.Market.PriceLamports[meme] = 1000

	require.NoError(t, bot.TargetBuy(ctx, meme, 1_000_000, 2_000_000_000))

	// Two 2% test-the-water sells are mirrored without forcing a close.
	require.NoError(t, bot.TargetSell(ctx, meme, 20_000))
	require.NoError(t, bot.TargetSell(ctx, meme, 19_600))

	pos, ok := bot.Portfolio.Position(meme)
	require.True(t, ok)
	require.Less(t, pos.Balance, uint64(100_000_000))
	require.Equal(t, 2, bot.Portfolio.SellCount(meme))

	// The third sell pushes past the allowed round count and closes everything.
	require.NoError(t, bot.TargetSell(ctx, meme, 19_208))

	_, ok = bot.Portfolio.Position(meme)
	require.False(t, ok)
	history := bot.Portfolio.History()
	require.Equal(t, domain.ActionSellForced, history[len(history)-1].Action)
}

func TestBuyCapAcrossRepeatedTargetBuys(t *testing.T) {
	ctx := context.Background()
	bot := NewBot()
	bot.Market.PriceLamports[meme] = 1000

	for i := 0; i < 5; i++ {
		require.NoError(t, bot.TargetBuy(ctx, meme, 1_000_000, 2_000_000_000))
	}

	require.Equal(t, 3, bot.Portfolio.BuyCount(meme))
	pos, _ := bot.Portfolio.Position(meme)
	require.Equal(t, uint64(300_000_000), pos.Balance)
}

func TestRestartRecoversFromDiskSnapshots(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	snapStore, err := snapshot.New(dir, 1, zap.NewNop())
	require.NoError(t, err)

	market := NewFakeMarket()
	market.PriceLamports[meme] = 1000

	bot := NewBotWith(market, snapStore)
	require.NoError(t, bot.TargetBuy(ctx, meme, 1_000_000, 2_000_000_000))
	require.NoError(t, bot.TargetSell(ctx, meme, 500_000))
	snapStore.Close()

	// Simulated restart: fresh services over the same snapshot directory.
	reopened, err := snapshot.New(dir, 1, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	restarted := NewBotWith(market, reopened)
	require.NoError(t, restarted.Portfolio.Restore())

	pos, ok := restarted.Portfolio.Position(meme)
	require.True(t, ok)
	require.Equal(t, uint64(50_000_000), pos.Balance)
	require.Equal(t, uint64(50_000_000), pos.CostLamports)
	require.Equal(t, 1, restarted.Portfolio.BuyCount(meme))
	require.Equal(t, 1, restarted.Portfolio.SellCount(meme))
	require.Len(t, restarted.Portfolio.History(), 2)
}

func TestWatchdogClosesAfterMissedSell(t *testing.T) {
	ctx := context.Background()
	bot := NewBot()
	bot.Market.PriceLamports[meme] = 1000

	require.NoError(t, bot.TargetBuy(ctx, meme, 1_000_000, 2_000_000_000))

	// The target exits entirely but the sell notification never reaches us.
	bot.Market.TargetSells(meme, 1_000_000)

	rec := usecase.NewReconciler(usecase.ReconcilerConfig{
		TargetWallet:   "target-wallet",
		ConfirmDelay:   0,
		MinTargetValue: 1_000_000,
	}, bot.Portfolio, bot.Market, zap.NewNop())

	require.NoError(t, rec.CheckTargetExit(ctx, meme))

	_, ok := bot.Portfolio.Position(meme)
	require.False(t, ok)
	history := bot.Portfolio.History()
	require.Equal(t, domain.ActionSellForced, history[len(history)-1].Action)
}
