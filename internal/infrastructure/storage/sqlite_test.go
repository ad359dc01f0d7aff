package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/denggit/crypto-trading/internal/domain"
	"github.com/denggit/crypto-trading/internal/infrastructure/storage"
)

func newStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestArchiveTradeIsIdempotent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	event := domain.TradeEvent{
		ID:            "evt-1",
		Time:          time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Action:        domain.ActionBuy,
		Mint:          "mintA",
		Amount:        1000,
		ValueLamports: 100,
	}
	require.NoError(t, store.ArchiveTrade(ctx, event))
	// A replay of the same event must not create a second row.
	require.NoError(t, store.ArchiveTrade(ctx, event))

	trades, err := store.ListTrades(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	require.Equal(t, "evt-1", trades[0].ID)
	require.Equal(t, domain.ActionBuy, trades[0].Action)
	require.Equal(t, uint64(1000), trades[0].Amount)
}

func TestListTradesNewestFirst(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.ArchiveTrade(ctx, domain.TradeEvent{
			ID:     string(rune('a' + i)),
			Time:   base.Add(time.Duration(i) * time.Minute),
			Action: domain.ActionSell,
			Mint:   "mintA",
		}))
	}

	trades, err := store.ListTrades(ctx, 2)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	require.Equal(t, "c", trades[0].ID)
	require.Equal(t, "b", trades[1].ID)
}

func TestDailySummaryRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	summary := &domain.DailySummary{
		Date:             "2025-06-01",
		SolPriceUSD:      150.5,
		WalletLamports:   2_000_000_000,
		HoldingsLamports: 500_000_000,
		TotalUSD:         376.25,
		BuyCount:         4,
		SellCount:        2,
		CreatedAt:        time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveDailySummary(ctx, summary))
	require.NotZero(t, summary.ID)

	summaries, err := store.ListDailySummaries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, "2025-06-01", summaries[0].Date)
	require.Equal(t, uint64(2_000_000_000), summaries[0].WalletLamports)
	require.Equal(t, 4, summaries[0].BuyCount)
}
