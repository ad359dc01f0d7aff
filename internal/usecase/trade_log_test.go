package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/denggit/crypto-trading/internal/domain"
	"github.com/denggit/crypto-trading/internal/usecase"
)

func TestTradeLogCountsRealBuysAndSells(t *testing.T) {
	log := usecase.NewTradeLog()

	log.Append(domain.TradeEvent{Action: domain.ActionBuy, Mint: "mintA", ValueLamports: 100})
	log.Append(domain.TradeEvent{Action: domain.ActionSell, Mint: "mintA", ValueLamports: 40})
	log.Append(domain.TradeEvent{Action: domain.ActionSellProfit, Mint: "mintA", ValueLamports: 60})
	log.Append(domain.TradeEvent{Action: domain.ActionSellStopLoss, Mint: "mintA", ValueLamports: 10})
	log.Append(domain.TradeEvent{Action: domain.ActionSellForced, Mint: "mintA", ValueLamports: 10})

	require.Equal(t, 1, log.BuyCount("mintA"))
	require.Equal(t, 4, log.SellCount("mintA"))
}

func TestTradeLogExcludesReconciliationEntries(t *testing.T) {
	log := usecase.NewTradeLog()

	log.Append(domain.TradeEvent{Action: domain.ActionBuy, Mint: "mintA", ValueLamports: 100})
	// Drift repair entries: a correction and a zero-cost balance bump.
	log.Append(domain.TradeEvent{Action: domain.ActionSellCorrection, Mint: "mintA", Amount: 50})
	log.Append(domain.TradeEvent{Action: domain.ActionBuy, Mint: "mintA", Amount: 20, ValueLamports: 0})

	require.Equal(t, 1, log.BuyCount("mintA"))
	require.Equal(t, 0, log.SellCount("mintA"))
	require.Equal(t, 3, log.Len())
}

func TestTradeLogTotalsAcrossMints(t *testing.T) {
	log := usecase.NewTradeLog()

	log.Append(domain.TradeEvent{Action: domain.ActionBuy, Mint: "mintA", ValueLamports: 100})
	log.Append(domain.TradeEvent{Action: domain.ActionBuy, Mint: "mintB", ValueLamports: 100})
	log.Append(domain.TradeEvent{Action: domain.ActionSell, Mint: "mintB", ValueLamports: 50})

	buys, sells := log.Totals()
	require.Equal(t, 2, buys)
	require.Equal(t, 1, sells)
}

func TestTradeLogRestoreReplaysCounters(t *testing.T) {
	events := []domain.TradeEvent{
		{Action: domain.ActionBuy, Mint: "mintA", ValueLamports: 100},
		{Action: domain.ActionBuy, Mint: "mintA", ValueLamports: 100},
		{Action: domain.ActionSell, Mint: "mintA", ValueLamports: 40},
		{Action: domain.ActionSellCorrection, Mint: "mintA", Amount: 5},
	}

	log := usecase.NewTradeLog()
	log.Restore(events)

	require.Equal(t, 2, log.BuyCount("mintA"))
	require.Equal(t, 1, log.SellCount("mintA"))
	require.Equal(t, len(events), log.Len())

	// The returned history is a copy; mutating it must not affect the log.
	got := log.Events()
	got[0].Mint = "other"
	require.Equal(t, "mintA", log.Events()[0].Mint)
}
