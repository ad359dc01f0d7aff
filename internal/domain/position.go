package domain

import "time"

type TradeAction string

const (
	ActionBuy            TradeAction = "BUY"
	ActionSell           TradeAction = "SELL"
	ActionSellForced     TradeAction = "SELL_FORCED"
	ActionSellProfit     TradeAction = "SELL_PROFIT"
	ActionSellStopLoss   TradeAction = "SELL_STOP_LOSS"
	ActionSellCorrection TradeAction = "SELL_CORRECTION"
)

// IsSell reports whether the action reduces a position. Corrections count
// too: they shrink the recorded balance even though no swap happened.
func (a TradeAction) IsSell() bool {
	return a != ActionBuy
}

// Position is the local record for one token we currently hold.
// Balance is kept in raw token units and CostLamports in lamports, exactly as
// reported by the chain, so no decimal conversion ever happens inside the
// ledger. A position whose balance drops under the dust threshold is deleted,
// never kept as a zero row.
type Position struct {
	Mint         string    `json:"mint"`
	Balance      uint64    `json:"balance"`
	CostLamports uint64    `json:"cost_lamports"`
	LastBuyAt    time.Time `json:"last_buy_at"`
}

// TradeEvent is one immutable entry of the append-only trade history.
type TradeEvent struct {
	ID            string      `json:"id"`
	Time          time.Time   `json:"time"`
	Action        TradeAction `json:"action"`
	Mint          string      `json:"mint"`
	Amount        uint64      `json:"amount"`
	ValueLamports uint64      `json:"value_lamports"`
}

// WalletTrade is a validated trade observed on the target wallet. It is the
// typed form of the loose Helius payload; anything that cannot be parsed into
// this shape is dropped at the ingestion boundary.
type WalletTrade struct {
	Action     TradeAction
	Mint       string
	Amount     uint64
	SolSpent   uint64 // lamports the target wallet paid, BUY only
	Signature  string
	ObservedAt time.Time
}
