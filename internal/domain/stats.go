package domain

import "time"

// PortfolioStats is the live summary exposed to the reporting server.
type PortfolioStats struct {
	Time             time.Time `json:"time"`
	SolPriceUSD      float64   `json:"sol_price_usd"`
	WalletLamports   uint64    `json:"wallet_lamports"`
	HoldingsLamports uint64    `json:"holdings_lamports"`
	TotalLamports    uint64    `json:"total_lamports"`
	TotalUSD         float64   `json:"total_usd"`
	OpenPositions    int       `json:"open_positions"`
	TotalBuys        int       `json:"total_buys"`
	TotalSells       int       `json:"total_sells"`
	Holdings         []Holding `json:"holdings"`
}

// Holding is one position valued at the current quote.
type Holding struct {
	Mint          string  `json:"mint"`
	Balance       uint64  `json:"balance"`
	CostLamports  uint64  `json:"cost_lamports"`
	ValueLamports uint64  `json:"value_lamports"`
	ROI           float64 `json:"roi"`
}

// DailySummary is the archived end-of-day report.
type DailySummary struct {
	ID               int64     `json:"id"`
	Date             string    `json:"date"`
	SolPriceUSD      float64   `json:"sol_price_usd"`
	WalletLamports   uint64    `json:"wallet_lamports"`
	HoldingsLamports uint64    `json:"holdings_lamports"`
	TotalUSD         float64   `json:"total_usd"`
	BuyCount         int       `json:"buy_count"`
	SellCount        int       `json:"sell_count"`
	CreatedAt        time.Time `json:"created_at"`
}
