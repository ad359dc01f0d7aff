package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/denggit/crypto-trading/internal/domain"
)

// SQLiteStore is the queryable archive beside the snapshot files: every trade
// event and daily summary lands here so history can be inspected with plain
// sql tooling while the bot runs. It is written best-effort off the trading
// path; the JSON snapshots remain the crash-recovery source of truth.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			time DATETIME NOT NULL,
			action TEXT NOT NULL,
			mint TEXT NOT NULL,
			amount INTEGER NOT NULL,
			value_lamports INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_mint ON trades(mint);`,
		`CREATE TABLE IF NOT EXISTS daily_summaries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL,
			sol_price_usd REAL NOT NULL,
			wallet_lamports INTEGER NOT NULL,
			holdings_lamports INTEGER NOT NULL,
			total_usd REAL NOT NULL,
			buy_count INTEGER NOT NULL,
			sell_count INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

// ArchiveTrade inserts the event, ignoring duplicates: the caller may retry
// or replay, and the uuid key keeps the archive exactly-once.
func (s *SQLiteStore) ArchiveTrade(ctx context.Context, event domain.TradeEvent) error {
	query := `INSERT OR IGNORE INTO trades (id, time, action, mint, amount, value_lamports)
			  VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		event.ID, event.Time, string(event.Action), event.Mint,
		int64(event.Amount), int64(event.ValueLamports))
	return err
}

func (s *SQLiteStore) ListTrades(ctx context.Context, limit int) ([]domain.TradeEvent, error) {
	query := `SELECT id, time, action, mint, amount, value_lamports FROM trades ORDER BY time DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.TradeEvent
	for rows.Next() {
		var e domain.TradeEvent
		var action string
		var amount, value int64
		if err := rows.Scan(&e.ID, &e.Time, &action, &e.Mint, &amount, &value); err != nil {
			return nil, err
		}
		e.Action = domain.TradeAction(action)
		e.Amount = uint64(amount)
		e.ValueLamports = uint64(value)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) SaveDailySummary(ctx context.Context, summary *domain.DailySummary) error {
	query := `INSERT INTO daily_summaries (date, sol_price_usd, wallet_lamports, holdings_lamports, total_usd, buy_count, sell_count, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query,
		summary.Date, summary.SolPriceUSD, int64(summary.WalletLamports),
		int64(summary.HoldingsLamports), summary.TotalUSD,
		summary.BuyCount, summary.SellCount, summary.CreatedAt)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		summary.ID = id
	}
	return nil
}

func (s *SQLiteStore) ListDailySummaries(ctx context.Context, limit int) ([]*domain.DailySummary, error) {
	query := `SELECT id, date, sol_price_usd, wallet_lamports, holdings_lamports, total_usd, buy_count, sell_count, created_at
			  FROM daily_summaries ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []*domain.DailySummary
	for rows.Next() {
		var d domain.DailySummary
		var wallet, holdings int64
		if err := rows.Scan(&d.ID, &d.Date, &d.SolPriceUSD, &wallet, &holdings, &d.TotalUSD, &d.BuyCount, &d.SellCount, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.WalletLamports = uint64(wallet)
		d.HoldingsLamports = uint64(holdings)
		summaries = append(summaries, &d)
	}
	return summaries, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
