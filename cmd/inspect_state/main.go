// Command inspect_state dumps the persisted snapshots and the trade archive
// for offline inspection. Safe to run while the bot is live: it only reads.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/denggit/crypto-trading/internal/infrastructure/snapshot"
	"github.com/denggit/crypto-trading/internal/infrastructure/storage"
)

func main() {
	snapshotDir := flag.String("snapshot-dir", "data", "snapshot directory")
	archivePath := flag.String("archive", "data/archive.db", "sqlite archive path")
	tradeLimit := flag.Int("trades", 20, "number of archived trades to show")
	flag.Parse()

	snap, err := snapshot.New(*snapshotDir, 1, zap.NewNop())
	if err != nil {
		fmt.Printf("Failed to open snapshots: %v\n", err)
		os.Exit(1)
	}
	defer snap.Close()

	positions, err := snap.LoadPositions()
	if err != nil {
		fmt.Printf("Failed to load positions: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Positions (%d):\n", len(positions))
	for _, p := range positions {
		fmt.Printf("  %s  balance=%d  cost=%d lamports  last_buy=%s\n",
			p.Mint, p.Balance, p.CostLamports, p.LastBuyAt.Format("2006-01-02 15:04:05"))
	}

	events, err := snap.LoadTrades()
	if err != nil {
		fmt.Printf("Failed to load trade log: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nTrade log: %d events\n", len(events))

	store, err := storage.NewSQLiteStore(*archivePath)
	if err != nil {
		fmt.Printf("Failed to open archive: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	trades, err := store.ListTrades(context.Background(), *tradeLimit)
	if err != nil {
		fmt.Printf("Failed to list trades: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nLast %d archived trades:\n", len(trades))
	for _, t := range trades {
		fmt.Printf("  %s  %-16s %s  amount=%d  value=%d lamports\n",
			t.Time.Format("2006-01-02 15:04:05"), t.Action, t.Mint, t.Amount, t.ValueLamports)
	}
}
