package usecase

import (
	"sync"

	"github.com/denggit/crypto-trading/internal/domain"
)

// TradeLog is the append-only history of trade actions plus the per-mint
// buy/sell counters derived from it. Unlike the position store it is shared
// across all mints, so it synchronizes internally.
//
// Counters are monotonic for the life of a mint: a full liquidation does not
// reset them, which keeps round accounting valid if the same token is bought
// again later. Zero-value entries written by reconciliation (corrections and
// zero-cost balance bumps) are excluded, so drift repair never shifts the
// round counters.
type TradeLog struct {
	mu         sync.Mutex
	events     []domain.TradeEvent
	buyCounts  map[string]int
	sellCounts map[string]int
}

func NewTradeLog() *TradeLog {
	return &TradeLog{
		buyCounts:  make(map[string]int),
		sellCounts: make(map[string]int),
	}
}

// Append records an event and updates the counters.
func (l *TradeLog) Append(event domain.TradeEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	l.count(event)
}

func (l *TradeLog) count(event domain.TradeEvent) {
	switch {
	case event.Action == domain.ActionBuy:
		if event.ValueLamports > 0 {
			l.buyCounts[event.Mint]++
		}
	case event.Action == domain.ActionSellCorrection:
		// drift repair, not a round
	case event.Action.IsSell():
		l.sellCounts[event.Mint]++
	}
}

// BuyCount returns the cumulative number of real buys for mint.
func (l *TradeLog) BuyCount(mint string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buyCounts[mint]
}

// SellCount returns the cumulative number of executed sells for mint.
func (l *TradeLog) SellCount(mint string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sellCounts[mint]
}

// Totals returns the number of counted buys and sells across all mints.
func (l *TradeLog) Totals() (buys, sells int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, n := range l.buyCounts {
		buys += n
	}
	for _, n := range l.sellCounts {
		sells += n
	}
	return buys, sells
}

// Events returns a copy of the history in insertion order.
func (l *TradeLog) Events() []domain.TradeEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.TradeEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Len returns the number of recorded events.
func (l *TradeLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Restore replaces the history with a persisted snapshot and rebuilds the
// counters by replaying it.
func (l *TradeLog) Restore(events []domain.TradeEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = make([]domain.TradeEvent, len(events))
	copy(l.events, events)
	l.buyCounts = make(map[string]int)
	l.sellCounts = make(map[string]int)
	for _, e := range l.events {
		l.count(e)
	}
}
