package usecase

import (
	"time"

	"github.com/denggit/crypto-trading/internal/domain"
)

// PositionStore is the in-memory map of mint -> position. It is a plain data
// structure: callers are responsible for holding the mint's mutex around every
// read-modify-write sequence (see KeyMutexes) and the owning service guards
// map structure for concurrent iteration.
type PositionStore struct {
	positions map[string]*domain.Position
}

func NewPositionStore() *PositionStore {
	return &PositionStore{positions: make(map[string]*domain.Position)}
}

// AddBuy increases the position's balance and cost, creating it on first buy,
// and stamps the buy time used by the reconciliation grace window.
func (s *PositionStore) AddBuy(mint string, amount, costLamports uint64, now time.Time) {
	p, ok := s.positions[mint]
	if !ok {
		p = &domain.Position{Mint: mint}
		s.positions[mint] = p
	}
	p.Balance += amount
	p.CostLamports += costLamports
	p.LastBuyAt = now
}

// Get returns a copy of the position for mint.
func (s *PositionStore) Get(mint string) (domain.Position, bool) {
	p, ok := s.positions[mint]
	if !ok {
		return domain.Position{}, false
	}
	return *p, true
}

// Mints returns the currently held mints.
func (s *PositionStore) Mints() []string {
	mints := make([]string, 0, len(s.positions))
	for m := range s.positions {
		mints = append(mints, m)
	}
	return mints
}

// ReduceProportional removes amount from the balance and shrinks the cost
// basis by the same fraction, so the remainder keeps its per-unit entry cost.
func (s *PositionStore) ReduceProportional(mint string, amount uint64) {
	p, ok := s.positions[mint]
	if !ok || p.Balance == 0 {
		return
	}
	if amount >= p.Balance {
		p.Balance = 0
		p.CostLamports = 0
		return
	}
	remaining := p.Balance - amount
	p.CostLamports = uint64(float64(p.CostLamports) * float64(remaining) / float64(p.Balance))
	p.Balance = remaining
}

// Reduce removes amount from the balance and leaves the cost basis untouched.
// Used by take-profit partial sells: the remainder keeps referencing the full
// original entry cost.
func (s *PositionStore) Reduce(mint string, amount uint64) {
	p, ok := s.positions[mint]
	if !ok {
		return
	}
	if amount >= p.Balance {
		p.Balance = 0
		return
	}
	p.Balance -= amount
}

// SetBalance overwrites the recorded balance, used by reconciliation.
func (s *PositionStore) SetBalance(mint string, balance uint64) {
	if p, ok := s.positions[mint]; ok {
		p.Balance = balance
	}
}

// RemoveIfDust deletes the position when its balance fell under the dust
// threshold and reports whether it did. This is the single liquidation
// detection point for every sell path.
func (s *PositionStore) RemoveIfDust(mint string, dust uint64) bool {
	p, ok := s.positions[mint]
	if !ok {
		return false
	}
	if p.Balance < dust {
		delete(s.positions, mint)
		return true
	}
	return false
}

func (s *PositionStore) Len() int { return len(s.positions) }

// Snapshot returns a point-in-time copy suitable for persistence.
func (s *PositionStore) Snapshot() map[string]domain.Position {
	out := make(map[string]domain.Position, len(s.positions))
	for m, p := range s.positions {
		out[m] = *p
	}
	return out
}

// Restore replaces the store contents with a previously persisted snapshot.
// Zero-balance rows are dropped rather than resurrected.
func (s *PositionStore) Restore(snapshot map[string]domain.Position) {
	s.positions = make(map[string]*domain.Position, len(snapshot))
	for m, p := range snapshot {
		if p.Balance == 0 {
			continue
		}
		cp := p
		cp.Mint = m
		s.positions[m] = &cp
	}
}
