// Package snapshot persists the portfolio state as two JSON documents,
// positions.json and trades.json, each replaced via temp-file-then-rename so
// a reader never observes a torn write and a crash mid-write leaves the
// previous snapshot intact. Writes run on a small worker pool with
// latest-wins coalescing per file, keeping the trading path off the disk.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/denggit/crypto-trading/internal/domain"
)

const (
	positionsFile = "positions.json"
	tradesFile    = "trades.json"
)

type Store struct {
	dir    string
	logger *zap.Logger

	mu       sync.Mutex
	closed   bool
	dirty    map[string]struct{}
	payloads map[string][]byte
	files    map[string]*sync.Mutex // serializes writes per file

	wake chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// New creates the snapshot directory if needed and starts the write workers.
func New(dir string, workers int, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	if workers < 1 {
		workers = 1
	}
	s := &Store{
		dir:      dir,
		logger:   logger,
		dirty:    make(map[string]struct{}),
		payloads: make(map[string][]byte),
		files:    make(map[string]*sync.Mutex),
		wake:     make(chan struct{}, workers),
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s, nil
}

// SavePositions schedules a write of the given point-in-time position map.
func (s *Store) SavePositions(positions map[string]domain.Position) {
	payload, err := json.MarshalIndent(positions, "", "  ")
	if err != nil {
		s.logger.Error("marshal positions snapshot", zap.Error(err))
		return
	}
	s.schedule(positionsFile, payload)
}

// SaveTrades schedules a write of the trade history.
func (s *Store) SaveTrades(events []domain.TradeEvent) {
	if events == nil {
		events = []domain.TradeEvent{}
	}
	payload, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		s.logger.Error("marshal trades snapshot", zap.Error(err))
		return
	}
	s.schedule(tradesFile, payload)
}

// LoadPositions reads the last committed position snapshot. A missing file is
// an empty portfolio, not an error.
func (s *Store) LoadPositions() (map[string]domain.Position, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, positionsFile))
	if os.IsNotExist(err) {
		return map[string]domain.Position{}, nil
	}
	if err != nil {
		return nil, err
	}
	var positions map[string]domain.Position
	if err := json.Unmarshal(data, &positions); err != nil {
		return nil, fmt.Errorf("decode %s: %w", positionsFile, err)
	}
	return positions, nil
}

// LoadTrades reads the last committed trade history.
func (s *Store) LoadTrades() ([]domain.TradeEvent, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, tradesFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var events []domain.TradeEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("decode %s: %w", tradesFile, err)
	}
	return events, nil
}

// Close stops the workers and flushes anything still pending.
func (s *Store) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.wake)
		s.wg.Wait()
		// Final synchronous flush.
		s.mu.Lock()
		remaining := s.payloads
		s.payloads = make(map[string][]byte)
		s.dirty = make(map[string]struct{})
		s.mu.Unlock()
		for name, payload := range remaining {
			if err := s.writeAtomic(name, payload); err != nil {
				s.logger.Error("final snapshot flush failed",
					zap.String("file", name), zap.Error(err))
			}
		}
	})
}

func (s *Store) schedule(name string, payload []byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Warn("snapshot save after close dropped", zap.String("file", name))
		return
	}
	s.payloads[name] = payload
	s.dirty[name] = struct{}{}
	// The wake send stays under the lock so Close cannot slip between the
	// closed check and the send.
	select {
	case s.wake <- struct{}{}:
	default:
		// a worker is already awake and will drain the dirty set
	}
	s.mu.Unlock()
}

func (s *Store) worker() {
	defer s.wg.Done()
	for range s.wake {
		s.drain()
	}
}

func (s *Store) drain() {
	for {
		s.mu.Lock()
		var name string
		for n := range s.dirty {
			name = n
			break
		}
		if name == "" {
			s.mu.Unlock()
			return
		}
		delete(s.dirty, name)
		fileMu, ok := s.files[name]
		if !ok {
			fileMu = &sync.Mutex{}
			s.files[name] = fileMu
		}
		s.mu.Unlock()

		fileMu.Lock()
		// Fetch the latest payload only now, so a writer queued behind us
		// always persists the newest state.
		s.mu.Lock()
		payload := s.payloads[name]
		delete(s.payloads, name)
		s.mu.Unlock()

		if payload != nil {
			if err := s.writeAtomic(name, payload); err != nil {
				s.logger.Error("snapshot write failed; in-memory state remains authoritative",
					zap.String("file", name), zap.Error(err))
			}
		}
		fileMu.Unlock()
	}
}

func (s *Store) writeAtomic(name string, payload []byte) error {
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
