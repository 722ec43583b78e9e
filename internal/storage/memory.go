package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"backtest_accounts/internal/core"
)

// MemoryStore keeps snapshots in memory, one per trading date. It is used
// when no database path is configured and in tests.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
	latest    string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string][]byte)}
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, snapshot *core.PortfolioSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	key := snapshot.TradingDate.Format("2006-01-02")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[key] = data
	if key > s.latest {
		s.latest = key
	}
	return nil
}

func (s *MemoryStore) LoadSnapshot(_ context.Context) (*core.PortfolioSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.snapshots[s.latest]
	if !ok {
		return nil, nil
	}

	var snapshot core.PortfolioSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}

func (s *MemoryStore) LoadSnapshotAt(_ context.Context, date time.Time) (*core.PortfolioSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.snapshots[core.Day(date).Format("2006-01-02")]
	if !ok {
		return nil, nil
	}

	var snapshot core.PortfolioSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
