package storage

import (
	"context"
	"sync"

	"github.com/ryawaa/twinkle/src/models"
)

// MemoryStore keeps latest trades in process. Used when storage is disabled.
type MemoryStore struct {
	mu     sync.RWMutex
	trades map[string]models.MTrade
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{trades: make(map[string]models.MTrade)}
}

func (m *MemoryStore) Initialize(ctx context.Context) error { return nil }

func (m *MemoryStore) SaveLatestTrade(ctx context.Context, trade models.MTrade) error {
	trade.Conditions = append(models.MConditionCodes(nil), trade.Conditions...)

	m.mu.Lock()
	m.trades[trade.Symbol] = trade
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetLatestTrade(ctx context.Context, symbol string) (*models.MTrade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	trade, ok := m.trades[symbol]
	if !ok {
		return nil, nil
	}
	return &trade, nil
}

func (m *MemoryStore) Close() error { return nil }
