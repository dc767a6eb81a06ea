package market

import (
	"sync"

	"perp-core-sol/internal/perp/types"
)

// Map 全部市场，key 为 token mint
type Map struct {
	mu      sync.RWMutex
	markets map[types.Pubkey]*Market
}

func NewMap() *Map {
	return &Map{
		markets: make(map[types.Pubkey]*Market, 64),
	}
}

func (mm *Map) Len() int {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return len(mm.markets)
}

func (mm *Map) Get(tokenMint types.Pubkey) *Market {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.markets[tokenMint]
}

func (mm *Map) Add(m *Market) error {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if _, exists := mm.markets[m.TokenMint]; exists {
		return types.ErrMarketExists
	}
	mm.markets[m.TokenMint] = m
	return nil
}

// List 拷贝市场列表（巡检/查询用）
func (mm *Map) List() []*Market {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	out := make([]*Market, 0, len(mm.markets))
	for _, m := range mm.markets {
		out = append(out, m)
	}
	return out
}
