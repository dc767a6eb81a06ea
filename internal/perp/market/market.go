package market

import (
	"sync"
	"time"

	"perp-core-sol/internal/perp/ledger"
	"perp-core-sol/internal/perp/types"

	"github.com/cespare/xxhash/v2"
)

// Position 杠杆仓位。开仓创建，到终态（平仓/清算）即删除，
// 中途只读，不支持部分平仓和调杠杆。
type Position struct {
	Owner            types.Pubkey
	Market           types.Pubkey // market 的 token mint
	Side             types.Side
	Collateral       uint64 // 扣除协议费后的保证金（lamports）
	Leverage         uint64
	EntryPrice       uint64 // 1e12 定点
	LiquidationPrice uint64 // 1e12 定点
	TokenAmount      uint64 // 多头持有的 token 数量
	PositionSizeSol  uint64 // 开仓名义价值（lamports）
	BorrowedTokens   uint64 // 空头借入的 token 数量
	OpenedAt         int64  // unix 秒
}

// Market 单个交易市场：聚合两侧保证金与仓位计数，并持有该市场的出借池。
// 所有生命周期操作通过 mu 串行化（单写者约束）。
type Market struct {
	TokenMint   types.Pubkey // 市场标识
	PoolAddress types.Pubkey // 外部 pumpswap 池子
	BaseVault   types.Pubkey // 池子 base token 金库
	QuoteVault  types.Pubkey // 池子 quote(WSOL) 金库
	AddressHash uint64       // 池子地址哈希，用于稳定排序

	MaxPositionSize uint64 // 名义价值上限（collateral * leverage）

	TotalLongCollateral  uint64
	TotalShortCollateral uint64
	TotalPositions       uint64

	Lending *ledger.LendingPool

	CreatedAt time.Time

	mu        sync.Mutex
	positions map[types.Pubkey]*Position // key 为 owner，每人每市场至多一个仓位
}

// InitParams Market 构造参数
type InitParams struct {
	TokenMint       types.Pubkey
	PoolAddress     types.Pubkey
	BaseVault       types.Pubkey
	QuoteVault      types.Pubkey
	MaxPositionSize uint64
}

func NewMarket(params InitParams) *Market {
	return &Market{
		TokenMint:       params.TokenMint,
		PoolAddress:     params.PoolAddress,
		BaseVault:       params.BaseVault,
		QuoteVault:      params.QuoteVault,
		AddressHash:     xxhash.Sum64(params.PoolAddress[:]),
		MaxPositionSize: params.MaxPositionSize,
		Lending:         ledger.NewLendingPool(),
		CreatedAt:       time.Now(),
		positions:       make(map[types.Pubkey]*Position, 256),
	}
}

// Lock 串行化该市场上的生命周期操作；持锁期间同样保护 Lending
func (m *Market) Lock() {
	m.mu.Lock()
}

func (m *Market) Unlock() {
	m.mu.Unlock()
}

// Position 持锁调用
func (m *Market) Position(owner types.Pubkey) *Position {
	return m.positions[owner]
}

// AddPosition 持锁调用，每个 owner 至多一个仓位
func (m *Market) AddPosition(p *Position) error {
	if _, exists := m.positions[p.Owner]; exists {
		return types.ErrPositionExists
	}
	m.positions[p.Owner] = p
	return nil
}

// RemovePosition 持锁调用
func (m *Market) RemovePosition(owner types.Pubkey) {
	delete(m.positions, owner)
}

// PositionCount 持锁调用
func (m *Market) PositionCount() int {
	return len(m.positions)
}

// SnapshotPositions 拷贝当前仓位列表（清算巡检用，不长期持锁）
func (m *Market) SnapshotPositions() []Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, *p)
	}
	return out
}

// Stats 市场聚合数据快照
type Stats struct {
	TokenMint            types.Pubkey `json:"token_mint"`
	PoolAddress          types.Pubkey `json:"pool_address"`
	MaxPositionSize      uint64       `json:"max_position_size"`
	TotalLongCollateral  uint64       `json:"total_long_collateral"`
	TotalShortCollateral uint64       `json:"total_short_collateral"`
	TotalPositions       uint64       `json:"total_positions"`
	LendingDeposits      uint64       `json:"lending_deposits"`
	LendingBorrowed      uint64       `json:"lending_borrowed"`
	LendingShares        uint64       `json:"lending_shares"`
}

func (m *Market) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Stats{
		TokenMint:            m.TokenMint,
		PoolAddress:          m.PoolAddress,
		MaxPositionSize:      m.MaxPositionSize,
		TotalLongCollateral:  m.TotalLongCollateral,
		TotalShortCollateral: m.TotalShortCollateral,
		TotalPositions:       m.TotalPositions,
		LendingDeposits:      m.Lending.TotalDeposits,
		LendingBorrowed:      m.Lending.TotalBorrowed,
		LendingShares:        m.Lending.TotalShares,
	}
}
