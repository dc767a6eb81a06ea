package amm

import (
	"context"
	"sync"
	"sync/atomic"

	"perp-core-sol/internal/consts"
	"perp-core-sol/internal/perp/types"
	"perp-core-sol/internal/pkg/utils"
)

// SimExecutor 本地模拟撮合：按设定价格精确成交，无手续费无深度。
// 用于本地联调和测试，也可通过 failNext 注入 swap 失败。
type SimExecutor struct {
	price    atomic.Uint64 // 定点价格，Precision 精度
	failNext atomic.Bool

	mu        sync.Mutex
	transfers map[types.Pubkey]uint64 // 原生转账累计，按收款人
}

func NewSimExecutor(price uint64) *SimExecutor {
	s := &SimExecutor{
		transfers: make(map[types.Pubkey]uint64),
	}
	s.price.Store(price)
	return s
}

// SetPrice 更新模拟价格，对之后的成交生效
func (s *SimExecutor) SetPrice(price uint64) {
	s.price.Store(price)
}

func (s *SimExecutor) Price() uint64 {
	return s.price.Load()
}

// FailNext 下一次 swap 返回 ErrSwapFailed
func (s *SimExecutor) FailNext() {
	s.failNext.Store(true)
}

func (s *SimExecutor) Buy(_ context.Context, _ types.Pubkey, solIn, minTokensOut uint64) (uint64, error) {
	if s.failNext.CompareAndSwap(true, false) {
		return 0, types.ErrSwapFailed
	}
	tokens, ok := utils.MulDiv64(solIn, consts.Precision, s.price.Load())
	if !ok {
		return 0, types.ErrOverflow
	}
	if tokens < minTokensOut {
		return 0, types.ErrSlippageExceeded
	}
	return tokens, nil
}

func (s *SimExecutor) Sell(_ context.Context, _ types.Pubkey, tokensIn, minSolOut uint64) (uint64, error) {
	if s.failNext.CompareAndSwap(true, false) {
		return 0, types.ErrSwapFailed
	}
	sol, ok := utils.MulDiv64(tokensIn, s.price.Load(), consts.Precision)
	if !ok {
		return 0, types.ErrOverflow
	}
	if sol < minSolOut {
		return 0, types.ErrSlippageExceeded
	}
	return sol, nil
}

func (s *SimExecutor) BuyForClose(_ context.Context, _ types.Pubkey, tokensOutExact, maxSolIn uint64) (uint64, error) {
	if s.failNext.CompareAndSwap(true, false) {
		return 0, types.ErrSwapFailed
	}
	spent, ok := utils.MulDiv64(tokensOutExact, s.price.Load(), consts.Precision)
	if !ok {
		return 0, types.ErrOverflow
	}
	if spent > maxSolIn {
		return 0, types.ErrSlippageExceeded
	}
	return spent, nil
}

// ReadReserves 以当前模拟价还原一组储备，使 oracle 读出的价格与成交价一致
func (s *SimExecutor) ReadReserves(_ context.Context, _, _ types.Pubkey) (uint64, uint64, error) {
	return consts.Precision, s.price.Load(), nil
}

func (s *SimExecutor) TransferNative(_ context.Context, to types.Pubkey, lamports uint64) error {
	s.mu.Lock()
	s.transfers[to] += lamports
	s.mu.Unlock()
	return nil
}

// Transferred 收款人累计收到的原生转账
func (s *SimExecutor) Transferred(to types.Pubkey) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transfers[to]
}
