package ledger

import (
	"perp-core-sol/internal/perp/types"
	"perp-core-sol/internal/pkg/utils"
)

// LenderPosition 出借人份额记录，首次存入创建，份额可以降到 0 但不删除
type LenderPosition struct {
	Owner  types.Pubkey
	Shares uint64
}

// LendingPool 份额制出借池，为空头仓位提供 token 库存。
// 份额代表对 TotalDeposits 的比例求偿权；TotalDeposits 只在
// 出借人存取时变动，borrow/repay 只动 TotalBorrowed（本金记账，无利息）。
// 并发约束：由所属 Market 的锁串行化，自身不加锁。
type LendingPool struct {
	TotalDeposits uint64 // token 最小单位
	TotalBorrowed uint64
	TotalShares   uint64

	lenders map[types.Pubkey]*LenderPosition
}

func NewLendingPool() *LendingPool {
	return &LendingPool{
		lenders: make(map[types.Pubkey]*LenderPosition, 64),
	}
}

// Available 可借出量，恒有 TotalBorrowed <= TotalDeposits
func (p *LendingPool) Available() uint64 {
	return utils.SaturatingSub64(p.TotalDeposits, p.TotalBorrowed)
}

// Deposit 存入 token，返回铸造的份额。
// 空池：份额 = 存入量；否则按比例 floor(amount * totalShares / totalDeposits)。
func (p *LendingPool) Deposit(owner types.Pubkey, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, types.ErrZeroAmount
	}

	var shares uint64
	if p.TotalDeposits == 0 {
		shares = amount
	} else {
		var ok bool
		shares, ok = utils.MulDiv64(amount, p.TotalShares, p.TotalDeposits)
		if !ok {
			return 0, types.ErrOverflow
		}
	}

	newDeposits, ok := utils.CheckedAdd64(p.TotalDeposits, amount)
	if !ok {
		return 0, types.ErrOverflow
	}
	newShares, ok := utils.CheckedAdd64(p.TotalShares, shares)
	if !ok {
		return 0, types.ErrOverflow
	}

	lender, exists := p.lenders[owner]
	if !exists {
		lender = &LenderPosition{Owner: owner}
		p.lenders[owner] = lender
	}
	newLenderShares, ok := utils.CheckedAdd64(lender.Shares, shares)
	if !ok {
		return 0, types.ErrOverflow
	}

	p.TotalDeposits = newDeposits
	p.TotalShares = newShares
	lender.Shares = newLenderShares
	return shares, nil
}

// Withdraw 按份额赎回 token，返回实际赎回量。
// 已借出的部分不能抽走：tokens 必须 <= TotalDeposits - TotalBorrowed。
func (p *LendingPool) Withdraw(owner types.Pubkey, shares uint64) (uint64, error) {
	lender, exists := p.lenders[owner]
	if !exists || lender.Shares < shares {
		return 0, types.ErrInsufficientShares
	}

	tokens, ok := utils.MulDiv64(shares, p.TotalDeposits, p.TotalShares)
	if !ok {
		return 0, types.ErrOverflow
	}
	if tokens > p.Available() {
		return 0, types.ErrInsufficientLiquidity
	}

	p.TotalDeposits = utils.SaturatingSub64(p.TotalDeposits, tokens)
	p.TotalShares = utils.SaturatingSub64(p.TotalShares, shares)
	lender.Shares = utils.SaturatingSub64(lender.Shares, shares)
	return tokens, nil
}

// Borrow 借出本金（空头开仓），可借量不足直接拒绝
func (p *LendingPool) Borrow(tokens uint64) error {
	if tokens > p.Available() {
		return types.ErrInsufficientLiquidity
	}
	newBorrowed, ok := utils.CheckedAdd64(p.TotalBorrowed, tokens)
	if !ok {
		return types.ErrOverflow
	}
	p.TotalBorrowed = newBorrowed
	return nil
}

// Repay 归还本金（平仓/清算），按记账本金归还，与实际买回花费无关
func (p *LendingPool) Repay(tokens uint64) {
	p.TotalBorrowed = utils.SaturatingSub64(p.TotalBorrowed, tokens)
}

// LenderShares 查询出借人份额
func (p *LendingPool) LenderShares(owner types.Pubkey) uint64 {
	if lender, ok := p.lenders[owner]; ok {
		return lender.Shares
	}
	return 0
}
