package ledger

import (
	"sync"

	"perp-core-sol/internal/perp/types"
	"perp-core-sol/internal/pkg/utils"
)

// UserAccount 用户托管账户：所有保证金和结算款的进出口
type UserAccount struct {
	Owner   types.Pubkey
	Balance uint64 // lamports
}

// UserLedger 全部用户托管余额。
// 首次充值时建账；开仓扣保证金、平仓/清算入账结算款。
type UserLedger struct {
	mu       sync.RWMutex
	accounts map[types.Pubkey]*UserAccount
}

func NewUserLedger() *UserLedger {
	return &UserLedger{
		accounts: make(map[types.Pubkey]*UserAccount, 1024),
	}
}

// Deposit 充值，账户不存在时创建
func (l *UserLedger) Deposit(owner types.Pubkey, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, types.ErrZeroAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[owner]
	if !ok {
		acct = &UserAccount{Owner: owner}
		l.accounts[owner] = acct
	}

	newBalance, ok := utils.CheckedAdd64(acct.Balance, amount)
	if !ok {
		return 0, types.ErrOverflow
	}
	acct.Balance = newBalance
	return newBalance, nil
}

// Withdraw 提现，余额不足直接拒绝
func (l *UserLedger) Withdraw(owner types.Pubkey, amount uint64) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[owner]
	if !ok {
		return 0, types.ErrAccountNotFound
	}
	if acct.Balance < amount {
		return 0, types.ErrInsufficientBalance
	}
	acct.Balance -= amount
	return acct.Balance, nil
}

// Debit 扣款（开仓保证金），要求账户存在且余额充足
func (l *UserLedger) Debit(owner types.Pubkey, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[owner]
	if !ok {
		return types.ErrAccountNotFound
	}
	if acct.Balance < amount {
		return types.ErrInsufficientBalance
	}
	acct.Balance -= amount
	return nil
}

// Credit 入账（结算款）。清算路径是唯一一处由非本人交易写入他人账户的入口，
// 且仅限这条加款路径。
func (l *UserLedger) Credit(owner types.Pubkey, amount uint64) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[owner]
	if !ok {
		return 0, types.ErrAccountNotFound
	}
	newBalance, ok := utils.CheckedAdd64(acct.Balance, amount)
	if !ok {
		return 0, types.ErrOverflow
	}
	acct.Balance = newBalance
	return newBalance, nil
}

// Balance 查询余额，账户不存在返回 (0, false)
func (l *UserLedger) Balance(owner types.Pubkey) (uint64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acct, ok := l.accounts[owner]
	if !ok {
		return 0, false
	}
	return acct.Balance, true
}
