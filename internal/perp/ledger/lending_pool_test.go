package ledger

import (
	"testing"

	"perp-core-sol/internal/perp/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	lenderA = types.PubkeyFromString("4Nd1mYvM6kV8X6oqs4cjnyhZpQtKLbQ5fjKBSyTDRiCi")
	lenderB = types.PubkeyFromString("9n4nbM75f5Ui33ZbPYXn59EwSgE8CGsHtAeTH5YFeJ9E")
)

func TestLendingDepositShareMint(t *testing.T) {
	p := NewLendingPool()

	// 空池 1:1
	shares, err := p.Deposit(lenderA, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), shares)

	// 第二个出借人按比例
	shares, err = p.Deposit(lenderB, 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), shares)

	assert.Equal(t, uint64(1500), p.TotalDeposits)
	assert.Equal(t, uint64(1500), p.TotalShares)
	assert.Equal(t, uint64(1000), p.LenderShares(lenderA))
	assert.Equal(t, uint64(500), p.LenderShares(lenderB))

	_, err = p.Deposit(lenderA, 0)
	assert.ErrorIs(t, err, types.ErrZeroAmount)
}

func TestLendingWithdraw(t *testing.T) {
	p := NewLendingPool()
	_, err := p.Deposit(lenderA, 1000)
	require.NoError(t, err)

	tokens, err := p.Withdraw(lenderA, 400)
	require.NoError(t, err)
	assert.Equal(t, uint64(400), tokens)
	assert.Equal(t, uint64(600), p.TotalDeposits)
	assert.Equal(t, uint64(600), p.LenderShares(lenderA))

	// 份额不足
	_, err = p.Withdraw(lenderA, 601)
	assert.ErrorIs(t, err, types.ErrInsufficientShares)

	// 没有份额的出借人
	_, err = p.Withdraw(lenderB, 1)
	assert.ErrorIs(t, err, types.ErrInsufficientShares)
}

func TestLendingBorrowBlocksWithdraw(t *testing.T) {
	p := NewLendingPool()
	_, err := p.Deposit(lenderA, 1000)
	require.NoError(t, err)

	require.NoError(t, p.Borrow(800))
	assert.Equal(t, uint64(200), p.Available())

	// 借出部分不能抽走
	_, err = p.Withdraw(lenderA, 500)
	assert.ErrorIs(t, err, types.ErrInsufficientLiquidity)

	// 超过可借量
	assert.ErrorIs(t, p.Borrow(201), types.ErrInsufficientLiquidity)

	p.Repay(800)
	assert.Equal(t, uint64(1000), p.Available())

	tokens, err := p.Withdraw(lenderA, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), tokens)
	assert.Equal(t, uint64(0), p.TotalDeposits)
	assert.Equal(t, uint64(0), p.TotalShares)
}
