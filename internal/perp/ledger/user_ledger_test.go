package ledger

import (
	"math"
	"testing"

	"perp-core-sol/internal/perp/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserLedgerDepositWithdraw(t *testing.T) {
	l := NewUserLedger()

	_, err := l.Deposit(lenderA, 0)
	assert.ErrorIs(t, err, types.ErrZeroAmount)

	balance, err := l.Deposit(lenderA, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), balance)

	balance, err = l.Withdraw(lenderA, 400)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), balance)

	_, err = l.Withdraw(lenderA, 601)
	assert.ErrorIs(t, err, types.ErrInsufficientBalance)

	_, err = l.Withdraw(lenderB, 1)
	assert.ErrorIs(t, err, types.ErrAccountNotFound)
}

func TestUserLedgerDebitCredit(t *testing.T) {
	l := NewUserLedger()
	_, err := l.Deposit(lenderA, 1000)
	require.NoError(t, err)

	require.NoError(t, l.Debit(lenderA, 1000))
	balance, ok := l.Balance(lenderA)
	require.True(t, ok)
	assert.Equal(t, uint64(0), balance)

	assert.ErrorIs(t, l.Debit(lenderA, 1), types.ErrInsufficientBalance)
	assert.ErrorIs(t, l.Debit(lenderB, 1), types.ErrAccountNotFound)

	balance, err = l.Credit(lenderA, 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), balance)

	// 入账不建账
	_, err = l.Credit(lenderB, 1)
	assert.ErrorIs(t, err, types.ErrAccountNotFound)
}

func TestUserLedgerOverflow(t *testing.T) {
	l := NewUserLedger()
	_, err := l.Deposit(lenderA, math.MaxUint64)
	require.NoError(t, err)

	_, err = l.Deposit(lenderA, 1)
	assert.ErrorIs(t, err, types.ErrOverflow)

	_, err = l.Credit(lenderA, 1)
	assert.ErrorIs(t, err, types.ErrOverflow)

	// 溢出拒绝后余额原样
	balance, ok := l.Balance(lenderA)
	require.True(t, ok)
	assert.Equal(t, uint64(math.MaxUint64), balance)
}
