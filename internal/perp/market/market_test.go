package market

import (
	"testing"

	"perp-core-sol/internal/perp/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testMint  = types.PubkeyFromString("9n4nbM75f5Ui33ZbPYXn59EwSgE8CGsHtAeTH5YFeJ9E")
	testPool  = types.PubkeyFromString("8HoQnePLqPj4M7PUDzfw8e3Ymdwgc7NUGnaamVqqe7fp")
	testOwner = types.PubkeyFromString("4Nd1mYvM6kV8X6oqs4cjnyhZpQtKLbQ5fjKBSyTDRiCi")
)

func newTestMarket() *Market {
	return NewMarket(InitParams{
		TokenMint:       testMint,
		PoolAddress:     testPool,
		MaxPositionSize: 1_000_000,
	})
}

func TestMarketPositions(t *testing.T) {
	m := newTestMarket()

	m.Lock()
	defer m.Unlock()

	assert.Nil(t, m.Position(testOwner))
	assert.Equal(t, 0, m.PositionCount())

	pos := &Position{Owner: testOwner, Market: testMint, Side: types.SideLong, Collateral: 997}
	require.NoError(t, m.AddPosition(pos))
	assert.Equal(t, 1, m.PositionCount())
	assert.Same(t, pos, m.Position(testOwner))

	// 同一 owner 只允许一个仓位
	assert.ErrorIs(t, m.AddPosition(&Position{Owner: testOwner}), types.ErrPositionExists)

	m.RemovePosition(testOwner)
	assert.Nil(t, m.Position(testOwner))
	assert.Equal(t, 0, m.PositionCount())
}

func TestMarketSnapshot(t *testing.T) {
	m := newTestMarket()

	m.Lock()
	require.NoError(t, m.AddPosition(&Position{Owner: testOwner, Side: types.SideShort}))
	m.TotalShortCollateral = 997
	m.TotalPositions = 1
	m.Unlock()

	stats := m.Snapshot()
	assert.Equal(t, testMint, stats.TokenMint)
	assert.Equal(t, testPool, stats.PoolAddress)
	assert.Equal(t, uint64(997), stats.TotalShortCollateral)
	assert.Equal(t, uint64(1), stats.TotalPositions)

	positions := m.SnapshotPositions()
	require.Len(t, positions, 1)
	assert.Equal(t, testOwner, positions[0].Owner)
}

func TestMarketMap(t *testing.T) {
	mm := NewMap()
	assert.Equal(t, 0, mm.Len())
	assert.Nil(t, mm.Get(testMint))

	m := newTestMarket()
	require.NoError(t, mm.Add(m))
	assert.Equal(t, 1, mm.Len())
	assert.Same(t, m, mm.Get(testMint))

	assert.ErrorIs(t, mm.Add(newTestMarket()), types.ErrMarketExists)
	assert.Len(t, mm.List(), 1)
}
