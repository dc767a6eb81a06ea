package monitor

import (
	"context"
	"math"
	"testing"

	"perp-core-sol/internal/consts"
	"perp-core-sol/internal/perp/amm"
	"perp-core-sol/internal/perp/engine"
	"perp-core-sol/internal/perp/oracle"
	"perp-core-sol/internal/perp/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) types.Pubkey {
	var p types.Pubkey
	for i := range p {
		p[i] = b
	}
	return p
}

var (
	admin     = testKey(0xA1)
	longUser  = testKey(0xB2)
	shortUser = testKey(0xB3)
	lender    = testKey(0xC3)
	keeper    = testKey(0xD4)
	mintLong  = testKey(0xE5)
	mintShort = testKey(0xE6)
)

func TestSlippageForSide(t *testing.T) {
	m := NewLiquidationMonitor(nil, keeper, 1000, 7, 0)

	assert.Equal(t, uint64(7), m.slippageFor(types.SideLong))
	// 上限 0 视为不设限，否则空头回补必然滑点越界
	assert.Equal(t, uint64(math.MaxUint64), m.slippageFor(types.SideShort))

	m = NewLiquidationMonitor(nil, keeper, 1000, 0, 9_999)
	assert.Equal(t, uint64(9_999), m.slippageFor(types.SideShort))
}

// 一轮巡检要能同时清掉多头和空头：两侧的滑点界限方向相反，
// 共用一个数时必有一侧永远被挡在 ErrSlippageExceeded 上。
func TestSweepLiquidatesBothSides(t *testing.T) {
	ctx := context.Background()
	sim := amm.NewSimExecutor(consts.Precision)
	e := engine.NewEngine(engine.Params{
		Admin:  admin,
		Oracle: oracle.NewOracle(sim),
		Exec:   sim,
		Vault:  sim,
	})
	for _, mint := range []types.Pubkey{mintLong, mintShort} {
		require.NoError(t, e.CreateMarket(ctx, engine.CreateMarketParams{
			Admin: admin, TokenMint: mint, MaxPositionSize: 1_000_000_000,
		}))
	}

	// 多头在 1.0 开仓，清算线 0.86
	_, err := e.Deposit(longUser, 1000)
	require.NoError(t, err)
	_, err = e.OpenPosition(ctx, engine.OpenParams{
		User: longUser, Market: mintLong, Side: types.SideLong,
		Collateral: 1000, Leverage: 5,
	})
	require.NoError(t, err)

	// 空头在 0.7 开仓，清算线 0.798
	sim.SetPrice(700_000_000_000)
	_, err = e.DepositToLending(lender, mintShort, 10_000)
	require.NoError(t, err)
	_, err = e.Deposit(shortUser, 1000)
	require.NoError(t, err)
	_, err = e.OpenPosition(ctx, engine.OpenParams{
		User: shortUser, Market: mintShort, Side: types.SideShort,
		Collateral: 1000, Leverage: 5,
	})
	require.NoError(t, err)

	// 0.8 同时越过两条清算线
	sim.SetPrice(800_000_000_000)
	require.Len(t, e.LiquidatableCandidates(ctx), 2)

	m := NewLiquidationMonitor(e, keeper, 1000, 0, 0)
	m.sweep()

	_, err = e.PositionOf(mintLong, longUser)
	assert.ErrorIs(t, err, types.ErrPositionNotFound)
	_, err = e.PositionOf(mintShort, shortUser)
	assert.ErrorIs(t, err, types.ErrPositionNotFound)

	// 多头强平有剩余价值，keeper 拿到奖励
	assert.Greater(t, sim.Transferred(keeper), uint64(0))

	m.goroutinePool.Release()
}
