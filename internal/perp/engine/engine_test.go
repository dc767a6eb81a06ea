package engine

import (
	"context"
	"math"
	"sync"
	"testing"

	"perp-core-sol/internal/consts"
	"perp-core-sol/internal/perp/amm"
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
	admin  = testKey(0xA1)
	trader = testKey(0xB2)
	lender = testKey(0xC3)
	keeper = testKey(0xD4)
	mint   = testKey(0xE5)
	pool   = testKey(0xF6)
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []types.Event
}

func (r *recordingNotifier) Notify(ev types.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recordingNotifier) last() types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return types.Event{}
	}
	return r.events[len(r.events)-1]
}

func newTestEngine(t *testing.T, price uint64) (*Engine, *amm.SimExecutor, *recordingNotifier) {
	t.Helper()

	sim := amm.NewSimExecutor(price)
	rec := &recordingNotifier{}
	e := NewEngine(Params{
		Admin:    admin,
		Oracle:   oracle.NewOracle(sim),
		Exec:     sim,
		Vault:    sim,
		Notifier: rec,
	})
	require.NoError(t, e.CreateMarket(context.Background(), CreateMarketParams{
		Admin:           admin,
		TokenMint:       mint,
		Pool:            pool,
		MaxPositionSize: 1_000_000_000,
	}))
	return e, sim, rec
}

func openLong(t *testing.T, e *Engine, collateral, leverage uint64) {
	t.Helper()
	_, err := e.OpenPosition(context.Background(), OpenParams{
		User: trader, Market: mint, Side: types.SideLong,
		Collateral: collateral, Leverage: leverage,
	})
	require.NoError(t, err)
}

func TestCreateMarket(t *testing.T) {
	e, _, _ := newTestEngine(t, consts.Precision)

	// 非管理员
	err := e.CreateMarket(context.Background(), CreateMarketParams{Admin: trader, TokenMint: pool})
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	// 重复建市
	err = e.CreateMarket(context.Background(), CreateMarketParams{Admin: admin, TokenMint: mint})
	assert.ErrorIs(t, err, types.ErrMarketExists)
}

func TestDepositWithdraw(t *testing.T) {
	e, _, rec := newTestEngine(t, consts.Precision)

	balance, err := e.Deposit(trader, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), balance)
	assert.Equal(t, types.EventDeposited, rec.last().Type)

	balance, err = e.Withdraw(trader, 400)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), balance)
	assert.Equal(t, types.EventWithdrawn, rec.last().Type)

	_, err = e.Withdraw(trader, 601)
	assert.ErrorIs(t, err, types.ErrInsufficientBalance)
}

func TestOpenLong(t *testing.T) {
	e, _, rec := newTestEngine(t, consts.Precision)
	_, err := e.Deposit(trader, 1000)
	require.NoError(t, err)

	pos, err := e.OpenPosition(context.Background(), OpenParams{
		User: trader, Market: mint, Side: types.SideLong,
		Collateral: 1000, Leverage: 5,
	})
	require.NoError(t, err)

	// fee 3 → net 997 → 名义 4985
	assert.Equal(t, uint64(997), pos.Collateral)
	assert.Equal(t, uint64(4985), pos.PositionSizeSol)
	assert.Equal(t, uint64(4985), pos.TokenAmount)
	assert.Equal(t, consts.Precision, pos.EntryPrice)
	assert.Equal(t, uint64(860_000_000_000), pos.LiquidationPrice)
	assert.Equal(t, uint64(0), pos.BorrowedTokens)

	// 保证金整额扣走
	balance, ok := e.Balance(trader)
	require.True(t, ok)
	assert.Equal(t, uint64(0), balance)

	stats, err := e.MarketStats(mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(997), stats.TotalLongCollateral)
	assert.Equal(t, uint64(1), stats.TotalPositions)

	assert.Equal(t, types.EventPositionOpened, rec.last().Type)

	// 同一市场重复开仓
	_, err = e.OpenPosition(context.Background(), OpenParams{
		User: trader, Market: mint, Side: types.SideLong,
		Collateral: 1, Leverage: 1,
	})
	assert.ErrorIs(t, err, types.ErrPositionExists)
}

func TestOpenValidation(t *testing.T) {
	e, _, _ := newTestEngine(t, consts.Precision)
	_, err := e.Deposit(trader, math.MaxUint64)
	require.NoError(t, err)

	cases := []struct {
		name   string
		params OpenParams
		want   error
	}{
		{"leverage zero", OpenParams{User: trader, Market: mint, Collateral: 100, Leverage: 0}, types.ErrInvalidLeverage},
		{"leverage too high", OpenParams{User: trader, Market: mint, Collateral: 100, Leverage: 11}, types.ErrInvalidLeverage},
		{"zero collateral", OpenParams{User: trader, Market: mint, Leverage: 1}, types.ErrZeroCollateral},
		{"unknown market", OpenParams{User: trader, Market: pool, Collateral: 100, Leverage: 1}, types.ErrMarketNotFound},
		{"overflow", OpenParams{User: trader, Market: mint, Collateral: math.MaxUint64, Leverage: 10}, types.ErrOverflow},
		{"too large", OpenParams{User: trader, Market: mint, Collateral: 3_000_000_000, Leverage: 10}, types.ErrPositionTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.OpenPosition(context.Background(), tc.params)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	// 被拒绝的请求不动余额
	balance, ok := e.Balance(trader)
	require.True(t, ok)
	assert.Equal(t, uint64(math.MaxUint64), balance)
}

func TestOpenInsufficientBalance(t *testing.T) {
	e, _, _ := newTestEngine(t, consts.Precision)
	_, err := e.Deposit(trader, 500)
	require.NoError(t, err)

	_, err = e.OpenPosition(context.Background(), OpenParams{
		User: trader, Market: mint, Side: types.SideLong,
		Collateral: 1000, Leverage: 2,
	})
	assert.ErrorIs(t, err, types.ErrInsufficientBalance)
}

func TestCloseLongFlat(t *testing.T) {
	e, _, rec := newTestEngine(t, consts.Precision)
	_, err := e.Deposit(trader, 1000)
	require.NoError(t, err)
	openLong(t, e, 1000, 5)

	payout, err := e.ClosePosition(context.Background(), trader, mint, 0)
	require.NoError(t, err)

	// 平价平仓：payout = 997 - 平仓费 2
	assert.Equal(t, uint64(995), payout)

	balance, ok := e.Balance(trader)
	require.True(t, ok)
	assert.Equal(t, uint64(995), balance)

	stats, err := e.MarketStats(mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), stats.TotalLongCollateral)
	assert.Equal(t, uint64(0), stats.TotalPositions)

	_, err = e.PositionOf(mint, trader)
	assert.ErrorIs(t, err, types.ErrPositionNotFound)

	ev := rec.last()
	require.Equal(t, types.EventPositionClosed, ev.Type)
	closed := ev.Data.(types.PositionClosedEvent)
	assert.Equal(t, int64(0), closed.Pnl)
	assert.Equal(t, uint64(995), closed.Payout)
}

func TestCloseLongProfit(t *testing.T) {
	e, sim, _ := newTestEngine(t, consts.Precision)
	_, err := e.Deposit(trader, 1000)
	require.NoError(t, err)
	openLong(t, e, 1000, 5)

	// 价格翻倍：4985 token 卖出 9970，pnl +4985
	sim.SetPrice(2 * consts.Precision)
	payout, err := e.ClosePosition(context.Background(), trader, mint, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(997+4985-2), payout)
}

func TestCloseLongWipeout(t *testing.T) {
	e, sim, _ := newTestEngine(t, consts.Precision)
	_, err := e.Deposit(trader, 1000)
	require.NoError(t, err)
	openLong(t, e, 1000, 5)

	// 归零行情：亏损超过保证金，payout 截到 0
	sim.SetPrice(consts.Precision / 100)
	payout, err := e.ClosePosition(context.Background(), trader, mint, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), payout)

	balance, ok := e.Balance(trader)
	require.True(t, ok)
	assert.Equal(t, uint64(0), balance)
}

func TestShortLifecycle(t *testing.T) {
	e, _, _ := newTestEngine(t, consts.Precision)
	_, err := e.Deposit(trader, 1000)
	require.NoError(t, err)
	_, err = e.DepositToLending(lender, mint, 10_000)
	require.NoError(t, err)

	pos, err := e.OpenPosition(context.Background(), OpenParams{
		User: trader, Market: mint, Side: types.SideShort,
		Collateral: 1000, Leverage: 5,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(4985), pos.BorrowedTokens)
	assert.Equal(t, uint64(4985), pos.PositionSizeSol)
	assert.Equal(t, uint64(0), pos.TokenAmount)
	assert.Equal(t, uint64(1_140_000_000_000), pos.LiquidationPrice)

	stats, err := e.MarketStats(mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(997), stats.TotalShortCollateral)
	assert.Equal(t, uint64(4985), stats.LendingBorrowed)

	// 平价平仓：借的 token 原数买回，本金记账归还
	payout, err := e.ClosePosition(context.Background(), trader, mint, math.MaxUint64)
	require.NoError(t, err)
	assert.Equal(t, uint64(995), payout)

	stats, err = e.MarketStats(mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), stats.LendingBorrowed)
	assert.Equal(t, uint64(0), stats.TotalShortCollateral)
	assert.Equal(t, uint64(0), stats.TotalPositions)
}

func TestShortInsufficientLiquidity(t *testing.T) {
	e, _, _ := newTestEngine(t, consts.Precision)
	_, err := e.Deposit(trader, 1000)
	require.NoError(t, err)

	// 出借池是空的
	_, err = e.OpenPosition(context.Background(), OpenParams{
		User: trader, Market: mint, Side: types.SideShort,
		Collateral: 1000, Leverage: 5,
	})
	assert.ErrorIs(t, err, types.ErrInsufficientLiquidity)

	balance, ok := e.Balance(trader)
	require.True(t, ok)
	assert.Equal(t, uint64(1000), balance)
}

func TestOpenSwapFailureRollsBack(t *testing.T) {
	e, sim, _ := newTestEngine(t, consts.Precision)
	_, err := e.Deposit(trader, 1000)
	require.NoError(t, err)
	_, err = e.DepositToLending(lender, mint, 10_000)
	require.NoError(t, err)

	for _, side := range []types.Side{types.SideLong, types.SideShort} {
		sim.FailNext()
		_, err = e.OpenPosition(context.Background(), OpenParams{
			User: trader, Market: mint, Side: side,
			Collateral: 1000, Leverage: 5,
		})
		assert.ErrorIs(t, err, types.ErrSwapFailed)

		// 保证金退回，账本无残留
		balance, ok := e.Balance(trader)
		require.True(t, ok)
		assert.Equal(t, uint64(1000), balance)

		stats, statsErr := e.MarketStats(mint)
		require.NoError(t, statsErr)
		assert.Equal(t, uint64(0), stats.TotalLongCollateral)
		assert.Equal(t, uint64(0), stats.TotalShortCollateral)
		assert.Equal(t, uint64(0), stats.TotalPositions)
		assert.Equal(t, uint64(0), stats.LendingBorrowed)
	}
}

func TestOpenSlippageRollsBack(t *testing.T) {
	e, _, _ := newTestEngine(t, consts.Precision)
	_, err := e.Deposit(trader, 1000)
	require.NoError(t, err)

	// 名义 4985 最多换 4985 个 token，要求 5000 必然越界
	_, err = e.OpenPosition(context.Background(), OpenParams{
		User: trader, Market: mint, Side: types.SideLong,
		Collateral: 1000, Leverage: 5, SlippageLimit: 5000,
	})
	assert.ErrorIs(t, err, types.ErrSlippageExceeded)

	balance, ok := e.Balance(trader)
	require.True(t, ok)
	assert.Equal(t, uint64(1000), balance)
}

func TestLiquidateGuard(t *testing.T) {
	e, sim, _ := newTestEngine(t, consts.Precision)
	_, err := e.Deposit(trader, 1000)
	require.NoError(t, err)
	openLong(t, e, 1000, 5)

	// 清算线 860e9，略高于它不可清算
	sim.SetPrice(900_000_000_000)
	err = e.Liquidate(context.Background(), keeper, mint, trader, 0)
	assert.ErrorIs(t, err, types.ErrNotLiquidatable)
	assert.Empty(t, e.LiquidatableCandidates(context.Background()))

	// 无仓位
	err = e.Liquidate(context.Background(), keeper, mint, lender, 0)
	assert.ErrorIs(t, err, types.ErrPositionNotFound)
}

func TestLiquidateLong(t *testing.T) {
	e, sim, rec := newTestEngine(t, consts.Precision)
	_, err := e.Deposit(trader, 1000)
	require.NoError(t, err)
	openLong(t, e, 1000, 5)

	sim.SetPrice(800_000_000_000)

	candidates := e.LiquidatableCandidates(context.Background())
	require.Len(t, candidates, 1)
	assert.Equal(t, trader, candidates[0].Owner)
	assert.Equal(t, mint, candidates[0].Market)

	require.NoError(t, e.Liquidate(context.Background(), keeper, mint, trader, 0))

	// 4985 token 以 0.8 价卖出 3988；奖励 199，剩余 3789 归持仓人
	remaining := uint64(3988)
	reward := uint64(199)
	toOwner := remaining - reward

	assert.Equal(t, reward, sim.Transferred(keeper))
	balance, ok := e.Balance(trader)
	require.True(t, ok)
	assert.Equal(t, toOwner, balance)

	ev := rec.last()
	require.Equal(t, types.EventPositionLiquidated, ev.Type)
	liq := ev.Data.(types.PositionLiquidatedEvent)
	assert.Equal(t, reward, liq.Reward)
	assert.Equal(t, toOwner, liq.ToOwner)
	// 奖励与归还严格对账
	assert.Equal(t, remaining, liq.Reward+liq.ToOwner)

	stats, err := e.MarketStats(mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), stats.TotalPositions)
	assert.Equal(t, uint64(0), stats.TotalLongCollateral)
}

func TestLiquidateShortUnderwater(t *testing.T) {
	e, sim, _ := newTestEngine(t, consts.Precision)
	_, err := e.Deposit(trader, 1000)
	require.NoError(t, err)
	_, err = e.DepositToLending(lender, mint, 10_000)
	require.NoError(t, err)

	_, err = e.OpenPosition(context.Background(), OpenParams{
		User: trader, Market: mint, Side: types.SideShort,
		Collateral: 1000, Leverage: 5,
	})
	require.NoError(t, err)

	// 价格拉升越过清算线，回补花费超过仓位价值，remaining 0
	sim.SetPrice(1_200_000_000_000)
	require.NoError(t, e.Liquidate(context.Background(), keeper, mint, trader, math.MaxUint64))

	assert.Equal(t, uint64(0), sim.Transferred(keeper))
	balance, ok := e.Balance(trader)
	require.True(t, ok)
	assert.Equal(t, uint64(0), balance)

	stats, err := e.MarketStats(mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), stats.LendingBorrowed)
	assert.Equal(t, uint64(0), stats.TotalPositions)
}

func TestLendingRoundTrip(t *testing.T) {
	e, _, rec := newTestEngine(t, consts.Precision)

	shares, err := e.DepositToLending(lender, mint, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), shares)
	assert.Equal(t, types.EventLendingDeposited, rec.last().Type)

	shares, err = e.DepositToLending(trader, mint, 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), shares)

	stats, err := e.MarketStats(mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), stats.LendingDeposits)
	assert.Equal(t, uint64(1500), stats.LendingShares)

	held, err := e.LenderShares(mint, lender)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), held)

	tokens, err := e.WithdrawFromLending(lender, mint, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), tokens)
	assert.Equal(t, types.EventLendingWithdrawn, rec.last().Type)

	_, err = e.WithdrawFromLending(lender, mint, 1)
	assert.ErrorIs(t, err, types.ErrInsufficientShares)

	_, err = e.DepositToLending(lender, pool, 1)
	assert.ErrorIs(t, err, types.ErrMarketNotFound)
}
