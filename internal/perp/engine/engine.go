package engine

import (
	"context"
	"time"

	"perp-core-sol/internal/consts"
	"perp-core-sol/internal/perp/amm"
	"perp-core-sol/internal/perp/ledger"
	"perp-core-sol/internal/perp/market"
	"perp-core-sol/internal/perp/metrics"
	"perp-core-sol/internal/perp/notify"
	"perp-core-sol/internal/perp/oracle"
	"perp-core-sol/internal/perp/types"
	"perp-core-sol/internal/pkg/logger"
	"perp-core-sol/internal/pkg/utils"
)

// PoolValidator 建市时校验外部池子账户
type PoolValidator interface {
	ValidatePool(ctx context.Context, pool, tokenMint types.Pubkey) error
}

// Engine 生命周期操作的唯一入口。
// 每个市场内的开平仓、清算、出借操作由市场锁串行化；
// 对外部池子的 swap 成功之后才提交状态，失败回滚已扣的保证金。
type Engine struct {
	admin     types.Pubkey
	markets   *market.Map
	users     *ledger.UserLedger
	oracle    *oracle.Oracle
	exec      amm.TradeExecutor
	vault     amm.Vault
	validator PoolValidator
	notifier  notify.Notifier
}

// Params Engine 构造参数
type Params struct {
	Admin     types.Pubkey
	Oracle    *oracle.Oracle
	Exec      amm.TradeExecutor
	Vault     amm.Vault
	Validator PoolValidator
	Notifier  notify.Notifier
}

func NewEngine(params Params) *Engine {
	notifier := params.Notifier
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &Engine{
		admin:     params.Admin,
		markets:   market.NewMap(),
		users:     ledger.NewUserLedger(),
		oracle:    params.Oracle,
		exec:      params.Exec,
		vault:     params.Vault,
		validator: params.Validator,
		notifier:  notifier,
	}
}

// ------------------------
// 市场管理
// ------------------------

// CreateMarketParams 建市参数，金库地址与池子一起登记
type CreateMarketParams struct {
	Admin           types.Pubkey
	TokenMint       types.Pubkey
	Pool            types.Pubkey
	BaseVault       types.Pubkey
	QuoteVault      types.Pubkey
	MaxPositionSize uint64
}

func (e *Engine) CreateMarket(ctx context.Context, params CreateMarketParams) (err error) {
	defer func() { metrics.RecordOp("create_market", err) }()

	if params.Admin != e.admin {
		return types.ErrUnauthorized
	}
	if e.validator != nil {
		if err = e.validator.ValidatePool(ctx, params.Pool, params.TokenMint); err != nil {
			return err
		}
	}

	m := market.NewMarket(market.InitParams{
		TokenMint:       params.TokenMint,
		PoolAddress:     params.Pool,
		BaseVault:       params.BaseVault,
		QuoteVault:      params.QuoteVault,
		MaxPositionSize: params.MaxPositionSize,
	})
	if err = e.markets.Add(m); err != nil {
		return err
	}
	metrics.ActiveMarkets.Inc()

	logger.Infof("[Engine] market created: mint=%s, pool=%s, maxPositionSize=%d",
		params.TokenMint, params.Pool, params.MaxPositionSize)
	e.emit(types.EventMarketCreated, types.MarketCreatedEvent{
		TokenMint:       params.TokenMint,
		Pool:            params.Pool,
		MaxPositionSize: params.MaxPositionSize,
	})
	return nil
}

// ------------------------
// 托管账本
// ------------------------

func (e *Engine) Deposit(user types.Pubkey, amount uint64) (newBalance uint64, err error) {
	defer func() { metrics.RecordOp("deposit", err) }()

	newBalance, err = e.users.Deposit(user, amount)
	if err != nil {
		return 0, err
	}
	e.emit(types.EventDeposited, types.DepositedEvent{User: user, Amount: amount, NewBalance: newBalance})
	return newBalance, nil
}

func (e *Engine) Withdraw(user types.Pubkey, amount uint64) (newBalance uint64, err error) {
	defer func() { metrics.RecordOp("withdraw", err) }()

	newBalance, err = e.users.Withdraw(user, amount)
	if err != nil {
		return 0, err
	}
	e.emit(types.EventWithdrawn, types.WithdrawnEvent{User: user, Amount: amount, NewBalance: newBalance})
	return newBalance, nil
}

// ------------------------
// 出借池
// ------------------------

func (e *Engine) DepositToLending(user, mkt types.Pubkey, amount uint64) (shares uint64, err error) {
	defer func() { metrics.RecordOp("lending_deposit", err) }()

	m := e.markets.Get(mkt)
	if m == nil {
		return 0, types.ErrMarketNotFound
	}

	m.Lock()
	shares, err = m.Lending.Deposit(user, amount)
	m.Unlock()
	if err != nil {
		return 0, err
	}

	e.emit(types.EventLendingDeposited, types.LendingDepositedEvent{
		User: user, Market: mkt, Amount: amount, Shares: shares,
	})
	return shares, nil
}

func (e *Engine) WithdrawFromLending(user, mkt types.Pubkey, shares uint64) (tokens uint64, err error) {
	defer func() { metrics.RecordOp("lending_withdraw", err) }()

	m := e.markets.Get(mkt)
	if m == nil {
		return 0, types.ErrMarketNotFound
	}

	m.Lock()
	tokens, err = m.Lending.Withdraw(user, shares)
	m.Unlock()
	if err != nil {
		return 0, err
	}

	e.emit(types.EventLendingWithdrawn, types.LendingWithdrawnEvent{
		User: user, Market: mkt, Tokens: tokens, Shares: shares,
	})
	return tokens, nil
}

// ------------------------
// 仓位生命周期
// ------------------------

// OpenParams 开仓参数。SlippageLimit 的含义随方向变化：
// 多头是最少换得 token 数，空头是最少换得 SOL 数。
type OpenParams struct {
	User          types.Pubkey
	Market        types.Pubkey
	Side          types.Side
	Collateral    uint64 // lamports，含开仓手续费
	Leverage      uint64
	SlippageLimit uint64
}

func (e *Engine) OpenPosition(ctx context.Context, params OpenParams) (pos *market.Position, err error) {
	defer func() { metrics.RecordOp("open", err) }()

	if params.Leverage < 1 || params.Leverage > consts.MaxLeverage {
		return nil, types.ErrInvalidLeverage
	}
	if params.Collateral == 0 {
		return nil, types.ErrZeroCollateral
	}

	m := e.markets.Get(params.Market)
	if m == nil {
		return nil, types.ErrMarketNotFound
	}

	m.Lock()
	defer m.Unlock()

	if m.Position(params.User) != nil {
		return nil, types.ErrPositionExists
	}

	fee, _ := utils.MulDiv64(params.Collateral, consts.ProtocolFeeBps, consts.BpsDenominator)
	net := params.Collateral - fee
	size, ok := utils.CheckedMul64(net, params.Leverage)
	if !ok {
		return nil, types.ErrOverflow
	}
	if size > m.MaxPositionSize {
		return nil, types.ErrPositionTooLarge
	}

	entry, err := e.oracle.ReadPrice(ctx, m.BaseVault, m.QuoteVault)
	if err != nil {
		return nil, err
	}
	liqPrice, err := liquidationPrice(params.Side, entry, params.Leverage)
	if err != nil {
		return nil, err
	}

	// 聚合溢出提前检查，swap 之后不再出现可失败的算术
	var aggregate uint64
	if params.Side.IsLong() {
		aggregate, ok = utils.CheckedAdd64(m.TotalLongCollateral, net)
	} else {
		aggregate, ok = utils.CheckedAdd64(m.TotalShortCollateral, net)
	}
	if !ok {
		return nil, types.ErrOverflow
	}

	var tokensToBorrow uint64
	if !params.Side.IsLong() {
		tokensToBorrow, ok = utils.MulDiv64(size, consts.Precision, entry)
		if !ok {
			return nil, types.ErrOverflow
		}
	}

	// 资金占用：先扣保证金（空头再占借贷额度），swap 失败原路退回
	if err = e.users.Debit(params.User, params.Collateral); err != nil {
		return nil, err
	}
	if !params.Side.IsLong() {
		if err = m.Lending.Borrow(tokensToBorrow); err != nil {
			e.refund(params.User, params.Collateral)
			return nil, err
		}
	}

	pos = &market.Position{
		Owner:            params.User,
		Market:           m.TokenMint,
		Side:             params.Side,
		Collateral:       net,
		Leverage:         params.Leverage,
		EntryPrice:       entry,
		LiquidationPrice: liqPrice,
		OpenedAt:         time.Now().Unix(),
	}

	if params.Side.IsLong() {
		tokens, buyErr := e.exec.Buy(ctx, m.TokenMint, size, params.SlippageLimit)
		if buyErr != nil {
			e.refund(params.User, params.Collateral)
			return nil, buyErr
		}
		pos.TokenAmount = tokens
		pos.PositionSizeSol = size
		m.TotalLongCollateral = aggregate
	} else {
		proceeds, sellErr := e.exec.Sell(ctx, m.TokenMint, tokensToBorrow, params.SlippageLimit)
		if sellErr != nil {
			m.Lending.Repay(tokensToBorrow)
			e.refund(params.User, params.Collateral)
			return nil, sellErr
		}
		pos.BorrowedTokens = tokensToBorrow
		pos.PositionSizeSol = proceeds
		m.TotalShortCollateral = aggregate
	}

	if err = m.AddPosition(pos); err != nil {
		// 持锁期间不会出现重复 key
		return nil, err
	}
	m.TotalPositions++
	metrics.OpenPositions.Inc()

	e.emit(types.EventPositionOpened, types.PositionOpenedEvent{
		Owner:            pos.Owner,
		Market:           pos.Market,
		Side:             pos.Side.String(),
		Collateral:       pos.Collateral,
		Leverage:         pos.Leverage,
		EntryPrice:       pos.EntryPrice,
		LiquidationPrice: pos.LiquidationPrice,
	})
	return pos, nil
}

func (e *Engine) ClosePosition(ctx context.Context, user, mkt types.Pubkey, slippageLimit uint64) (payout uint64, err error) {
	defer func() { metrics.RecordOp("close", err) }()

	m := e.markets.Get(mkt)
	if m == nil {
		return 0, types.ErrMarketNotFound
	}

	m.Lock()
	defer m.Unlock()

	p := m.Position(user)
	if p == nil {
		return 0, types.ErrPositionNotFound
	}

	exitPrice, err := e.oracle.ReadPrice(ctx, m.BaseVault, m.QuoteVault)
	if err != nil {
		return 0, err
	}

	var pnl int64
	if p.Side.IsLong() {
		proceeds, sellErr := e.exec.Sell(ctx, m.TokenMint, p.TokenAmount, slippageLimit)
		if sellErr != nil {
			return 0, sellErr
		}
		pnl = int64(proceeds) - int64(p.PositionSizeSol)
		payout = settleAmount(p.Collateral, proceeds, p.PositionSizeSol, closeFee(p.Collateral))
	} else {
		spent, buyErr := e.exec.BuyForClose(ctx, m.TokenMint, p.BorrowedTokens, slippageLimit)
		if buyErr != nil {
			return 0, buyErr
		}
		pnl = int64(p.PositionSizeSol) - int64(spent)
		payout = settleAmount(p.Collateral, p.PositionSizeSol, spent, closeFee(p.Collateral))
	}

	// 入账是 swap 后唯一可失败的一步，放在所有饱和修改之前
	if payout > 0 {
		if _, err = e.users.Credit(user, payout); err != nil {
			return 0, err
		}
	}

	if p.Side.IsLong() {
		m.TotalLongCollateral = utils.SaturatingSub64(m.TotalLongCollateral, p.Collateral)
	} else {
		m.Lending.Repay(p.BorrowedTokens)
		m.TotalShortCollateral = utils.SaturatingSub64(m.TotalShortCollateral, p.Collateral)
	}
	m.TotalPositions = utils.SaturatingSub64(m.TotalPositions, 1)
	m.RemovePosition(user)
	metrics.OpenPositions.Dec()

	e.emit(types.EventPositionClosed, types.PositionClosedEvent{
		Owner:      p.Owner,
		Market:     p.Market,
		Side:       p.Side.String(),
		EntryPrice: p.EntryPrice,
		ExitPrice:  exitPrice,
		Pnl:        pnl,
		Payout:     payout,
	})
	return payout, nil
}

func (e *Engine) Liquidate(ctx context.Context, liquidator, mkt, owner types.Pubkey, slippageLimit uint64) (err error) {
	defer func() { metrics.RecordOp("liquidate", err) }()

	m := e.markets.Get(mkt)
	if m == nil {
		return types.ErrMarketNotFound
	}

	m.Lock()
	defer m.Unlock()

	p := m.Position(owner)
	if p == nil {
		return types.ErrPositionNotFound
	}

	price, err := e.oracle.ReadPrice(ctx, m.BaseVault, m.QuoteVault)
	if err != nil {
		return err
	}
	if p.Side.IsLong() {
		if price > p.LiquidationPrice {
			return types.ErrNotLiquidatable
		}
	} else {
		if price < p.LiquidationPrice {
			return types.ErrNotLiquidatable
		}
	}

	// 无平仓手续费；remaining 为强平后剩余价值
	var remaining uint64
	if p.Side.IsLong() {
		remaining, err = e.exec.Sell(ctx, m.TokenMint, p.TokenAmount, slippageLimit)
		if err != nil {
			return err
		}
	} else {
		var spent uint64
		spent, err = e.exec.BuyForClose(ctx, m.TokenMint, p.BorrowedTokens, slippageLimit)
		if err != nil {
			return err
		}
		remaining = utils.SaturatingSub64(p.PositionSizeSol, spent)
	}

	reward, _ := utils.MulDiv64(remaining, consts.LiquidatorRewardBps, consts.BpsDenominator)
	toOwner := remaining - reward

	// 清算奖励从协议金库原生支付，不经过托管账本
	if reward > 0 && e.vault != nil {
		if err = e.vault.TransferNative(ctx, liquidator, reward); err != nil {
			return err
		}
	}
	if toOwner > 0 {
		if _, err = e.users.Credit(owner, toOwner); err != nil {
			return err
		}
	}

	if p.Side.IsLong() {
		m.TotalLongCollateral = utils.SaturatingSub64(m.TotalLongCollateral, p.Collateral)
	} else {
		m.Lending.Repay(p.BorrowedTokens)
		m.TotalShortCollateral = utils.SaturatingSub64(m.TotalShortCollateral, p.Collateral)
	}
	m.TotalPositions = utils.SaturatingSub64(m.TotalPositions, 1)
	m.RemovePosition(owner)
	metrics.OpenPositions.Dec()
	metrics.LiquidationsTotal.Inc()

	logger.Infof("[Engine] position liquidated: market=%s, owner=%s, liquidator=%s, reward=%d, toOwner=%d",
		mkt, owner, liquidator, reward, toOwner)
	e.emit(types.EventPositionLiquidated, types.PositionLiquidatedEvent{
		Owner:      p.Owner,
		Market:     p.Market,
		Side:       p.Side.String(),
		Liquidator: liquidator,
		Reward:     reward,
		ToOwner:    toOwner,
		ExitPrice:  price,
	})
	return nil
}

// ------------------------
// 查询
// ------------------------

func (e *Engine) Balance(user types.Pubkey) (uint64, bool) {
	return e.users.Balance(user)
}

func (e *Engine) PositionOf(mkt, owner types.Pubkey) (market.Position, error) {
	m := e.markets.Get(mkt)
	if m == nil {
		return market.Position{}, types.ErrMarketNotFound
	}

	m.Lock()
	defer m.Unlock()

	p := m.Position(owner)
	if p == nil {
		return market.Position{}, types.ErrPositionNotFound
	}
	return *p, nil
}

func (e *Engine) LenderShares(mkt, owner types.Pubkey) (uint64, error) {
	m := e.markets.Get(mkt)
	if m == nil {
		return 0, types.ErrMarketNotFound
	}

	m.Lock()
	defer m.Unlock()
	return m.Lending.LenderShares(owner), nil
}

func (e *Engine) MarketStats(mkt types.Pubkey) (market.Stats, error) {
	m := e.markets.Get(mkt)
	if m == nil {
		return market.Stats{}, types.ErrMarketNotFound
	}
	return m.Snapshot(), nil
}

func (e *Engine) AllMarketStats() []market.Stats {
	list := e.markets.List()
	out := make([]market.Stats, 0, len(list))
	for _, m := range list {
		out = append(out, m.Snapshot())
	}
	return out
}

// Candidate 可清算仓位巡检结果
type Candidate struct {
	Market types.Pubkey
	Owner  types.Pubkey
	Side   types.Side
}

// LiquidatableCandidates 按当前池价筛选越过清算线的仓位。
// 读价失败的市场跳过，留到下一轮巡检。
func (e *Engine) LiquidatableCandidates(ctx context.Context) []Candidate {
	var out []Candidate
	for _, m := range e.markets.List() {
		price, err := e.oracle.ReadPrice(ctx, m.BaseVault, m.QuoteVault)
		if err != nil {
			continue
		}
		for _, p := range m.SnapshotPositions() {
			liquidatable := (p.Side.IsLong() && price <= p.LiquidationPrice) ||
				(!p.Side.IsLong() && price >= p.LiquidationPrice)
			if liquidatable {
				out = append(out, Candidate{Market: m.TokenMint, Owner: p.Owner, Side: p.Side})
			}
		}
	}
	return out
}

// ------------------------
// 内部工具
// ------------------------

// refund swap 失败时退回保证金。账户刚被扣款，加回不可能溢出。
func (e *Engine) refund(user types.Pubkey, amount uint64) {
	if _, err := e.users.Credit(user, amount); err != nil {
		logger.Errorf("[Engine] refund failed: user=%s, amount=%d, err=%v", user, amount, err)
	}
}

func (e *Engine) emit(eventType string, data any) {
	e.notifier.Notify(types.Event{
		Type:   eventType,
		TimeMs: time.Now().UnixMilli(),
		Data:   data,
	})
}

// closeFee 平仓手续费，按入仓时已扣费的保证金计
func closeFee(collateral uint64) uint64 {
	fee, _ := utils.MulDiv64(collateral, consts.ProtocolFeeBps, consts.BpsDenominator)
	return fee
}

// settleAmount 结算净入账：max(0, collateral + gain - loss - fee)，全程无符号饱和
func settleAmount(collateral, gain, loss, fee uint64) uint64 {
	plus := utils.SaturatingAdd64(collateral, gain)
	minus := utils.SaturatingAdd64(loss, fee)
	return utils.SaturatingSub64(plus, minus)
}

// liquidationPrice 清算线：多头 entry*(10000-7000/leverage)/10000，空头反向。
// 7000/leverage 取整后再落到价格上，与仓位记录的阈值口径一致。
func liquidationPrice(side types.Side, entryPrice, leverage uint64) (uint64, error) {
	thresholdBps := consts.LiquidationThresholdBps / leverage

	var liq uint64
	var ok bool
	if side.IsLong() {
		liq, ok = utils.MulDiv64(entryPrice, consts.BpsDenominator-thresholdBps, consts.BpsDenominator)
	} else {
		liq, ok = utils.MulDiv64(entryPrice, consts.BpsDenominator+thresholdBps, consts.BpsDenominator)
	}
	if !ok {
		return 0, types.ErrOverflow
	}
	return liq, nil
}
