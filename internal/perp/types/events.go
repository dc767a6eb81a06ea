package types

// 对外通知事件（成功操作后推送，字段与链上版本的 event 保持一致）

const (
	EventMarketCreated      = "market_created"
	EventDeposited          = "deposited"
	EventWithdrawn          = "withdrawn"
	EventLendingDeposited   = "lending_deposited"
	EventLendingWithdrawn   = "lending_withdrawn"
	EventPositionOpened     = "position_opened"
	EventPositionClosed     = "position_closed"
	EventPositionLiquidated = "position_liquidated"
)

// Event 推送消息外层结构
type Event struct {
	Type   string `json:"type"`
	TimeMs int64  `json:"time_ms"`
	Data   any    `json:"data"`
}

type MarketCreatedEvent struct {
	TokenMint       Pubkey `json:"token_mint"`
	Pool            Pubkey `json:"pool"`
	MaxPositionSize uint64 `json:"max_position_size"`
}

type DepositedEvent struct {
	User       Pubkey `json:"user"`
	Amount     uint64 `json:"amount"`
	NewBalance uint64 `json:"new_balance"`
}

type WithdrawnEvent struct {
	User       Pubkey `json:"user"`
	Amount     uint64 `json:"amount"`
	NewBalance uint64 `json:"new_balance"`
}

type LendingDepositedEvent struct {
	User   Pubkey `json:"user"`
	Market Pubkey `json:"market"`
	Amount uint64 `json:"amount"`
	Shares uint64 `json:"shares"`
}

type LendingWithdrawnEvent struct {
	User   Pubkey `json:"user"`
	Market Pubkey `json:"market"`
	Tokens uint64 `json:"tokens"`
	Shares uint64 `json:"shares"`
}

type PositionOpenedEvent struct {
	Owner            Pubkey `json:"owner"`
	Market           Pubkey `json:"market"`
	Side             string `json:"side"`
	Collateral       uint64 `json:"collateral"` // 扣除手续费后的保证金
	Leverage         uint64 `json:"leverage"`
	EntryPrice       uint64 `json:"entry_price"`
	LiquidationPrice uint64 `json:"liquidation_price"`
}

type PositionClosedEvent struct {
	Owner      Pubkey `json:"owner"`
	Market     Pubkey `json:"market"`
	Side       string `json:"side"`
	EntryPrice uint64 `json:"entry_price"`
	ExitPrice  uint64 `json:"exit_price"`
	Pnl        int64  `json:"pnl"`
	Payout     uint64 `json:"payout"`
}

type PositionLiquidatedEvent struct {
	Owner      Pubkey `json:"owner"`
	Market     Pubkey `json:"market"`
	Side       string `json:"side"`
	Liquidator Pubkey `json:"liquidator"`
	Reward     uint64 `json:"reward"`
	ToOwner    uint64 `json:"to_owner"`
	ExitPrice  uint64 `json:"exit_price"`
}
