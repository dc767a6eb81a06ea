package amm

import (
	"context"

	"perp-core-sol/internal/perp/types"
)

// TradeExecutor 封装对外部现货池的单笔 swap。
// 三个操作都只信任 swap 前后的真实余额差，从不采信对方声明的成交量；
// 余额差与交易方向不符返回 ErrSwapFailed，越过滑点界限返回 ErrSlippageExceeded。
// mkt 为市场的 token mint，实现据此定位该市场的池子账户。
type TradeExecutor interface {
	// Buy 精确花费 solIn，返回实际换得的 token 数量
	Buy(ctx context.Context, mkt types.Pubkey, solIn, minTokensOut uint64) (uint64, error)

	// Sell 精确卖出 tokensIn，返回实际换得的 SOL 数量
	Sell(ctx context.Context, mkt types.Pubkey, tokensIn, minSolOut uint64) (uint64, error)

	// BuyForClose 精确买回 tokensOutExact 个 token（空头平仓回补），
	// 返回实际花费的 SOL；花费超过 maxSolIn 视为滑点越界
	BuyForClose(ctx context.Context, mkt types.Pubkey, tokensOutExact, maxSolIn uint64) (uint64, error)
}

// Vault 协议金库的原生转账出口。
// 只用于清算奖励：直接付给清算人的原生余额，不经过托管账本。
type Vault interface {
	TransferNative(ctx context.Context, to types.Pubkey, lamports uint64) error
}
