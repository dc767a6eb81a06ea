package oracle

import (
	"context"
	"encoding/binary"

	"perp-core-sol/internal/consts"
	"perp-core-sol/internal/perp/types"
	"perp-core-sol/internal/pkg/utils"
)

// ReserveReader 读取外部池子两侧金库的余额（base token / quote SOL）。
// 生产实现走 RPC，测试用确定性实现。
type ReserveReader interface {
	ReadReserves(ctx context.Context, baseVault, quoteVault types.Pubkey) (base uint64, quote uint64, err error)
}

// Oracle 即时现货价格读取，无任何缓存：
// 每个生命周期操作在使用前重新读取，报价与成交之间价格允许变化，
// 滑点由 TradeExecutor 兜底，不在这里约束。
type Oracle struct {
	reader ReserveReader
}

func NewOracle(reader ReserveReader) *Oracle {
	return &Oracle{reader: reader}
}

// ReadPrice 读取池子现价（1e12 定点）
func (o *Oracle) ReadPrice(ctx context.Context, baseVault, quoteVault types.Pubkey) (uint64, error) {
	base, quote, err := o.reader.ReadReserves(ctx, baseVault, quoteVault)
	if err != nil {
		return 0, err
	}
	return PoolPrice(base, quote)
}

// PoolPrice 由两侧储备推算定点价格：price = quote * Precision / base
func PoolPrice(base, quote uint64) (uint64, error) {
	if base == 0 {
		return 0, types.ErrEmptyPool
	}
	price, ok := utils.MulDiv64(quote, consts.Precision, base)
	if !ok {
		return 0, types.ErrOverflow
	}
	return price, nil
}

// ParseTokenAmount 从 SPL Token 账户数据中解析 amount 字段（u64 LE，偏移 64）
func ParseTokenAmount(data []byte) (uint64, error) {
	if len(data) < consts.TokenAmountOffset+8 {
		return 0, types.ErrInvalidPool
	}
	return binary.LittleEndian.Uint64(data[consts.TokenAmountOffset : consts.TokenAmountOffset+8]), nil
}
