package oracle

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"perp-core-sol/internal/consts"
	"perp-core-sol/internal/perp/types"

	"github.com/blocto/solana-go-sdk/client"
)

// RpcReserveReader 通过 Solana RPC 批量读取金库账户余额
type RpcReserveReader struct {
	cli     *client.Client
	timeout time.Duration
}

func NewRpcReserveReader(endpoint string, timeoutMs int) *RpcReserveReader {
	return &RpcReserveReader{
		cli:     client.NewClient(endpoint),
		timeout: time.Duration(timeoutMs) * time.Millisecond,
	}
}

func (r *RpcReserveReader) ReadReserves(ctx context.Context, baseVault, quoteVault types.Pubkey) (uint64, uint64, error) {
	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	infos, err := r.cli.GetMultipleAccounts(reqCtx, []string{baseVault.String(), quoteVault.String()})
	if err != nil {
		return 0, 0, fmt.Errorf("GetMultipleAccounts failed: %w", err)
	}
	if len(infos) != 2 {
		return 0, 0, fmt.Errorf("reserve account count mismatch: got %d, want 2", len(infos))
	}

	base, err := ParseTokenAmount(infos[0].Data)
	if err != nil {
		return 0, 0, err
	}
	quote, err := ParseTokenAmount(infos[1].Data)
	if err != nil {
		return 0, 0, err
	}
	return base, quote, nil
}

// ValidatePool 校验外部池子账户：属主程序必须是 pumpswap，
// 且池子记录的 base mint（偏移 43）与市场的 token mint 一致。
func (r *RpcReserveReader) ValidatePool(ctx context.Context, pool, tokenMint types.Pubkey) error {
	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	info, err := r.cli.GetAccountInfo(reqCtx, pool.String())
	if err != nil {
		return fmt.Errorf("GetAccountInfo failed: %w", err)
	}
	if info.Owner.String() != consts.PumpswapProgramStr {
		return types.ErrInvalidPool
	}
	if len(info.Data) < consts.PoolBaseMintOffset+32 {
		return types.ErrInvalidPool
	}
	if !bytes.Equal(info.Data[consts.PoolBaseMintOffset:consts.PoolBaseMintOffset+32], tokenMint[:]) {
		return types.ErrPoolMintMismatch
	}
	return nil
}
