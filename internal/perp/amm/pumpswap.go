package amm

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"perp-core-sol/internal/consts"
	"perp-core-sol/internal/perp/oracle"
	"perp-core-sol/internal/perp/types"
	"perp-core-sol/internal/pkg/utils"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/system"
	"github.com/blocto/solana-go-sdk/program/token"
	"github.com/blocto/solana-go-sdk/rpc"
	sdktypes "github.com/blocto/solana-go-sdk/types"
)

// MarketAccounts 单个市场 swap 所需的全部外部账户（来自配置，启动后只读）
type MarketAccounts struct {
	TokenMint  types.Pubkey // 市场标的 mint，同时作为 map 键
	Pool       types.Pubkey
	TokenVault types.Pubkey // 协议持有的 token ATA
	WsolVault  types.Pubkey // 协议持有的 wSOL ATA

	PoolBaseVault  types.Pubkey
	PoolQuoteVault types.Pubkey

	Global                    types.Pubkey
	ProtocolFeeRecipient      types.Pubkey
	ProtocolFeeRecipientAta   types.Pubkey
	CoinCreatorVaultAta       types.Pubkey
	CoinCreatorVaultAuthority types.Pubkey
	GlobalVolumeAccumulator   types.Pubkey
	UserVolumeAccumulator     types.Pubkey
	FeeConfig                 types.Pubkey
	FeeProgram                types.Pubkey
	EventAuthority            types.Pubkey
}

// PumpswapExecutor 通过协议金库对 pumpswap 池执行真实 swap。
// 成交量一律以金库 ATA 在 swap 前后的链上余额差为准。
type PumpswapExecutor struct {
	cli     *client.Client
	vault   sdktypes.Account // 协议金库，fee payer 兼 swap 签名者
	markets map[types.Pubkey]*MarketAccounts
	timeout time.Duration
}

const confirmPollInterval = 400 * time.Millisecond

func NewPumpswapExecutor(
	endpoint string,
	timeoutMs int,
	vaultKey string,
	markets []MarketAccounts,
) (*PumpswapExecutor, error) {
	vault, err := sdktypes.AccountFromBase58(vaultKey)
	if err != nil {
		return nil, fmt.Errorf("invalid vault key: %w", err)
	}

	m := make(map[types.Pubkey]*MarketAccounts, len(markets))
	for i := range markets {
		acct := markets[i]
		m[acct.TokenMint] = &acct
	}

	return &PumpswapExecutor{
		cli:     client.NewClient(endpoint),
		vault:   vault,
		markets: m,
		timeout: time.Duration(timeoutMs) * time.Millisecond,
	}, nil
}

func (e *PumpswapExecutor) Buy(ctx context.Context, mkt types.Pubkey, solIn, minTokensOut uint64) (uint64, error) {
	acct, ok := e.markets[mkt]
	if !ok {
		return 0, types.ErrMarketNotFound
	}

	before, err := e.readTokenBalance(ctx, acct.TokenVault)
	if err != nil {
		return 0, err
	}

	// 先把 SOL 包装进 wSOL ATA，再与 swap 指令同交易执行
	ixs := []sdktypes.Instruction{
		system.Transfer(system.TransferParam{
			From:   e.vault.PublicKey,
			To:     pk(acct.WsolVault),
			Amount: solIn,
		}),
		token.SyncNative(token.SyncNativeParam{
			Account: pk(acct.WsolVault),
		}),
		e.buyInstruction(acct, minTokensOut, solIn),
	}
	if err := e.sendAndConfirm(ctx, ixs); err != nil {
		return 0, err
	}

	after, err := e.readTokenBalance(ctx, acct.TokenVault)
	if err != nil {
		return 0, err
	}
	received, ok := utils.CheckedSub64(after, before)
	if !ok {
		return 0, types.ErrSwapFailed
	}
	if received < minTokensOut {
		return 0, types.ErrSlippageExceeded
	}
	return received, nil
}

func (e *PumpswapExecutor) Sell(ctx context.Context, mkt types.Pubkey, tokensIn, minSolOut uint64) (uint64, error) {
	acct, ok := e.markets[mkt]
	if !ok {
		return 0, types.ErrMarketNotFound
	}

	before, err := e.readTokenBalance(ctx, acct.WsolVault)
	if err != nil {
		return 0, err
	}

	data := make([]byte, 0, 24)
	data = append(data, consts.SellDiscriminator[:]...)
	data = binary.LittleEndian.AppendUint64(data, tokensIn)  // base_amount_in
	data = binary.LittleEndian.AppendUint64(data, minSolOut) // min_quote_amount_out

	ix := sdktypes.Instruction{
		ProgramID: common.PublicKeyFromString(consts.PumpswapProgramStr),
		Accounts:  e.sellAccounts(acct),
		Data:      data,
	}
	if err := e.sendAndConfirm(ctx, []sdktypes.Instruction{ix}); err != nil {
		return 0, err
	}

	after, err := e.readTokenBalance(ctx, acct.WsolVault)
	if err != nil {
		return 0, err
	}
	received, ok := utils.CheckedSub64(after, before)
	if !ok {
		return 0, types.ErrSwapFailed
	}
	if received < minSolOut {
		return 0, types.ErrSlippageExceeded
	}
	return received, nil
}

func (e *PumpswapExecutor) BuyForClose(ctx context.Context, mkt types.Pubkey, tokensOutExact, maxSolIn uint64) (uint64, error) {
	acct, ok := e.markets[mkt]
	if !ok {
		return 0, types.ErrMarketNotFound
	}

	before, err := e.readTokenBalance(ctx, acct.WsolVault)
	if err != nil {
		return 0, err
	}

	// 回补不做 wrap：空头开仓卖出所得一直以 wSOL 形式留在金库，直接花掉
	ix := e.buyInstruction(acct, tokensOutExact, maxSolIn)
	if err := e.sendAndConfirm(ctx, []sdktypes.Instruction{ix}); err != nil {
		return 0, err
	}

	after, err := e.readTokenBalance(ctx, acct.WsolVault)
	if err != nil {
		return 0, err
	}
	return measureSpend(before, after, maxSolIn)
}

// measureSpend 回补花费按 wSOL 余额纯减量计量。
// 余额不降反升说明交易与方向不符，花费越过上限按滑点越界处理。
func measureSpend(before, after, maxSolIn uint64) (uint64, error) {
	spent, ok := utils.CheckedSub64(before, after)
	if !ok {
		return 0, types.ErrSwapFailed
	}
	if spent > maxSolIn {
		return 0, types.ErrSlippageExceeded
	}
	return spent, nil
}

func (e *PumpswapExecutor) TransferNative(ctx context.Context, to types.Pubkey, lamports uint64) error {
	ix := system.Transfer(system.TransferParam{
		From:   e.vault.PublicKey,
		To:     pk(to),
		Amount: lamports,
	})
	return e.sendAndConfirm(ctx, []sdktypes.Instruction{ix})
}

// buyInstruction buy 与空头回补共用同一条指令，仅语义不同：
// base_amount_out 为期望 token 数，max_quote_amount_in 为 SOL 花费上限
func (e *PumpswapExecutor) buyInstruction(acct *MarketAccounts, baseOut, maxQuoteIn uint64) sdktypes.Instruction {
	data := make([]byte, 0, 25)
	data = append(data, consts.BuyDiscriminator[:]...)
	data = binary.LittleEndian.AppendUint64(data, baseOut)
	data = binary.LittleEndian.AppendUint64(data, maxQuoteIn)
	data = append(data, 0) // track_volume = false

	return sdktypes.Instruction{
		ProgramID: common.PublicKeyFromString(consts.PumpswapProgramStr),
		Accounts:  e.buyAccounts(acct),
		Data:      data,
	}
}

// 账户顺序严格遵循 pumpswap IDL
func (e *PumpswapExecutor) buyAccounts(acct *MarketAccounts) []sdktypes.AccountMeta {
	return append(e.swapAccountsCommon(acct),
		sdktypes.AccountMeta{PubKey: pk(acct.GlobalVolumeAccumulator)},
		sdktypes.AccountMeta{PubKey: pk(acct.UserVolumeAccumulator), IsWritable: true},
		sdktypes.AccountMeta{PubKey: pk(acct.FeeConfig)},
		sdktypes.AccountMeta{PubKey: pk(acct.FeeProgram)},
	)
}

func (e *PumpswapExecutor) sellAccounts(acct *MarketAccounts) []sdktypes.AccountMeta {
	return append(e.swapAccountsCommon(acct),
		sdktypes.AccountMeta{PubKey: pk(acct.FeeConfig)},
		sdktypes.AccountMeta{PubKey: pk(acct.FeeProgram)},
	)
}

func (e *PumpswapExecutor) swapAccountsCommon(acct *MarketAccounts) []sdktypes.AccountMeta {
	pumpswap := common.PublicKeyFromString(consts.PumpswapProgramStr)
	wsol := common.PublicKeyFromString(consts.WSOLMintStr)
	return []sdktypes.AccountMeta{
		{PubKey: pk(acct.Pool), IsWritable: true},
		{PubKey: e.vault.PublicKey, IsSigner: true, IsWritable: true},
		{PubKey: pk(acct.Global)},
		{PubKey: pk(acct.TokenMint)},  // base_mint
		{PubKey: wsol},                // quote_mint
		{PubKey: pk(acct.TokenVault), IsWritable: true},
		{PubKey: pk(acct.WsolVault), IsWritable: true},
		{PubKey: pk(acct.PoolBaseVault), IsWritable: true},
		{PubKey: pk(acct.PoolQuoteVault), IsWritable: true},
		{PubKey: pk(acct.ProtocolFeeRecipient)},
		{PubKey: pk(acct.ProtocolFeeRecipientAta), IsWritable: true},
		{PubKey: common.Token2022ProgramID}, // base_token_program
		{PubKey: common.TokenProgramID},     // quote_token_program
		{PubKey: common.SystemProgramID},
		{PubKey: common.SPLAssociatedTokenAccountProgramID},
		{PubKey: pk(acct.EventAuthority)},
		{PubKey: pumpswap},
		{PubKey: pk(acct.CoinCreatorVaultAta), IsWritable: true},
		{PubKey: pk(acct.CoinCreatorVaultAuthority)},
	}
}

func (e *PumpswapExecutor) readTokenBalance(ctx context.Context, addr types.Pubkey) (uint64, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	info, err := e.cli.GetAccountInfo(reqCtx, addr.String())
	if err != nil {
		return 0, fmt.Errorf("GetAccountInfo failed: %w", err)
	}
	return oracle.ParseTokenAmount(info.Data)
}

func (e *PumpswapExecutor) sendAndConfirm(ctx context.Context, ixs []sdktypes.Instruction) error {
	reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	blockhash, err := e.cli.GetLatestBlockhash(reqCtx)
	if err != nil {
		return fmt.Errorf("GetLatestBlockhash failed: %w", err)
	}

	tx, err := sdktypes.NewTransaction(sdktypes.NewTransactionParam{
		Message: sdktypes.NewMessage(sdktypes.NewMessageParam{
			FeePayer:        e.vault.PublicKey,
			RecentBlockhash: blockhash.Blockhash,
			Instructions:    ixs,
		}),
		Signers: []sdktypes.Account{e.vault},
	})
	if err != nil {
		return fmt.Errorf("build transaction failed: %w", err)
	}

	sig, err := e.cli.SendTransaction(reqCtx, tx)
	if err != nil {
		return fmt.Errorf("SendTransaction failed: %w", err)
	}
	return e.waitConfirmed(reqCtx, sig)
}

func (e *PumpswapExecutor) waitConfirmed(ctx context.Context, sig string) error {
	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("confirm %s: %w", sig, ctx.Err())
		case <-ticker.C:
		}

		status, err := e.cli.GetSignatureStatus(ctx, sig)
		if err != nil || status == nil {
			continue
		}
		if status.Err != nil {
			return types.ErrSwapFailed
		}
		if status.ConfirmationStatus == nil {
			continue
		}
		switch *status.ConfirmationStatus {
		case rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
			return nil
		}
	}
}

func pk(p types.Pubkey) common.PublicKey {
	return common.PublicKeyFromBytes(p[:])
}
