package svc

import (
	"fmt"

	"perp-core-sol/internal/config"
	"perp-core-sol/internal/perp/amm"
	"perp-core-sol/internal/perp/engine"
	"perp-core-sol/internal/perp/notify"
	"perp-core-sol/internal/perp/oracle"
	"perp-core-sol/internal/perp/types"
)

type ServiceContext struct {
	Cfg   *config.Config
	Admin types.Pubkey

	Oracle    *oracle.Oracle
	Exec      amm.TradeExecutor
	Vault     amm.Vault
	Validator engine.PoolValidator // sim 模式下为 nil，跳过池子校验

	Notifier      notify.Notifier
	KafkaNotifier *notify.KafkaNotifier // 非 nil 时需要随服务启停
}

func NewServiceContext(c *config.Config) *ServiceContext {
	admin, err := types.TryPubkeyFromString(c.Admin)
	if err != nil {
		panic(fmt.Sprintf("invalid admin pubkey: %v", err))
	}

	svcCtx := &ServiceContext{
		Cfg:      c,
		Admin:    admin,
		Notifier: notify.NopNotifier{},
	}

	switch c.Amm.Mode {
	case "sim":
		sim := amm.NewSimExecutor(c.Amm.SimPrice)
		svcCtx.Exec = sim
		svcCtx.Vault = sim
		svcCtx.Oracle = oracle.NewOracle(sim)

	case "pumpswap":
		markets := make([]amm.MarketAccounts, 0, len(c.Amm.Markets))
		for _, mc := range c.Amm.Markets {
			acct, err := parseMarketAccounts(mc)
			if err != nil {
				panic(fmt.Sprintf("invalid amm market conf: %v", err))
			}
			markets = append(markets, acct)
		}

		exec, err := amm.NewPumpswapExecutor(c.Rpc.Endpoint, c.Rpc.TimeoutMs, c.Amm.VaultKey, markets)
		if err != nil {
			panic(fmt.Sprintf("create pumpswap executor failed: %v", err))
		}
		reader := oracle.NewRpcReserveReader(c.Rpc.Endpoint, c.Rpc.TimeoutMs)

		svcCtx.Exec = exec
		svcCtx.Vault = exec
		svcCtx.Oracle = oracle.NewOracle(reader)
		svcCtx.Validator = reader

	default:
		panic(fmt.Sprintf("unknown amm mode: %q", c.Amm.Mode))
	}

	if c.KafkaProducerConfig != nil {
		notifier, err := notify.NewKafkaNotifier(c.KafkaProducerConfig)
		if err != nil {
			panic(fmt.Sprintf("create kafka notifier failed: %v", err))
		}
		svcCtx.Notifier = notifier
		svcCtx.KafkaNotifier = notifier
	}

	return svcCtx
}

func parseMarketAccounts(mc config.AmmMarketConf) (amm.MarketAccounts, error) {
	var acct amm.MarketAccounts

	parse := func(name, src string, dst *types.Pubkey) error {
		pk, err := types.TryPubkeyFromString(src)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = pk
		return nil
	}

	pairs := []struct {
		name string
		src  string
		dst  *types.Pubkey
	}{
		{"token_mint", mc.TokenMint, &acct.TokenMint},
		{"pool", mc.Pool, &acct.Pool},
		{"token_vault", mc.TokenVault, &acct.TokenVault},
		{"wsol_vault", mc.WsolVault, &acct.WsolVault},
		{"pool_base_vault", mc.PoolBaseVault, &acct.PoolBaseVault},
		{"pool_quote_vault", mc.PoolQuoteVault, &acct.PoolQuoteVault},
		{"global", mc.Global, &acct.Global},
		{"protocol_fee_recipient", mc.ProtocolFeeRecipient, &acct.ProtocolFeeRecipient},
		{"protocol_fee_recipient_ata", mc.ProtocolFeeRecipientAta, &acct.ProtocolFeeRecipientAta},
		{"coin_creator_vault_ata", mc.CoinCreatorVaultAta, &acct.CoinCreatorVaultAta},
		{"coin_creator_vault_authority", mc.CoinCreatorVaultAuthority, &acct.CoinCreatorVaultAuthority},
		{"global_volume_accumulator", mc.GlobalVolumeAccumulator, &acct.GlobalVolumeAccumulator},
		{"user_volume_accumulator", mc.UserVolumeAccumulator, &acct.UserVolumeAccumulator},
		{"fee_config", mc.FeeConfig, &acct.FeeConfig},
		{"fee_program", mc.FeeProgram, &acct.FeeProgram},
		{"event_authority", mc.EventAuthority, &acct.EventAuthority},
	}
	for _, p := range pairs {
		if err := parse(p.name, p.src, p.dst); err != nil {
			return amm.MarketAccounts{}, err
		}
	}
	return acct, nil
}
