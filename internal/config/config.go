package config

import (
	"fmt"

	"perp-core-sol/internal/pkg/logger"
	"perp-core-sol/internal/pkg/mq"
)

type ServerConfig struct {
	Port int `json:"port" yaml:"port"` // REST 服务端口
}

type LogConfig struct {
	Format   string `json:"format" yaml:"format"`     // 日志格式，可选 "console"（开发调试）或 "json"（结构化，推荐生产使用）
	LogDir   string `json:"log_dir" yaml:"log_dir"`   // 日志文件目录，可为相对路径或绝对路径
	Level    string `json:"level" yaml:"level"`       // 日志级别：debug / info / warn / error
	Compress bool   `json:"compress" yaml:"compress"` // 是否压缩旧日志文件
}

func (c *LogConfig) ToLogOption() logger.LogOption {
	return logger.LogOption{
		Format:   c.Format,
		LogDir:   c.LogDir,
		Level:    c.Level,
		Compress: c.Compress,
	}
}

type RpcConf struct {
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	TimeoutMs int    `yaml:"timeout_ms" json:"timeout_ms"`
}

// AmmMarketConf pumpswap 模式下单个市场的全部外部账户（base58）
type AmmMarketConf struct {
	TokenMint  string `json:"token_mint" yaml:"token_mint"`
	Pool       string `json:"pool" yaml:"pool"`
	TokenVault string `json:"token_vault" yaml:"token_vault"`
	WsolVault  string `json:"wsol_vault" yaml:"wsol_vault"`

	PoolBaseVault  string `json:"pool_base_vault" yaml:"pool_base_vault"`
	PoolQuoteVault string `json:"pool_quote_vault" yaml:"pool_quote_vault"`

	Global                    string `json:"global" yaml:"global"`
	ProtocolFeeRecipient      string `json:"protocol_fee_recipient" yaml:"protocol_fee_recipient"`
	ProtocolFeeRecipientAta   string `json:"protocol_fee_recipient_ata" yaml:"protocol_fee_recipient_ata"`
	CoinCreatorVaultAta       string `json:"coin_creator_vault_ata" yaml:"coin_creator_vault_ata"`
	CoinCreatorVaultAuthority string `json:"coin_creator_vault_authority" yaml:"coin_creator_vault_authority"`
	GlobalVolumeAccumulator   string `json:"global_volume_accumulator" yaml:"global_volume_accumulator"`
	UserVolumeAccumulator     string `json:"user_volume_accumulator" yaml:"user_volume_accumulator"`
	FeeConfig                 string `json:"fee_config" yaml:"fee_config"`
	FeeProgram                string `json:"fee_program" yaml:"fee_program"`
	EventAuthority            string `json:"event_authority" yaml:"event_authority"`
}

// AmmConfig swap 执行器配置。
// mode = "sim" 走本地定价模拟（开发/测试）；"pumpswap" 走真实池子。
type AmmConfig struct {
	Mode     string          `json:"mode" yaml:"mode"`
	SimPrice uint64          `json:"sim_price" yaml:"sim_price"` // sim 模式初始价（1e12 定点）
	VaultKey string          `json:"vault_key" yaml:"vault_key"` // 协议金库私钥（base58），pumpswap 模式必填
	Markets  []AmmMarketConf `json:"markets" yaml:"markets"`
}

// MarketConf 启动时预建的市场
type MarketConf struct {
	TokenMint       string `json:"token_mint" yaml:"token_mint"`
	Pool            string `json:"pool" yaml:"pool"`
	BaseVault       string `json:"base_vault" yaml:"base_vault"`
	QuoteVault      string `json:"quote_vault" yaml:"quote_vault"`
	MaxPositionSize uint64 `json:"max_position_size" yaml:"max_position_size"`
}

// LiquidationConfig 清算巡检配置，keeper 为空则关闭巡检。
// 滑点参数两侧分开配：多头强平是卖出，空头强平是回补买入，方向不同界限含义相反。
type LiquidationConfig struct {
	Keeper     string `json:"keeper" yaml:"keeper"`           // 清算人身份（base58 pubkey）
	IntervalMs int    `json:"interval_ms" yaml:"interval_ms"` // 巡检间隔
	MinSolOut  uint64 `json:"min_sol_out" yaml:"min_sol_out"` // 多头强平卖出的 SOL 下限
	MaxSolIn   uint64 `json:"max_sol_in" yaml:"max_sol_in"`   // 空头回补的 SOL 花费上限，0 为不设限
}

type Config struct {
	ServerConf          ServerConfig          `json:"server" yaml:"server"`                 // REST 配置
	LogConf             LogConfig             `json:"logger" yaml:"logger"`                 // 日志配置
	Rpc                 RpcConf               `json:"rpc" yaml:"rpc"`                       // Solana RPC 配置
	Admin               string                `json:"admin" yaml:"admin"`                   // 管理员 pubkey（base58）
	Amm                 AmmConfig             `json:"amm" yaml:"amm"`                       // swap 执行器配置
	Markets             []MarketConf          `json:"markets" yaml:"markets"`               // 预建市场
	Liquidation         LiquidationConfig     `json:"liquidation" yaml:"liquidation"`       // 清算巡检配置
	KafkaProducerConfig *mq.KafkaProducerConf `json:"kafka_producer" yaml:"kafka_producer"` // 事件推送配置，缺省不推送
}

func (c *Config) Validate() error {
	if c.ServerConf.Port <= 0 {
		return fmt.Errorf("server.port must be positive, got %d", c.ServerConf.Port)
	}
	if c.Admin == "" {
		return fmt.Errorf("admin pubkey is required")
	}
	switch c.Amm.Mode {
	case "sim":
		if c.Amm.SimPrice == 0 {
			return fmt.Errorf("amm.sim_price must be positive in sim mode")
		}
	case "pumpswap":
		if c.Rpc.Endpoint == "" {
			return fmt.Errorf("rpc.endpoint is required in pumpswap mode")
		}
		if c.Amm.VaultKey == "" {
			return fmt.Errorf("amm.vault_key is required in pumpswap mode")
		}
	default:
		return fmt.Errorf("amm.mode must be sim or pumpswap, got %q", c.Amm.Mode)
	}
	if c.Liquidation.Keeper != "" && c.Liquidation.IntervalMs <= 0 {
		return fmt.Errorf("liquidation.interval_ms must be positive when keeper is set")
	}
	return nil
}
