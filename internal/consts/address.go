package consts

// Base58 地址常量（可读性高，适合配置与日志使用）
const (
	// 结算币 SOL 的 wrap 形式，swap 以 WSOL 计价
	WSOLMintStr = "So11111111111111111111111111111111111111112"

	// 外部现货流动性池所属的 AMM 程序
	PumpswapProgramStr = "pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA"
)
