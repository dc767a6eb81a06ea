package consts

// 协议参数（固定常量，不支持运行时治理）
const (
	MaxLeverage             uint64 = 10
	LiquidationThresholdBps uint64 = 7000 // 保证金亏损约 70%/leverage 时触发清算
	LiquidatorRewardBps     uint64 = 500
	ProtocolFeeBps          uint64 = 30
	BpsDenominator          uint64 = 10_000

	// 价格定点精度：price = quote * Precision / base
	Precision uint64 = 1_000_000_000_000
)

// 外部池子账户的字节布局
const (
	// pumpswap Pool 账户中 base mint 字段的偏移
	PoolBaseMintOffset = 43
	// SPL Token 账户中 amount 字段（u64 LE）的偏移
	TokenAmountOffset = 64
	// SPL Token 账户最小数据长度
	TokenAccountDataLen = 165
)

// pumpswap 指令的 8 字节 discriminator
var (
	BuyDiscriminator  = [8]byte{102, 6, 61, 18, 1, 218, 235, 234}
	SellDiscriminator = [8]byte{51, 230, 133, 164, 1, 127, 131, 173}
)
