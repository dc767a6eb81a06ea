package types

import "errors"

// 错误分类与链上版本的 ErrorCode 一一对应。
// 校验类/状态类错误在任何账本变更前返回；算术类错误中止整个操作；
// 外部调用类错误发生在 swap 之后、账本提交之前，不会留下部分结算。
var (
	// 校验类
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidLeverage  = errors.New("invalid leverage")
	ErrZeroAmount       = errors.New("zero amount")
	ErrZeroCollateral   = errors.New("zero collateral")
	ErrPositionTooLarge = errors.New("position exceeds market max size")
	ErrInvalidPool      = errors.New("invalid pool account")
	ErrPoolMintMismatch = errors.New("pool base mint mismatch")

	// 状态类
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientShares    = errors.New("insufficient shares")
	ErrInsufficientLiquidity = errors.New("insufficient lending liquidity")
	ErrMarketExists          = errors.New("market already exists")
	ErrMarketNotFound        = errors.New("market not found")
	ErrPositionExists        = errors.New("position already exists")
	ErrPositionNotFound      = errors.New("position not found")
	ErrAccountNotFound       = errors.New("user account not found")

	// 算术类
	ErrOverflow = errors.New("arithmetic overflow")

	// 外部调用类
	ErrSlippageExceeded = errors.New("slippage exceeded")
	ErrSwapFailed       = errors.New("swap failed")
	ErrEmptyPool        = errors.New("empty pool")

	// 清算守卫
	ErrNotLiquidatable = errors.New("position not liquidatable")
)
