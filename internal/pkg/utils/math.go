package utils

import (
	"math"
	"math/bits"
)

// 128 位中间结果的定点运算工具。
// 所有金额都是 uint64（lamports / token 最小单位），乘除必须走 128 位中间值，
// 结果放不进 uint64 时返回 ok=false，由调用方决定中止还是饱和。

// MulDiv64 计算 floor(a*b/den)，中间结果 128 位。
// den 为 0 或商超出 uint64 时返回 ok=false。
func MulDiv64(a, b, den uint64) (uint64, bool) {
	if den == 0 {
		return 0, false
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= den {
		// 商必然超出 64 位
		return 0, false
	}
	q, _ := bits.Div64(hi, lo, den)
	return q, true
}

// CheckedMul64 计算 a*b，溢出返回 ok=false
func CheckedMul64(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi == 0
}

// CheckedAdd64 计算 a+b，溢出返回 ok=false
func CheckedAdd64(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

// CheckedSub64 计算 a-b，下溢返回 ok=false
func CheckedSub64(a, b uint64) (uint64, bool) {
	diff, borrow := bits.Sub64(a, b, 0)
	return diff, borrow == 0
}

// SaturatingSub64 计算 a-b，下溢时取 0
func SaturatingSub64(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}

// SaturatingAdd64 计算 a+b，溢出时取 MaxUint64
func SaturatingAdd64(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}
