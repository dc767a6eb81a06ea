package oracle

import (
	"encoding/binary"
	"math"
	"testing"

	"perp-core-sol/internal/consts"
	"perp-core-sol/internal/perp/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolPrice(t *testing.T) {
	// base == quote → 正好 1e12
	price, err := PoolPrice(1_000_000, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, consts.Precision, price)

	// quote 是 base 的一半
	price, err = PoolPrice(2_000_000, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, consts.Precision/2, price)

	// 空池
	_, err = PoolPrice(0, 1_000_000)
	assert.ErrorIs(t, err, types.ErrEmptyPool)

	// 定点放大后超出 u64
	_, err = PoolPrice(1, math.MaxUint64)
	assert.ErrorIs(t, err, types.ErrOverflow)
}

func TestParseTokenAmount(t *testing.T) {
	data := make([]byte, consts.TokenAccountDataLen)
	binary.LittleEndian.PutUint64(data[consts.TokenAmountOffset:], 123_456_789)

	amount, err := ParseTokenAmount(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(123_456_789), amount)

	// 数据过短
	_, err = ParseTokenAmount(data[:consts.TokenAmountOffset+7])
	assert.ErrorIs(t, err, types.ErrInvalidPool)

	_, err = ParseTokenAmount(nil)
	assert.ErrorIs(t, err, types.ErrInvalidPool)
}
