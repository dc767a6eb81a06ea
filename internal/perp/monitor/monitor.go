package monitor

import (
	"context"
	"errors"
	"math"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"perp-core-sol/internal/perp/engine"
	"perp-core-sol/internal/perp/types"
	"perp-core-sol/internal/pkg/logger"
	"perp-core-sol/internal/pkg/utils"

	"github.com/panjf2000/ants/v2"
)

const (
	liquidateWorkers = 8
	liquidateTimeout = 30 * time.Second // 单笔清算超时时间
)

// LiquidationMonitor 清算巡检：定期筛出越过清算线的仓位，
// 以配置的 keeper 身份并发发起清算。单笔失败（价格回撤、滑点）
// 留到下一轮重试，不做内部重试。
// 滑点参数的含义随方向变化（多头是最少卖得 SOL，空头是回补花费上限），
// 所以两侧各配一个，不共用一个数。
type LiquidationMonitor struct {
	engine    *engine.Engine
	keeper    types.Pubkey
	interval  time.Duration
	minSolOut uint64 // 多头强平卖出的 SOL 下限
	maxSolIn  uint64 // 空头回补的 SOL 花费上限，0 表示不设限

	goroutinePool *ants.Pool
	ctx           context.Context
	cancel        context.CancelFunc
	done          chan struct{}
	lastLogTime   atomic.Int64
}

func NewLiquidationMonitor(
	eng *engine.Engine,
	keeper types.Pubkey,
	intervalMs int,
	minSolOut uint64,
	maxSolIn uint64,
) *LiquidationMonitor {
	pool, _ := ants.NewPool(liquidateWorkers, ants.WithNonblocking(true))
	if maxSolIn == 0 {
		maxSolIn = math.MaxUint64
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &LiquidationMonitor{
		engine:        eng,
		keeper:        keeper,
		interval:      time.Duration(intervalMs) * time.Millisecond,
		minSolOut:     minSolOut,
		maxSolIn:      maxSolIn,
		goroutinePool: pool,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
}

// Start 启动巡检循环，实现 service.Service。
// keeper 未配置时直接退化为空转，依赖外部清算人。
func (m *LiquidationMonitor) Start() {
	defer close(m.done)

	if m.keeper.IsZero() {
		logger.Infof("[LiquidationMonitor] no keeper configured, monitor disabled")
		<-m.ctx.Done()
		return
	}

	logger.Infof("[LiquidationMonitor] started: keeper=%s, interval=%v", m.keeper, m.interval)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// Stop 停止巡检
func (m *LiquidationMonitor) Stop() {
	m.cancel()
	<-m.done
	m.goroutinePool.Release()
}

func (m *LiquidationMonitor) sweep() {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[LiquidationMonitor] panic in sweep: %v\n%s", r, debug.Stack())
		}
	}()

	candidates := m.engine.LiquidatableCandidates(m.ctx)
	if len(candidates) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, c := range candidates {
		cand := c

		wg.Add(1)
		submitTask := func() {
			defer wg.Done()
			m.liquidateOne(cand)
		}

		if err := m.goroutinePool.Submit(submitTask); err != nil {
			wg.Done()
			if utils.ThrottleLog(&m.lastLogTime, 3*time.Second) {
				logger.Warnf("[LiquidationMonitor] submit failed: %v, market=%s, owner=%s", err, cand.Market, cand.Owner)
			}
		}
	}
	wg.Wait()
}

func (m *LiquidationMonitor) liquidateOne(c engine.Candidate) {
	reqCtx, cancel := context.WithTimeout(m.ctx, liquidateTimeout)
	defer cancel()

	err := m.engine.Liquidate(reqCtx, m.keeper, c.Market, c.Owner, m.slippageFor(c.Side))
	if err == nil {
		return
	}

	// 巡检与执行之间价格可能回撤，属于正常竞态
	if errors.Is(err, types.ErrNotLiquidatable) || errors.Is(err, types.ErrPositionNotFound) {
		return
	}
	if utils.ThrottleLog(&m.lastLogTime, 3*time.Second) {
		logger.Errorf("[LiquidationMonitor] liquidate failed: market=%s, owner=%s, err=%v", c.Market, c.Owner, err)
	}
}

// slippageFor 按仓位方向选择滑点参数
func (m *LiquidationMonitor) slippageFor(side types.Side) uint64 {
	if side.IsLong() {
		return m.minSolOut
	}
	return m.maxSolIn
}
