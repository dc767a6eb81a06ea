// Package metrics 引擎操作的 Prometheus 指标，经 rest 服务的 /metrics 暴露
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OpsTotal 按操作与结果计数（result: ok / err）
	OpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perp_ops_total",
		Help: "Total engine operations by result",
	}, []string{"op", "result"})

	// OpenPositions 当前全部市场的持仓总数
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "perp_open_positions",
		Help: "Number of currently open positions",
	})

	// ActiveMarkets 已创建的市场数
	ActiveMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "perp_active_markets",
		Help: "Number of created markets",
	})

	// LiquidationsTotal 清算次数
	LiquidationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "perp_liquidations_total",
		Help: "Total positions liquidated",
	})
)

// RecordOp 统一入口，err == nil 记 ok
func RecordOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = "err"
	}
	OpsTotal.WithLabelValues(op, result).Inc()
}
