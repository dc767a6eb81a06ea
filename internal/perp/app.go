package perp

import (
	"context"
	"fmt"
	"sync/atomic"

	"perp-core-sol/internal/perp/engine"
	"perp-core-sol/internal/perp/monitor"
	"perp-core-sol/internal/perp/types"
	"perp-core-sol/internal/pkg/logger"
	"perp-core-sol/internal/svc"

	gzsvc "github.com/zeromicro/go-zero/core/service"
)

// App 组装引擎与后台服务：事件推送、清算巡检。
// 预建市场在构造期完成，启动失败直接 panic 终止进程。
type App struct {
	svc    *svc.ServiceContext
	engine *engine.Engine
	sg     *gzsvc.ServiceGroup

	ready atomic.Bool
}

// NewApp 构造应用实例
func NewApp(svcCtx *svc.ServiceContext) *App {
	app := &App{
		svc: svcCtx,
		sg:  gzsvc.NewServiceGroup(),
	}

	app.engine = engine.NewEngine(engine.Params{
		Admin:     svcCtx.Admin,
		Oracle:    svcCtx.Oracle,
		Exec:      svcCtx.Exec,
		Vault:     svcCtx.Vault,
		Validator: svcCtx.Validator,
		Notifier:  svcCtx.Notifier,
	})

	if svcCtx.KafkaNotifier != nil {
		app.sg.Add(svcCtx.KafkaNotifier)
	}

	app.preloadMarkets(svcCtx)
	app.initLiquidationMonitor(svcCtx)

	return app
}

// Engine 供 handler 调用
func (a *App) Engine() *engine.Engine {
	return a.engine
}

func (a *App) IsReady() bool {
	return a.ready.Load()
}

// Start 启动后台服务，实现 service.Service。
// sg.Start 会阻塞到全部后台服务退出，就绪标记必须先置位。
func (a *App) Start() {
	a.ready.Store(true)
	logger.Infof("[App] started, markets=%d", len(a.svc.Cfg.Markets))
	a.sg.Start()
}

// Stop 停止全部后台服务
func (a *App) Stop() {
	a.ready.Store(false)
	a.sg.Stop()
}

// preloadMarkets 按配置以管理员身份建市
func (a *App) preloadMarkets(svcCtx *svc.ServiceContext) {
	for _, mc := range a.svc.Cfg.Markets {
		params := engine.CreateMarketParams{
			Admin:           svcCtx.Admin,
			MaxPositionSize: mc.MaxPositionSize,
		}

		var err error
		if params.TokenMint, err = types.TryPubkeyFromString(mc.TokenMint); err == nil {
			if params.Pool, err = types.TryPubkeyFromString(mc.Pool); err == nil {
				if params.BaseVault, err = types.TryPubkeyFromString(mc.BaseVault); err == nil {
					params.QuoteVault, err = types.TryPubkeyFromString(mc.QuoteVault)
				}
			}
		}
		if err != nil {
			panic(fmt.Sprintf("invalid market conf %s: %v", mc.TokenMint, err))
		}

		if err := a.engine.CreateMarket(context.Background(), params); err != nil {
			panic(fmt.Sprintf("create market %s failed: %v", mc.TokenMint, err))
		}
	}
}

func (a *App) initLiquidationMonitor(svcCtx *svc.ServiceContext) {
	lc := svcCtx.Cfg.Liquidation
	if lc.Keeper == "" {
		logger.Infof("[App] liquidation keeper not configured, monitor disabled")
		return
	}

	keeper, err := types.TryPubkeyFromString(lc.Keeper)
	if err != nil {
		panic(fmt.Sprintf("invalid liquidation keeper: %v", err))
	}
	a.sg.Add(monitor.NewLiquidationMonitor(a.engine, keeper, lc.IntervalMs, lc.MinSolOut, lc.MaxSolIn))
}
