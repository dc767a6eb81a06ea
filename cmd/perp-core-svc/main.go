package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"perp-core-sol/internal/config"
	"perp-core-sol/internal/handler"
	"perp-core-sol/internal/perp"
	"perp-core-sol/internal/pkg/configloader"
	"perp-core-sol/internal/pkg/logger"
	"perp-core-sol/internal/pkg/rest"
	"perp-core-sol/internal/svc"

	"github.com/zeromicro/go-zero/core/logx"
	zerosvc "github.com/zeromicro/go-zero/core/service"
)

var configFile = flag.String("f", "etc/perp-core-svc/test.yaml", "the config file")

func main() {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("panic: %+v\nstack: %s", r, debug.Stack())
		}
	}()
	defer logger.Sync()

	flag.Parse()
	logger.Infof("Loading config from %s", *configFile)

	// 加载配置
	var c config.Config
	if err := configloader.LoadConfig(*configFile, &c); err != nil {
		panic(fmt.Sprintf("配置加载失败: %v", err))
	}

	// 初始化 zap 日志
	logger.InitLogger(c.LogConf.ToLogOption())
	logx.SetWriter(logger.ZapWriter{})

	// 初始化依赖注入上下文
	svcCtx := svc.NewServiceContext(&c)

	// 构造 go-zero ServiceGroup 管理服务
	sg := zerosvc.NewServiceGroup()

	// 构建应用（引擎 + 后台服务）
	app := perp.NewApp(svcCtx)
	sg.Add(app)

	// 构建 rest 服务
	sg.Add(initializeRestServer(&c, app))

	// 启动服务
	logger.Infof("perp-core starting")
	sg.Start()

	// 等待退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down services...")
	sg.Stop()
}

func initializeRestServer(c *config.Config, app *perp.App) *rest.SimpleRestServer {
	healthCheck := handler.HealthCheck(app)
	routes := map[string]http.HandlerFunc{
		"/healthz":          healthCheck,
		"/health/readiness": healthCheck,
		"/health/liveness":  healthCheck,

		"/perp/open":      handler.OpenPosition(app),
		"/perp/close":     handler.ClosePosition(app),
		"/perp/liquidate": handler.Liquidate(app),
		"/perp/position":  handler.GetPosition(app),

		"/account/deposit":  handler.Deposit(app),
		"/account/withdraw": handler.Withdraw(app),
		"/account/balance":  handler.Balance(app),

		"/lending/deposit":  handler.LendingDeposit(app),
		"/lending/withdraw": handler.LendingWithdraw(app),

		"/admin/create-market": handler.CreateMarket(app),
		"/market/stats":        handler.MarketStats(app),
	}

	return rest.NewSimpleRestServer(c.ServerConf.Port, routes)
}
