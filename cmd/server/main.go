// @title 电子负载控制服务
// @version 1.0
// @description 串口电子负载的控制、采样与安全关断接口
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
package main

import (
	"flag"
	"os"

	"go.uber.org/zap"

	"github.com/taoyao-code/eload/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/eload/internal/config"
	"github.com/taoyao-code/eload/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（默认读取 ELOAD_CONFIG）")
	profilePath := flag.String("profile", "", "执行放电曲线文件后退出")
	flag.Parse()

	// 1) 加载配置
	cfg, err := cfgpkg.Load(*configPath)
	if err != nil {
		panic(err)
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	// 3) 启动
	if err := bootstrap.Run(cfg, zap.L(), bootstrap.Options{ProfilePath: *profilePath}); err != nil {
		zap.L().Error("eload server exited with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}
