package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/eload/internal/app"
	"github.com/taoyao-code/eload/internal/bridge"
	cfgpkg "github.com/taoyao-code/eload/internal/config"
	"github.com/taoyao-code/eload/internal/logging"
	"github.com/taoyao-code/eload/internal/metrics"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（默认读取 ELOAD_CONFIG）")
	flag.Parse()

	cfg, err := cfgpkg.Load(*configPath)
	if err != nil {
		panic(err)
	}
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.With(zap.String("component", "bridge"))

	// 网桥直接持有本地设备，不经过事务层
	ch, err := app.NewChannel(cfg, log)
	if err != nil {
		log.Fatal("create device channel failed", zap.Error(err))
	}
	defer ch.Close()

	reg, appm := app.NewMetrics()
	srv := bridge.New(cfg.Bridge, ch, log, appm)
	if err := srv.Start(); err != nil {
		log.Fatal("bridge start failed", zap.Error(err))
	}

	httpSrv := app.NewHTTPServer(cfg, metrics.Handler(reg), nil, log)
	go func() {
		if err := httpSrv.Start(); err != nil {
			log.Error("http server error", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("received shutdown signal, gracefully shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	_ = srv.Shutdown(shutdownCtx)
}
