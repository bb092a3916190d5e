package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ssanin82/uniswap-pool-monitor/config"
	"github.com/ssanin82/uniswap-pool-monitor/internal/pool/monitor"
	"github.com/ssanin82/uniswap-pool-monitor/logger"

	"go.uber.org/zap"
)

func main() {
	// viper config
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	m, err := monitor.New(cfg, log)
	if err != nil {
		log.Fatal("monitor setup failed", zap.Error(err))
	}
	if err := m.Start(context.Background()); err != nil {
		log.Fatal("monitor failed to start", zap.Error(err))
	}
	log.Info("pool monitor started", zap.String("pool", cfg.Pool.Address))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	m.Stop()
}
