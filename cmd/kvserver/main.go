// Command kvserver serves a kv.Client over HTTP with token sessions.
//
//	kvserver [settings.toml]
//
// Without an argument it reads RAKHKV_CONFIG, and otherwise runs on
// defaults plus environment overrides.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/adeilh/go-rakh-kv/config"
	"github.com/adeilh/go-rakh-kv/kv"
)

func main() {
	configPath := os.Getenv("RAKHKV_CONFIG")
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	boot := kv.NewLogger("kvserver", "info")
	cfg, err := config.Load(configPath)
	if err != nil {
		boot.Fatalf("load config: %v", err)
	}
	logger := kv.NewLogger("kvserver", cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, server, err := buildService(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("build service: %v", err)
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Warnf("close: %v", err)
		}
	}()
	kv.SetDefault(res.client)

	go runPurge(ctx, res.purge, purgeInterval, logger)

	logger.Infof("backend %s, listening on %s", cfg.Backend, cfg.HTTP.Address)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("http server: %v", err)
		return
	}
	logger.Infof("shutting down")
}
