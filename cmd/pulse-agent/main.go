package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"pulse/config"
	"pulse/internal/agent"
	"pulse/internal/logs"
	"pulse/internal/trust"
)

func main() {
	cfgPath := flag.String("config", "", "path to yaml config (optional, env PULSE_* works too)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logs.Init(logs.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})

	if cfg.Agent.ServerURL == "" || cfg.Agent.Secret == "" {
		log.Fatal("agent.server_url and agent.secret are required")
	}

	transport := trust.NewTransport(trust.NewFileStore(cfg.Agent.FingerprintFile))
	client := agent.NewClient(cfg.Agent.ServerURL, cfg.Agent.Secret, transport)

	var speed agent.SpeedTester
	if cfg.Agent.SpeedTestURL != "" {
		speed = agent.NewHTTPSpeedTester(cfg.Agent.SpeedTestURL)
	}

	a := agent.New(
		client,
		newProcCollector(),
		execExecutor{},
		speed,
		time.Duration(cfg.Agent.IntervalSec)*time.Second,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logs.Logger.Infof("agent started → %s (interval %ds)", cfg.Agent.ServerURL, cfg.Agent.IntervalSec)
	if err := a.Run(ctx); err != nil && ctx.Err() == nil {
		// сюда попадает в т.ч. несовпадение отпечатка: падаем громко,
		// без авто-восстановления
		log.Fatalf("agent: %v", err)
	}
}
