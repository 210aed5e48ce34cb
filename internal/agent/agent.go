package agent

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"pulse/internal/keyreg"
	"pulse/internal/logs"
	"pulse/internal/relay"
	"pulse/internal/trust"
)

// Collector собирает снапшот телеметрии хоста. OS-специфика
// (датчики, диски, GPU) живёт снаружи ядра.
type Collector interface {
	Collect(ctx context.Context) (relay.Telemetry, error)
}

// Executor выполняет команды на хосте.
type Executor interface {
	Reboot() error
	Shutdown() error
}

// SpeedTester замеряет канал; может работать десятки секунд и не
// должен блокировать push/pull.
type SpeedTester interface {
	Run(ctx context.Context) (SpeedResult, error)
}

// Agent — клиентский цикл: push снапшота, pull команд, сон.
// Единственное внутреннее состояние между итерациями — single-flight
// флаг спидтеста.
type Agent struct {
	client    *Client
	collector Collector
	executor  Executor
	speed     SpeedTester
	interval  time.Duration

	speedRunning atomic.Bool
}

func New(client *Client, collector Collector, executor Executor, speed SpeedTester, interval time.Duration) *Agent {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Agent{
		client:    client,
		collector: collector,
		executor:  executor,
		speed:     speed,
		interval:  interval,
	}
}

// Run гоняет цикл до отмены контекста. Несовпадение отпечатка
// фатально и возвращается наружу: авто-восстановления нет, нужен
// оператор. Остальные ошибки I/O — лог и следующая итерация.
func (a *Agent) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		if err := a.cycle(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// cycle — одна итерация. Ненулевая ошибка только при trust violation.
func (a *Agent) cycle(ctx context.Context) error {
	snap, err := a.collector.Collect(ctx)
	if err != nil {
		logs.Logger.Errorf("collect: %v", err)
	} else if err := a.client.Push(ctx, snap); err != nil {
		if trust.IsPinMismatch(err) {
			return fmt.Errorf("push: %w", err)
		}
		logs.Logger.Errorf("push error: %v", err)
	}

	cmds, err := a.client.Pull(ctx)
	if err != nil {
		if trust.IsPinMismatch(err) {
			return fmt.Errorf("pull: %w", err)
		}
		logs.Logger.Errorf("pull error: %v", err)
		return nil
	}
	for _, raw := range cmds {
		cmd, err := keyreg.ParseCommand(raw)
		if err != nil {
			logs.Logger.Warnf("skip command: %v", err)
			continue
		}
		a.dispatch(ctx, cmd)
	}
	return nil
}

func (a *Agent) dispatch(ctx context.Context, cmd keyreg.Command) {
	switch cmd {
	case keyreg.CmdReboot:
		logs.Logger.Info("cmd reboot")
		a.notify(ctx, "⚡️ Rebooting…")
		if err := a.executor.Reboot(); err != nil {
			logs.Logger.Errorf("reboot failed: %v", err)
		}
	case keyreg.CmdShutdown:
		logs.Logger.Info("cmd shutdown")
		a.notify(ctx, "💤 Shutting down…")
		if err := a.executor.Shutdown(); err != nil {
			logs.Logger.Errorf("shutdown failed: %v", err)
		}
	case keyreg.CmdSpeedTest:
		a.startSpeedTest(ctx)
	}
}

// startSpeedTest запускает замер в фоне под single-flight флагом:
// повторная команда во время замера — только уведомление, не второй
// замер. Результат уходит через обычный msg-push, общей памяти с
// циклом нет.
func (a *Agent) startSpeedTest(ctx context.Context) {
	if a.speed == nil {
		a.notify(ctx, "⏱ Speed test is not configured")
		return
	}
	if !a.speedRunning.CompareAndSwap(false, true) {
		logs.Logger.Info("speed test already running")
		a.notify(ctx, "⏱ Speed test already running")
		return
	}
	logs.Logger.Info("cmd speed-test")
	a.notify(ctx, "⏱ Speed test started…")

	go func() {
		defer a.speedRunning.Store(false)
		res, err := a.speed.Run(ctx)
		if err != nil {
			logs.Logger.Errorf("speed test: %v", err)
			a.notify(ctx, "⏱ Speed test failed: "+err.Error())
			return
		}
		a.notify(ctx, fmt.Sprintf("⏱ Speed test: ↓ %.1f Mbit/s (%.1fs)",
			res.DownloadMbps, res.Duration.Seconds()))
	}()
}

func (a *Agent) notify(ctx context.Context, text string) {
	if err := a.client.Msg(ctx, text); err != nil {
		logs.Logger.Errorf("msg error: %v", err)
	}
}
