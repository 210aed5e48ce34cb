package agent

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pulse/internal/keyreg"
	"pulse/internal/relay"
	"pulse/internal/trust"
	"pulse/internal/tsdb"

	"github.com/gorilla/mux"
)

type stubCollector struct{ snap relay.Telemetry }

func (c stubCollector) Collect(context.Context) (relay.Telemetry, error) { return c.snap, nil }

type failCollector struct{}

func (failCollector) Collect(context.Context) (relay.Telemetry, error) {
	return relay.Telemetry{}, errors.New("sensors unavailable")
}

type stubExecutor struct{ reboots, shutdowns int }

func (e *stubExecutor) Reboot() error   { e.reboots++; return nil }
func (e *stubExecutor) Shutdown() error { e.shutdowns++; return nil }

// blockingTester имитирует долгий замер: Run висит, пока тест не
// закроет release.
type blockingTester struct {
	started chan struct{}
	release chan struct{}
	runs    int
}

func (s *blockingTester) Run(context.Context) (SpeedResult, error) {
	s.runs++
	close(s.started)
	<-s.release
	return SpeedResult{DownloadMbps: 100, Duration: time.Second}, nil
}

type agentEnv struct {
	reg    *keyreg.Registry
	secret string
	agent  *Agent
	exec   *stubExecutor
	speed  *blockingTester
}

func newAgentEnv(t *testing.T, speed SpeedTester) *agentEnv {
	t.Helper()

	reg := keyreg.New(nil)
	secret, err := reg.Create("alice", "desk")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	r := mux.NewRouter()
	relay.RegisterRoutes(r, reg.Store(), tsdb.NewMemStore())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	exec := &stubExecutor{}
	snap := relay.Telemetry{CPU: 12.3, RAM: 50, RAMUsed: 8, RAMTotal: 16, Uptime: 60}
	a := New(NewClient(srv.URL, secret, nil), stubCollector{snap: snap}, exec, speed, time.Second)

	env := &agentEnv{reg: reg, secret: secret, agent: a, exec: exec}
	if bt, ok := speed.(*blockingTester); ok {
		env.speed = bt
	}
	return env
}

func (e *agentEnv) status(t *testing.T) string {
	t.Helper()
	entry, ok := e.reg.Store().FindKey(e.secret)
	if !ok {
		t.Fatalf("key vanished")
	}
	if entry.Status == nil {
		return ""
	}
	return *entry.Status
}

func (e *agentEnv) waitStatus(t *testing.T, substr string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(e.status(t), substr) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("status never contained %q, last: %q", substr, e.status(t))
}

func TestCycle_PushesAndExecutes(t *testing.T) {
	t.Parallel()

	env := newAgentEnv(t, nil)
	if err := env.reg.Enqueue(env.secret, "alice", keyreg.CmdReboot); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := env.agent.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if env.exec.reboots != 1 || env.exec.shutdowns != 0 {
		t.Fatalf("reboots=%d shutdowns=%d", env.exec.reboots, env.exec.shutdowns)
	}

	// dispatch идёт после push, так что уведомление о ребуте — последнее
	env.waitStatus(t, "Rebooting")

	// очередь опустошена, вторая итерация ничего не выполняет
	if err := env.agent.cycle(context.Background()); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if env.exec.reboots != 1 {
		t.Fatalf("reboots=%d", env.exec.reboots)
	}
	env.waitStatus(t, "CPU: 12.3%")
}

func TestCycle_SkipsUnknownCommand(t *testing.T) {
	t.Parallel()

	env := newAgentEnv(t, nil)
	if err := env.reg.Store().Enqueue(env.secret, keyreg.Command("bogus")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := env.agent.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if env.exec.reboots != 0 || env.exec.shutdowns != 0 {
		t.Fatalf("unknown command executed")
	}
}

func TestCycle_CollectorFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	env := newAgentEnv(t, nil)
	env.agent.collector = failCollector{}
	if err := env.agent.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
}

func TestSpeedTest_SingleFlight(t *testing.T) {
	t.Parallel()

	tester := &blockingTester{started: make(chan struct{}), release: make(chan struct{})}
	env := newAgentEnv(t, tester)

	if err := env.reg.Enqueue(env.secret, "alice", keyreg.CmdSpeedTest); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := env.agent.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	<-tester.started

	// повторная команда во время замера — уведомление, не второй замер
	if err := env.reg.Enqueue(env.secret, "alice", keyreg.CmdSpeedTest); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := env.agent.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	env.waitStatus(t, "already running")
	if tester.runs != 1 {
		t.Fatalf("runs=%d", tester.runs)
	}

	close(tester.release)
	env.waitStatus(t, "100.0 Mbit/s")
}

func TestSpeedTest_NotConfigured(t *testing.T) {
	t.Parallel()

	env := newAgentEnv(t, nil)
	if err := env.reg.Enqueue(env.secret, "alice", keyreg.CmdSpeedTest); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := env.agent.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	env.waitStatus(t, "not configured")
}

func TestCycle_PinMismatchIsFatal(t *testing.T) {
	t.Parallel()

	reg := keyreg.New(nil)
	secret, _ := reg.Create("alice", "desk")
	r := mux.NewRouter()
	relay.RegisterRoutes(r, reg.Store(), tsdb.NewMemStore())
	srv := httptest.NewTLSServer(r)
	t.Cleanup(srv.Close)

	store := trust.NewFileStore(filepath.Join(t.TempDir(), "fingerprint.json"))
	// чужой пин: любой запрос через транспорт обязан падать
	if err := store.Save(strings.Repeat("0", 64)); err != nil {
		t.Fatalf("save: %v", err)
	}

	client := NewClient(srv.URL, secret, trust.NewTransport(store))
	a := New(client, stubCollector{}, &stubExecutor{}, nil, time.Second)

	err := a.cycle(context.Background())
	if err == nil {
		t.Fatalf("cycle succeeded against mismatched certificate")
	}
	if !trust.IsPinMismatch(err) {
		t.Fatalf("err=%v, want pin mismatch", err)
	}
}
