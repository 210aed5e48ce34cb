package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.HTTPPort != "8000" {
		t.Fatalf("http_port=%q", cfg.Server.HTTPPort)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "pulse.db" {
		t.Fatalf("database=%+v", cfg.Database)
	}
	if cfg.Agent.IntervalSec != 5 {
		t.Fatalf("interval=%d", cfg.Agent.IntervalSec)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("level=%q", cfg.Logging.Level)
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pulse.yaml")
	body := `
server:
  http_port: "9100"
  tls_cert: /etc/pulse/cert.pem
  tls_key: /etc/pulse/key.pem
database:
  driver: postgres
  dsn: host=localhost user=pulse dbname=pulse
agent:
  server_url: https://10.0.0.2:9100
  secret: abc123
  interval_sec: 30
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.HTTPPort != "9100" || cfg.Server.TLSCert == "" {
		t.Fatalf("server=%+v", cfg.Server)
	}
	if cfg.Database.Driver != "postgres" {
		t.Fatalf("driver=%q", cfg.Database.Driver)
	}
	if cfg.Agent.ServerURL != "https://10.0.0.2:9100" || cfg.Agent.IntervalSec != 30 {
		t.Fatalf("agent=%+v", cfg.Agent)
	}
	// не заданное в файле остаётся дефолтом
	if cfg.Logging.Level != "info" {
		t.Fatalf("level=%q", cfg.Logging.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("missing file accepted")
	}
}
