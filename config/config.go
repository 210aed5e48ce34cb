package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config — единый конфиг процесса. Загружается один раз в main,
// дальше только читается (никаких глобальных мутаций).
type Config struct {
	Server struct {
		Address  string
		HTTPPort string
		TLSCert  string
		TLSKey   string
	}
	Logging struct {
		Level  string
		Format string
		File   string
	}
	Database struct {
		Driver string // "sqlite" | "mysql" | "postgres" | "" (in-memory)
		DSN    string
	}
	Agent AgentConfig
}

// AgentConfig — настройки клиентской части (pulse-agent).
type AgentConfig struct {
	ServerURL       string // базовый URL релея, напр. https://10.0.0.2:8000
	Secret          string
	IntervalSec     int
	FingerprintFile string
	SpeedTestURL    string
}

// Load читает yaml-конфиг (если задан путь) и переменные окружения PULSE_*.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.http_port", "8000")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "pulse.db")
	v.SetDefault("agent.interval_sec", 5)
	v.SetDefault("agent.fingerprint_file", "server.fp")

	v.SetEnvPrefix("PULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	cfg.Server.Address = v.GetString("server.address")
	cfg.Server.HTTPPort = v.GetString("server.http_port")
	cfg.Server.TLSCert = v.GetString("server.tls_cert")
	cfg.Server.TLSKey = v.GetString("server.tls_key")
	cfg.Logging.Level = v.GetString("logging.level")
	cfg.Logging.Format = v.GetString("logging.format")
	cfg.Logging.File = v.GetString("logging.file")
	cfg.Database.Driver = v.GetString("database.driver")
	cfg.Database.DSN = v.GetString("database.dsn")
	cfg.Agent.ServerURL = v.GetString("agent.server_url")
	cfg.Agent.Secret = v.GetString("agent.secret")
	cfg.Agent.IntervalSec = v.GetInt("agent.interval_sec")
	cfg.Agent.FingerprintFile = v.GetString("agent.fingerprint_file")
	cfg.Agent.SpeedTestURL = v.GetString("agent.speed_test_url")

	return cfg, nil
}
