package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
database:
  host: db.internal
  port: 5433
  user: dispatch
  password: "secret"
  database: rides

redis:
  addr: cache.internal:6379
  db: 2

rabbitmq:
  user: mq
  password: 'mq-pass'

websocket:
  port: 9090

service:
  engine: 3005
  sweep_interval: 15s

dispatch:
  search_radius_km: 7.5
  max_candidates: 4

jwt:
  secret_key: "test-secret"
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Database.Host != "db.internal" || cfg.Database.Port != 5433 || cfg.Database.Name != "rides" {
		t.Fatalf("database section: %+v", cfg.Database)
	}
	if cfg.Database.Password != "secret" {
		t.Fatalf("quotes not stripped: %q", cfg.Database.Password)
	}
	if cfg.Redis.Addr != "cache.internal:6379" || cfg.Redis.DB != 2 {
		t.Fatalf("redis section: %+v", cfg.Redis)
	}
	// rabbitmq host omitted, default applies
	if cfg.RabbitMQ.Host != "localhost" || cfg.RabbitMQ.Port != 5672 {
		t.Fatalf("rabbitmq defaults: %+v", cfg.RabbitMQ)
	}
	if cfg.Service.EnginePort != 3005 || cfg.Service.SweepInterval != 15*time.Second {
		t.Fatalf("service section: %+v", cfg.Service)
	}
	if cfg.Dispatch.SearchRadiusKM != 7.5 || cfg.Dispatch.MaxCandidates != 4 {
		t.Fatalf("dispatch section: %+v", cfg.Dispatch)
	}
	if cfg.JWT.SecretKey != "test-secret" {
		t.Fatalf("jwt secret: %q", cfg.JWT.SecretKey)
	}
}

func TestLoadFromFileAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  user: dispatch
  password: secret
  database: rides

rabbitmq:
  user: mq
  password: mq-pass
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Service.EnginePort != 3000 {
		t.Fatalf("engine port default: %d", cfg.Service.EnginePort)
	}
	if cfg.Service.SweepInterval != 30*time.Second {
		t.Fatalf("sweep interval default: %v", cfg.Service.SweepInterval)
	}
	if cfg.Dispatch.SearchRadiusKM != 5.0 || cfg.Dispatch.MaxCandidates != 10 {
		t.Fatalf("dispatch defaults: %+v", cfg.Dispatch)
	}
	if cfg.JWT.SecretKey == "" {
		t.Fatalf("jwt secret must be generated when omitted")
	}
}

func TestLoadFromFileRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
database:
  user: dispatch
  password: secret
  database: rides
  flavor: vanilla
`)
	if _, err := LoadFromFile(path); err == nil || !strings.Contains(err.Error(), "unknown key") {
		t.Fatalf("expected unknown-key error, got %v", err)
	}
}

func TestLoadFromFileValidates(t *testing.T) {
	path := writeConfig(t, `
database:
  user: dispatch
  database: rides

rabbitmq:
  user: mq
  password: mq-pass
`)
	if _, err := LoadFromFile(path); err == nil || !strings.Contains(err.Error(), "database.password") {
		t.Fatalf("expected validation error, got %v", err)
	}
}
