package cfg

import (
	"testing"
	"time"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load([]string{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.DBPath != "./feedsub.db" {
		t.Errorf("Expected db path './feedsub.db', got '%s'", cfg.DBPath)
	}
	if cfg.FeedsDir != "./feeds" {
		t.Errorf("Expected feeds dir './feeds', got '%s'", cfg.FeedsDir)
	}
	if cfg.WorkerCount != 5 {
		t.Errorf("Expected worker count 5, got %d", cfg.WorkerCount)
	}
	if cfg.SchedulerIntervalDuration() != 30*time.Second {
		t.Errorf("Expected scheduler interval 30s, got %v", cfg.SchedulerIntervalDuration())
	}
	if cfg.HostInterval() != 0 {
		t.Errorf("Expected host interval 0, got %v", cfg.HostInterval())
	}
	if Get() != cfg {
		t.Error("Expected Get to return the loaded configuration")
	}
}

func TestLoadFlags(t *testing.T) {
	cfg, err := load([]string{
		"--db-path", "/tmp/feeds.db",
		"--port", "9090",
		"--worker-count", "2",
		"--host-rate", "3",
		"--api-key", "secret",
		"--debug",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.DBPath != "/tmp/feeds.db" {
		t.Errorf("Expected db path '/tmp/feeds.db', got '%s'", cfg.DBPath)
	}
	if cfg.Port != "9090" {
		t.Errorf("Expected port '9090', got '%s'", cfg.Port)
	}
	if cfg.WorkerCount != 2 {
		t.Errorf("Expected worker count 2, got %d", cfg.WorkerCount)
	}
	if cfg.HostInterval() != 3*time.Second {
		t.Errorf("Expected host interval 3s, got %v", cfg.HostInterval())
	}
	if cfg.APIAccessKey != "secret" {
		t.Errorf("Expected API key 'secret', got '%s'", cfg.APIAccessKey)
	}
	if !cfg.Debug {
		t.Error("Expected debug to be enabled")
	}
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("DB_PATH", "/data/env.db")
	t.Setenv("SCHEDULER_INTERVAL", "10")

	cfg, err := load([]string{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.DBPath != "/data/env.db" {
		t.Errorf("Expected db path '/data/env.db', got '%s'", cfg.DBPath)
	}
	if cfg.SchedulerInterval != 10 {
		t.Errorf("Expected scheduler interval 10, got %d", cfg.SchedulerInterval)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"zero workers", []string{"--worker-count", "0"}},
		{"zero interval", []string{"--scheduler-interval", "0"}},
		{"negative host rate", []string{"--host-rate=-1"}},
		{"not a number", []string{"--worker-count", "many"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := load(tt.args); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}
