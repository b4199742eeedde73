package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_ENV", "nonexistent")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mode != "release" {
		t.Errorf("Mode = %q, want release", cfg.Mode)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.RelayURL == "" {
		t.Error("RelayURL default missing")
	}
	if cfg.DeviceID == "" {
		t.Error("DeviceID default missing")
	}
	if len(cfg.ICEServers) == 0 {
		t.Error("ICEServers default missing")
	}
	if cfg.SamplePeriod != 16*time.Millisecond {
		t.Errorf("SamplePeriod = %v, want 16ms", cfg.SamplePeriod)
	}
	if cfg.StatusResetDelay != 2*time.Second {
		t.Errorf("StatusResetDelay = %v, want 2s", cfg.StatusResetDelay)
	}
}
