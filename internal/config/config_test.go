package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Risk.MaxPositions <= 0 {
		t.Errorf("expected positive MaxPositions, got %d", cfg.Risk.MaxPositions)
	}
	if cfg.Performance.WebsocketMaxConnections <= cfg.Performance.SystemConnections {
		t.Errorf("expected WebsocketMaxConnections > SystemConnections")
	}
}

func TestLoadOverridesFromEnv(t *testing.T) {
	os.Setenv("RISK_MAX_POSITIONS", "25")
	defer os.Unsetenv("RISK_MAX_POSITIONS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Risk.MaxPositions != 25 {
		t.Errorf("expected MaxPositions=25, got %d", cfg.Risk.MaxPositions)
	}
}

func TestValidateRejectsBadCapacity(t *testing.T) {
	cfg := &Config{
		Risk: Risk{MaxPositions: 5},
		Performance: Performance{
			WebsocketMaxConnections: 3,
			SystemConnections:       3,
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected Validate() to reject websocket_max_connections <= system_connections")
	}
}
