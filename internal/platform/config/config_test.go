package config

import (
	"strings"
	"testing"
)

func TestPresetsValidate(t *testing.T) {
	for _, name := range []string{"default", "stress", "low", ""} {
		c, err := Preset(name)
		if err != nil {
			t.Fatalf("Preset(%q) failed: %v", name, err)
		}
		if err := c.Validate(); err != nil {
			t.Errorf("Preset(%q) does not validate: %v", name, err)
		}
	}
	if _, err := Preset("turbo"); err == nil {
		t.Errorf("Expected error for unknown preset")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"SNAKE_ADDR":     ":9999",
		"SNAKE_DB":       "/tmp/s.db",
		"SNAKE_WRAP":     "true",
		"SNAKE_POWERUPS": "0",
	}
	c := DefaultConfig()
	err := c.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if err != nil {
		t.Fatalf("applyEnv failed: %v", err)
	}
	if c.ListenAddr != ":9999" || c.DBPath != "/tmp/s.db" {
		t.Errorf("Address/DB not overridden: %s %s", c.ListenAddr, c.DBPath)
	}
	if !c.Wrap || c.PowerUps {
		t.Errorf("Expected wrap on and power-ups off, got wrap=%v powerups=%v", c.Wrap, c.PowerUps)
	}
	if !c.Accelerate {
		t.Errorf("Unset variable should keep the default")
	}
}

func TestApplyEnvRejectsGarbage(t *testing.T) {
	c := DefaultConfig()
	err := c.applyEnv(func(k string) (string, bool) {
		if k == "SNAKE_WRAP" {
			return "sometimes", true
		}
		return "", false
	})
	if err == nil || !strings.Contains(err.Error(), "SNAKE_WRAP") {
		t.Errorf("Expected SNAKE_WRAP error, got %v", err)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	c := DefaultConfig()
	c.BoardWidth = 1
	c.MaxClients = 0
	err := c.Validate()
	if err == nil {
		t.Fatal("Expected validation errors")
	}
	if !strings.Contains(err.Error(), "too small") || !strings.Contains(err.Error(), "client limit") {
		t.Errorf("Expected both problems reported, got %v", err)
	}
}

func TestAnalyzeAndApply(t *testing.T) {
	snapshot := map[string]interface{}{
		"tick":      map[string]interface{}{"max_latency_ms": 1.0},
		"scores":    map[string]interface{}{"submit_errors": int64(0)},
		"websocket": map[string]interface{}{"frames_dropped": int64(3)},
	}
	rec := Analyze(nil, snapshot)
	if !rec.IncreaseSendBuffer || rec.CheckStorage {
		t.Errorf("Unexpected recommendations %+v", rec)
	}

	base := DefaultConfig()
	next := ApplyRecommendations(base, rec)
	if next.ClientSendBuffer != base.ClientSendBuffer*2 {
		t.Errorf("Expected doubled send buffer, got %d", next.ClientSendBuffer)
	}
	if base.ClientSendBuffer != 64 {
		t.Errorf("ApplyRecommendations must not mutate its input")
	}
}

func TestAnalyzeReactsOnlyToNewDrops(t *testing.T) {
	prev := map[string]interface{}{
		"scores":    map[string]interface{}{"submit_errors": int64(2)},
		"websocket": map[string]interface{}{"frames_dropped": int64(3)},
	}
	same := map[string]interface{}{
		"scores":    map[string]interface{}{"submit_errors": int64(2)},
		"websocket": map[string]interface{}{"frames_dropped": int64(3)},
	}
	rec := Analyze(prev, same)
	if rec.IncreaseSendBuffer || rec.CheckStorage || len(rec.Notes) != 0 {
		t.Errorf("Unchanged counters must not trigger tuning, got %+v", rec)
	}

	grown := map[string]interface{}{
		"scores":    map[string]interface{}{"submit_errors": int64(3)},
		"websocket": map[string]interface{}{"frames_dropped": int64(3)},
	}
	rec = Analyze(same, grown)
	if !rec.CheckStorage || rec.IncreaseSendBuffer {
		t.Errorf("Expected only a storage warning, got %+v", rec)
	}
}

func TestApplyEnvEventHistory(t *testing.T) {
	c := DefaultConfig()
	err := c.applyEnv(func(k string) (string, bool) {
		if k == "SNAKE_EVENT_HISTORY" {
			return "500", true
		}
		return "", false
	})
	if err != nil || c.EventHistory != 500 {
		t.Errorf("Expected event history 500, got %d (err %v)", c.EventHistory, err)
	}

	c.EventHistory = 0
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "event history") {
		t.Errorf("Expected event history validation error, got %v", err)
	}
}
