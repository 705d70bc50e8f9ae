package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultAgentConfig_ReturnsExpectedDefaults(t *testing.T) {
	cfg := DefaultAgentConfig()

	if cfg.Lifecycle.HeartbeatInterval != 10*time.Second {
		t.Errorf("HeartbeatInterval = %v, want %v", cfg.Lifecycle.HeartbeatInterval, 10*time.Second)
	}
	if cfg.Lifecycle.HeartbeatTimeout != 60*time.Second {
		t.Errorf("HeartbeatTimeout = %v, want %v", cfg.Lifecycle.HeartbeatTimeout, 60*time.Second)
	}
	if cfg.Lifecycle.MaxConsecutiveFailures != 5 {
		t.Errorf("MaxConsecutiveFailures = %d, want %d", cfg.Lifecycle.MaxConsecutiveFailures, 5)
	}
	if cfg.Readiness.IdleMinSeconds != 300 {
		t.Errorf("IdleMinSeconds = %v, want %v", cfg.Readiness.IdleMinSeconds, 300.0)
	}
	if cfg.Readiness.IdleCPUThreshold != 10.0 {
		t.Errorf("IdleCPUThreshold = %v, want %v", cfg.Readiness.IdleCPUThreshold, 10.0)
	}
	if cfg.APIServer.Port != 8090 {
		t.Errorf("APIServer.Port = %d, want %d", cfg.APIServer.Port, 8090)
	}
}

func TestAgentConfig_Validate_RequiresAgentID(t *testing.T) {
	cfg := DefaultAgentConfig()
	cfg.HubURL = "http://hub:8080"

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() with empty AgentID expected error, got nil")
	}

	cfg.AgentID = "laptop-01"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() with AgentID set returned error: %v", err)
	}
}

func TestAgentConfig_Validate_HeartbeatTimeoutMustExceedInterval(t *testing.T) {
	cfg := DefaultAgentConfig()
	cfg.AgentID = "laptop-01"
	cfg.HubURL = "http://hub:8080"
	cfg.Lifecycle.HeartbeatTimeout = cfg.Lifecycle.HeartbeatInterval

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() with heartbeatTimeout == heartbeatInterval expected error, got nil")
	}
}

func TestLoadAgentConfigFromFile_ValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")

	yamlContent := []byte(`agentId: laptop-07
hubUrl: http://hub.internal:8080
lifecycle:
  heartbeatInterval: 15s
readiness:
  idleMinSeconds: 120
`)
	if err := os.WriteFile(path, yamlContent, 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := LoadAgentConfigFromFile(path)
	if err != nil {
		t.Fatalf("LoadAgentConfigFromFile(%q) returned error: %v", path, err)
	}

	if cfg.AgentID != "laptop-07" {
		t.Errorf("AgentID = %q, want %q", cfg.AgentID, "laptop-07")
	}
	if cfg.HubURL != "http://hub.internal:8080" {
		t.Errorf("HubURL = %q, want %q", cfg.HubURL, "http://hub.internal:8080")
	}
	if cfg.Lifecycle.HeartbeatInterval != 15*time.Second {
		t.Errorf("HeartbeatInterval = %v, want %v", cfg.Lifecycle.HeartbeatInterval, 15*time.Second)
	}
	// Defaults still apply for unset fields.
	if cfg.Lifecycle.HeartbeatTimeout != 60*time.Second {
		t.Errorf("HeartbeatTimeout = %v, want default %v", cfg.Lifecycle.HeartbeatTimeout, 60*time.Second)
	}
}

func TestLoadAgentConfigFromFile_InvalidPath(t *testing.T) {
	_, err := LoadAgentConfigFromFile("/nonexistent/path/agent.yaml")
	if err == nil {
		t.Fatal("LoadAgentConfigFromFile with invalid path expected error, got nil")
	}
}

func TestLoadAgentConfigFromFile_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")

	badContent := []byte(`agentId: [invalid
  hubUrl: {{broken
`)
	if err := os.WriteFile(path, badContent, 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	_, err := LoadAgentConfigFromFile(path)
	if err == nil {
		t.Fatal("LoadAgentConfigFromFile with invalid YAML expected error, got nil")
	}
}

func TestAgentEnvOverrides(t *testing.T) {
	t.Setenv("AGENT_ID", "env-laptop")
	t.Setenv("AGENT_PORT", "9100")
	t.Setenv("IDLE_MIN_SECONDS", "600")

	cfg := DefaultAgentConfig()

	if cfg.AgentID != "env-laptop" {
		t.Errorf("AgentID = %q, want %q", cfg.AgentID, "env-laptop")
	}
	if cfg.Port != 9100 {
		t.Errorf("Port = %d, want %d", cfg.Port, 9100)
	}
	if cfg.Readiness.IdleMinSeconds != 600 {
		t.Errorf("IdleMinSeconds = %v, want %v", cfg.Readiness.IdleMinSeconds, 600.0)
	}
}

func TestDefaultHubConfig_ReturnsExpectedDefaults(t *testing.T) {
	cfg := DefaultHubConfig()

	if cfg.Cache.TTL != 30*time.Second {
		t.Errorf("Cache.TTL = %v, want %v", cfg.Cache.TTL, 30*time.Second)
	}
	if cfg.Scheduler.MinReadinessScore != 60 {
		t.Errorf("Scheduler.MinReadinessScore = %d, want %d", cfg.Scheduler.MinReadinessScore, 60)
	}
	if cfg.Advisor.Enabled {
		t.Error("Advisor.Enabled = true, want false (off by default)")
	}
	if cfg.APIServer.Port != 8080 {
		t.Errorf("APIServer.Port = %d, want %d", cfg.APIServer.Port, 8080)
	}
}

func TestHubConfig_ValidateDetailed_AdvisorRequiresAPIKey(t *testing.T) {
	cfg := DefaultHubConfig()
	cfg.Advisor.Enabled = true
	cfg.Advisor.APIKey = ""

	if err := ValidateHubDetailed(cfg); err == nil {
		t.Fatal("ValidateHubDetailed() with advisor enabled and no API key expected error, got nil")
	}

	cfg.Advisor.APIKey = "sk-ant-test"
	if err := ValidateHubDetailed(cfg); err != nil {
		t.Errorf("ValidateHubDetailed() with API key set returned error: %v", err)
	}
}

func TestHubConfig_Validate_MinReadinessScoreRange(t *testing.T) {
	tests := []struct {
		name  string
		score int
		valid bool
	}{
		{"zero", 0, true},
		{"hundred", 100, true},
		{"negative", -1, false},
		{"over hundred", 101, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultHubConfig()
			cfg.Scheduler.MinReadinessScore = tt.score

			err := cfg.Validate()
			if tt.valid && err != nil {
				t.Errorf("Validate() with score=%d returned error: %v", tt.score, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Validate() with score=%d expected error, got nil", tt.score)
			}
		})
	}
}

func TestLoadHubConfigFromFile_MergesWithDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hub.yaml")

	yamlContent := []byte(`scheduler:
  minReadinessScore: 75
`)
	if err := os.WriteFile(path, yamlContent, 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := LoadHubConfigFromFile(path)
	if err != nil {
		t.Fatalf("LoadHubConfigFromFile(%q) returned error: %v", path, err)
	}

	if cfg.Scheduler.MinReadinessScore != 75 {
		t.Errorf("Scheduler.MinReadinessScore = %d, want %d", cfg.Scheduler.MinReadinessScore, 75)
	}
	// Unset fields keep defaults.
	if cfg.Cache.TTL != 30*time.Second {
		t.Errorf("Cache.TTL = %v, want default %v", cfg.Cache.TTL, 30*time.Second)
	}
}
