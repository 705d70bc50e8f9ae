package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// AgentConfig is the top-level configuration for cmd/agent.
type AgentConfig struct {
	AgentID   string          `yaml:"agentId"`
	Host      string          `yaml:"host"`
	Port      int             `yaml:"port"`
	HubURL    string          `yaml:"hubUrl"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Readiness ReadinessConfig `yaml:"readiness"`
	APIServer APIServerConfig `yaml:"apiServer"`
}

// LifecycleConfig controls registration/heartbeat timing (C6).
type LifecycleConfig struct {
	HeartbeatInterval       time.Duration `yaml:"heartbeatInterval"`
	HeartbeatTimeout        time.Duration `yaml:"heartbeatTimeout"`
	RegisterTimeout         time.Duration `yaml:"registerTimeout"`
	MaxConsecutiveFailures  int           `yaml:"maxConsecutiveFailures"`
}

// ReadinessConfig controls the readiness evaluator's thresholds (C4).
type ReadinessConfig struct {
	IdleMinSeconds   float64 `yaml:"idleMinSeconds"`
	IdleCPUThreshold float64 `yaml:"idleCpuThreshold"`
}

// APIServerConfig is shared between agent and hub HTTP listeners.
type APIServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// HubConfig is the top-level configuration for cmd/hub.
type HubConfig struct {
	APIServer APIServerConfig `yaml:"apiServer"`
	Registry  RegistryConfig  `yaml:"registry"`
	Cache     CacheConfig     `yaml:"cache"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Poller    PollerConfig    `yaml:"poller"`
	Queue     QueueConfig     `yaml:"queue"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	Advisor   AdvisorConfig   `yaml:"advisor"`
}

// RegistryConfig controls node bookkeeping (C7).
type RegistryConfig struct {
	OfflineAfter  time.Duration `yaml:"offlineAfter"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

// CacheConfig controls the readiness cache (C8).
type CacheConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
}

// SchedulerConfig controls dispatch behavior (C9).
type SchedulerConfig struct {
	MinReadinessScore int           `yaml:"minReadinessScore"`
	PollInterval      time.Duration `yaml:"pollInterval"`
	DispatchTimeout   time.Duration `yaml:"dispatchTimeout"`
	ReadinessTimeout  time.Duration `yaml:"readinessTimeout"`
}

// PollerConfig controls the health poller (C10).
type PollerConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// QueueConfig controls the task queue driver (C11).
type QueueConfig struct {
	DrainInterval time.Duration `yaml:"drainInterval"`
}

// BreakerConfig controls the per-node failure tracker (§4.11).
type BreakerConfig struct {
	Threshold float64       `yaml:"threshold"`
	Window    time.Duration `yaml:"window"`
	Cooldown  time.Duration `yaml:"cooldown"`
}

// AdvisorConfig controls the optional advisory fallback gate (§4.14).
// Disabled by default; enabling it requires an API key.
type AdvisorConfig struct {
	Enabled bool          `yaml:"enabled"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
	APIKey  string        `yaml:"apiKey"`
}

// DefaultAgentConfig returns an AgentConfig with the defaults from
// spec.md §6 (heartbeat 10s, heartbeat timeout 60s, idle 300s / 10%).
func DefaultAgentConfig() *AgentConfig {
	cfg := &AgentConfig{
		AgentID: "",
		Host:    "0.0.0.0",
		Port:    8090,
		HubURL:  "http://localhost:8080",
		Lifecycle: LifecycleConfig{
			HeartbeatInterval:      10 * time.Second,
			HeartbeatTimeout:       60 * time.Second,
			RegisterTimeout:        10 * time.Second,
			MaxConsecutiveFailures: 5,
		},
		Readiness: ReadinessConfig{
			IdleMinSeconds:   300,
			IdleCPUThreshold: 10.0,
		},
		APIServer: APIServerConfig{
			Enabled: true,
			Address: "0.0.0.0",
			Port:    8090,
		},
	}
	cfg.applyAgentEnvOverrides()
	return cfg
}

// LoadAgentConfigFromFile loads agent config from a YAML file,
// overlaying on defaults, then applies env overrides on top.
func LoadAgentConfigFromFile(path string) (*AgentConfig, error) {
	cfg := DefaultAgentConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading agent config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing agent config file: %w", err)
	}

	cfg.applyAgentEnvOverrides()
	return cfg, nil
}

func (c *AgentConfig) applyAgentEnvOverrides() {
	if v := os.Getenv("AGENT_ID"); v != "" {
		c.AgentID = v
	}
	if v := os.Getenv("AGENT_HOST"); v != "" {
		c.Host = v
		c.APIServer.Address = v
	}
	if v := os.Getenv("AGENT_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
			c.APIServer.Port = p
		}
	}
	if v := os.Getenv("HUB_URL"); v != "" {
		c.HubURL = v
	}
	if v := os.Getenv("HEARTBEAT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Lifecycle.HeartbeatInterval = d
		} else if secs, err := strconv.Atoi(v); err == nil {
			c.Lifecycle.HeartbeatInterval = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("HEARTBEAT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Lifecycle.HeartbeatTimeout = d
		} else if secs, err := strconv.Atoi(v); err == nil {
			c.Lifecycle.HeartbeatTimeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("IDLE_MIN_SECONDS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Readiness.IdleMinSeconds = f
		}
	}
	if v := os.Getenv("IDLE_CPU_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Readiness.IdleCPUThreshold = f
		}
	}
}

// Validate checks the agent config for errors.
func (c *AgentConfig) Validate() error {
	if c.AgentID == "" {
		return fmt.Errorf("agentId is required: set in config file or AGENT_ID env var")
	}
	if c.HubURL == "" {
		return fmt.Errorf("hubUrl is required: set in config file or HUB_URL env var")
	}
	if c.Lifecycle.HeartbeatInterval <= 0 {
		return fmt.Errorf("lifecycle.heartbeatInterval must be > 0")
	}
	if c.Lifecycle.HeartbeatTimeout <= c.Lifecycle.HeartbeatInterval {
		return fmt.Errorf("lifecycle.heartbeatTimeout (%s) must be greater than heartbeatInterval (%s)",
			c.Lifecycle.HeartbeatTimeout, c.Lifecycle.HeartbeatInterval)
	}
	if c.Readiness.IdleMinSeconds < 0 {
		return fmt.Errorf("readiness.idleMinSeconds must be >= 0")
	}
	if c.Readiness.IdleCPUThreshold < 0 || c.Readiness.IdleCPUThreshold > 100 {
		return fmt.Errorf("readiness.idleCpuThreshold must be between 0 and 100, got %.1f", c.Readiness.IdleCPUThreshold)
	}
	return nil
}

// DefaultHubConfig returns a HubConfig with sensible defaults matching
// spec.md §4.7-§4.10's timing constants.
func DefaultHubConfig() *HubConfig {
	cfg := &HubConfig{
		APIServer: APIServerConfig{
			Enabled: true,
			Address: "0.0.0.0",
			Port:    8080,
		},
		Registry: RegistryConfig{
			OfflineAfter:  60 * time.Second,
			SweepInterval: 30 * time.Second,
		},
		Cache: CacheConfig{
			TTL:             30 * time.Second,
			CleanupInterval: 60 * time.Second,
		},
		Scheduler: SchedulerConfig{
			MinReadinessScore: 60,
			PollInterval:      2 * time.Second,
			DispatchTimeout:   60 * time.Second,
			ReadinessTimeout:  10 * time.Second,
		},
		Poller: PollerConfig{
			Interval: 30 * time.Second,
			Timeout:  15 * time.Second,
		},
		Queue: QueueConfig{
			DrainInterval: 2 * time.Second,
		},
		Breaker: BreakerConfig{
			Threshold: 0.5,
			Window:    5 * time.Minute,
			Cooldown:  2 * time.Minute,
		},
		Advisor: AdvisorConfig{
			Enabled: false,
			Model:   "claude-sonnet-4-6",
			Timeout: 10 * time.Second,
		},
	}
	cfg.applyHubEnvOverrides()
	return cfg
}

// LoadHubConfigFromFile loads hub config from a YAML file, overlaying
// on defaults, then applies env overrides on top.
func LoadHubConfigFromFile(path string) (*HubConfig, error) {
	cfg := DefaultHubConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading hub config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing hub config file: %w", err)
	}

	cfg.applyHubEnvOverrides()
	return cfg, nil
}

func (c *HubConfig) applyHubEnvOverrides() {
	if v := os.Getenv("HUB_HOST"); v != "" {
		c.APIServer.Address = v
	}
	if v := os.Getenv("HUB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.APIServer.Port = p
		}
	}
	if v := os.Getenv("READINESS_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Cache.TTL = d
		} else if secs, err := strconv.Atoi(v); err == nil {
			c.Cache.TTL = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && c.Advisor.APIKey == "" {
		c.Advisor.APIKey = v
	}
}

// Validate checks the hub config for errors.
func (c *HubConfig) Validate() error {
	if c.APIServer.Port <= 0 {
		return fmt.Errorf("apiServer.port must be > 0")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be > 0")
	}
	if c.Scheduler.MinReadinessScore < 0 || c.Scheduler.MinReadinessScore > 100 {
		return fmt.Errorf("scheduler.minReadinessScore must be between 0 and 100, got %d", c.Scheduler.MinReadinessScore)
	}
	if c.Breaker.Threshold <= 0 || c.Breaker.Threshold > 1 {
		return fmt.Errorf("breaker.threshold must be between 0 and 1, got %.2f", c.Breaker.Threshold)
	}
	return nil
}

