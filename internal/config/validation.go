package config

import (
	"fmt"
	"strings"
)

// ValidationError collects multiple validation errors so a config
// problem report shows everything wrong at once instead of stopping
// at the first field.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: %s", strings.Join(e.Errors, "; "))
}

func (e *ValidationError) Add(msg string) {
	e.Errors = append(e.Errors, msg)
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ValidateAgentDetailed performs comprehensive validation of an
// AgentConfig, beyond the single-error checks in Validate().
func ValidateAgentDetailed(cfg *AgentConfig) *ValidationError {
	ve := &ValidationError{}

	if err := cfg.Validate(); err != nil {
		ve.Add(err.Error())
	}

	if cfg.APIServer.Enabled {
		if cfg.APIServer.Port < 1 || cfg.APIServer.Port > 65535 {
			ve.Add("apiServer.port must be between 1 and 65535")
		}
	}

	if cfg.Lifecycle.MaxConsecutiveFailures < 1 {
		ve.Add("lifecycle.maxConsecutiveFailures must be >= 1")
	}

	if cfg.Lifecycle.RegisterTimeout <= 0 {
		ve.Add("lifecycle.registerTimeout must be > 0")
	}

	if ve.HasErrors() {
		return ve
	}
	return nil
}

// ValidateHubDetailed performs comprehensive validation of a
// HubConfig, including the cross-field safety checks that basic
// Validate() doesn't cover.
func ValidateHubDetailed(cfg *HubConfig) *ValidationError {
	ve := &ValidationError{}

	if err := cfg.Validate(); err != nil {
		ve.Add(err.Error())
	}

	if cfg.APIServer.Enabled {
		if cfg.APIServer.Port < 1 || cfg.APIServer.Port > 65535 {
			ve.Add("apiServer.port must be between 1 and 65535")
		}
	}

	// Advisory gate requires a key when enabled (§4.14): a fail-open
	// gate that's misconfigured should fail loudly at startup, not
	// silently no-op every request.
	if cfg.Advisor.Enabled && cfg.Advisor.APIKey == "" {
		ve.Add("advisor.apiKey is required when advisor.enabled is true")
	}

	if cfg.Registry.OfflineAfter <= 0 {
		ve.Add("registry.offlineAfter must be > 0")
	}
	if cfg.Registry.SweepInterval <= 0 {
		ve.Add("registry.sweepInterval must be > 0")
	}

	if cfg.Scheduler.PollInterval <= 0 {
		ve.Add("scheduler.pollInterval must be > 0")
	}
	if cfg.Scheduler.DispatchTimeout <= 0 {
		ve.Add("scheduler.dispatchTimeout must be > 0")
	}

	if cfg.Breaker.Window <= 0 {
		ve.Add("breaker.window must be > 0")
	}
	if cfg.Breaker.Cooldown <= 0 {
		ve.Add("breaker.cooldown must be > 0")
	}

	if ve.HasErrors() {
		return ve
	}
	return nil
}
