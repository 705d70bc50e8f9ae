// Package wire defines the JSON schema records that cross the
// agent<->hub HTTP boundary. Centralising them here keeps the
// over-the-wire format explicit instead of passing untyped
// map[string]interface{} blobs between packages.
package wire

import "time"

// IdleState mirrors the idle-session facts a readiness evaluation
// produces.
type IdleState struct {
	IsIdle              bool      `json:"is_idle"`
	IdleDurationSeconds float64   `json:"idle_duration_seconds"`
	UserActive          bool      `json:"user_active"`
	LastActivityAt      time.Time `json:"last_activity_at"`
}

// PowerState mirrors the battery/plug facts the power probe reports.
type PowerState struct {
	OnBattery           bool     `json:"on_battery"`
	BatteryLevelPercent float64  `json:"battery_level_percent"`
	PowerPlugged        bool     `json:"power_plugged"`
	TimeLeftSeconds     *float64 `json:"time_left_seconds,omitempty"`
}

// ComputeLimits are the per-agent ceilings derived from power state.
type ComputeLimits struct {
	MaxCPUUsagePercent    float64 `json:"max_cpu_usage_percent"`
	MaxMemoryUsagePercent float64 `json:"max_memory_usage_percent"`
	MaxConcurrentTasks    int     `json:"max_concurrent_tasks"`
}

// CurrentResources mirrors the most recent resource-probe sample.
type CurrentResources struct {
	CPUUsagePercent    float64  `json:"cpu_usage_percent"`
	MemoryUsagePercent float64  `json:"memory_usage_percent"`
	GPUAvailable       bool     `json:"gpu_available"`
	GPUUsagePercent    *float64 `json:"gpu_usage_percent,omitempty"`
}

// ReadinessSnapshot is the full output of a readiness evaluation
// (C4), cached by the hub (C8) and served by the agent (C5).
type ReadinessSnapshot struct {
	ReadyForAI       bool             `json:"ready_for_ai"`
	ReadinessScore   int              `json:"readiness_score"`
	IdleState        IdleState        `json:"idle_state"`
	PowerState       PowerState       `json:"power_state"`
	ComputeLimits    ComputeLimits    `json:"compute_limits"`
	CurrentResources CurrentResources `json:"current_resources"`
	Recommendations  []string         `json:"recommendations"`
}

// RegisterRequest is the body of POST /nodes/register.
type RegisterRequest struct {
	ID                 string     `json:"id"`
	Host               string     `json:"host"`
	Port               int        `json:"port"`
	Capabilities       []string   `json:"capabilities"`
	MaxConcurrentTasks int        `json:"max_concurrent_tasks"`
	ReadyForAI         bool       `json:"ready_for_ai"`
	ReadinessScore     int        `json:"readiness_score"`
	GPUAvailable       bool       `json:"gpu_available"`
	PowerState         PowerState `json:"power_state"`
}

// HeartbeatRequest is the body of POST /nodes/{id}/heartbeat.
type HeartbeatRequest struct {
	Timestamp        time.Time        `json:"timestamp"`
	ReadyForAI       bool             `json:"ready_for_ai"`
	ReadinessScore   int              `json:"readiness_score"`
	IdleState        IdleState        `json:"idle_state"`
	PowerState       PowerState       `json:"power_state"`
	CurrentResources CurrentResources `json:"current_resources"`
	ComputeLimits    ComputeLimits    `json:"compute_limits"`
	HealthStatus     string           `json:"health_status"`
}

// SystemFacts are static-ish host facts reported by health_detailed.
type SystemFacts struct {
	CPUCount     int   `json:"cpu_count"`
	MemoryTotal  int64 `json:"memory_total_bytes"`
	BootTimeUnix int64 `json:"boot_time_unix"`
}

// TaskStats summarises the agent's task history ring buffer.
type TaskStats struct {
	TotalTasks     int     `json:"total_tasks"`
	CompletedTasks int     `json:"completed_tasks"`
	FailedTasks    int     `json:"failed_tasks"`
	AvgDuration    float64 `json:"avg_duration_seconds"`
	SuccessRate    float64 `json:"success_rate_percent"`
}

// HealthDetailedResponse is the body of GET /health/detailed.
type HealthDetailedResponse struct {
	Timestamp      time.Time         `json:"timestamp"`
	UptimeSeconds  float64           `json:"uptime_seconds"`
	System         SystemFacts       `json:"system"`
	TaskStats      TaskStats         `json:"task_stats"`
	Status         string            `json:"status"` // healthy|warning|critical
	Readiness      ReadinessSnapshot `json:"ai_compute_readiness"`
}

// CapabilitiesResponse is the body of GET /capabilities.
type CapabilitiesResponse struct {
	AgentID            string     `json:"agent_id"`
	Capabilities       []string   `json:"capabilities"`
	MaxConcurrentTasks int        `json:"max_concurrent_tasks"`
	ReadyForAI         bool       `json:"ready_for_ai"`
	ReadinessScore     int        `json:"readiness_score"`
	GPUAvailable       bool       `json:"gpu_available"`
	PowerState         PowerState `json:"power_state"`
}

// AIComputeContext is attached to a task dispatched by the scheduler.
type AIComputeContext struct {
	ScoreSnapshot ReadinessSnapshot `json:"score_snapshot"`
	ScheduledAt   time.Time         `json:"scheduled_at"`
	PowerAware    bool              `json:"power_aware"`
}

// Task is the payload agents receive on POST /tasks/execute and
// clients submit on POST /tasks.
type Task struct {
	ID        string            `json:"id"`
	TaskType  string            `json:"task_type"`
	Priority  int               `json:"priority"`
	CreatedAt time.Time         `json:"created_at"`
	Payload   map[string]any    `json:"payload,omitempty"`
}

// ExecuteRequest is the body of POST /tasks/execute.
type ExecuteRequest struct {
	Task
	AIComputeContext *AIComputeContext `json:"ai_compute_context,omitempty"`
}

// ExecuteResponse is the response shape for POST /tasks/execute.
// Status is one of completed|failed|rejected; fields are populated
// according to that status (§6 of the spec).
type ExecuteResponse struct {
	Status             string          `json:"status"`
	Result             map[string]any  `json:"result,omitempty"`
	Error              string          `json:"error,omitempty"`
	DurationSeconds    float64         `json:"duration,omitempty"`
	ComputeLimitsUsed  *ComputeLimits  `json:"compute_limits_used,omitempty"`
	ReadinessScore     int             `json:"readiness_score,omitempty"`
	Recommendations    []string        `json:"recommendations,omitempty"`
}
