// Package probe samples the host-level facts the readiness evaluator
// needs: battery/power state (C1), user activity (C2), and CPU/memory
// load (C3).
package probe

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/exostack/exostack/internal/wire"
)

// ComputeLimits are the per-power-state ceilings from the scoring
// table: full power gets the most headroom, low battery the least.
func ComputeLimits(p wire.PowerState) wire.ComputeLimits {
	if !p.OnBattery {
		return wire.ComputeLimits{MaxCPUUsagePercent: 90, MaxMemoryUsagePercent: 90, MaxConcurrentTasks: 5}
	}
	switch {
	case p.BatteryLevelPercent < 20:
		return wire.ComputeLimits{MaxCPUUsagePercent: 30, MaxMemoryUsagePercent: 50, MaxConcurrentTasks: 1}
	case p.BatteryLevelPercent < 50:
		return wire.ComputeLimits{MaxCPUUsagePercent: 50, MaxMemoryUsagePercent: 70, MaxConcurrentTasks: 2}
	default:
		return wire.ComputeLimits{MaxCPUUsagePercent: 70, MaxMemoryUsagePercent: 80, MaxConcurrentTasks: 3}
	}
}

// ShouldThrottle reports whether compute should be throttled purely
// on power grounds (on battery and below 20%).
func ShouldThrottle(p wire.PowerState) bool {
	return p.OnBattery && p.BatteryLevelPercent < 20.0
}

// PowerProbe reads battery/AC state (C1). On platforms or machines
// with no battery (desktops, most servers), it reports full power
// with a safe "plugged in" default rather than erroring.
type PowerProbe struct {
	sysRoot string
}

// NewPowerProbe builds a probe rooted at sysRoot (normally "/sys";
// overridable in tests).
func NewPowerProbe(sysRoot string) *PowerProbe {
	if sysRoot == "" {
		sysRoot = "/sys"
	}
	return &PowerProbe{sysRoot: sysRoot}
}

// Sample reads the current power state from the first battery found
// under /sys/class/power_supply. Absence of a battery directory is
// not an error: it means the machine is mains-powered.
func (p *PowerProbe) Sample() wire.PowerState {
	base := filepath.Join(p.sysRoot, "class", "power_supply")
	entries, err := os.ReadDir(base)
	if err != nil {
		return wire.PowerState{OnBattery: false, BatteryLevelPercent: 100.0, PowerPlugged: true}
	}

	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "BAT") {
			continue
		}
		dir := filepath.Join(base, name)
		capacity := readIntFile(filepath.Join(dir, "capacity"))
		status := strings.TrimSpace(readStringFile(filepath.Join(dir, "status")))
		pluggedIn := isACOnline(base, entries)

		state := wire.PowerState{
			OnBattery:           !pluggedIn,
			BatteryLevelPercent: float64(capacity),
			PowerPlugged:        pluggedIn,
		}
		if status == "Discharging" {
			if secs, ok := readTimeToEmptySeconds(dir); ok {
				state.TimeLeftSeconds = &secs
			}
		}
		return state
	}

	// No battery present at all: treat as fully mains-powered.
	return wire.PowerState{OnBattery: false, BatteryLevelPercent: 100.0, PowerPlugged: true}
}

func isACOnline(base string, entries []os.DirEntry) bool {
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "AC") || strings.HasPrefix(name, "ADP") {
			if readIntFile(filepath.Join(base, name, "online")) == 1 {
				return true
			}
		}
	}
	return false
}

func readTimeToEmptySeconds(batDir string) (float64, bool) {
	// energy_now/power_now (µWh / µW) when available, else
	// charge_now/current_now (µAh / µA).
	energyNow := readIntFile(filepath.Join(batDir, "energy_now"))
	powerNow := readIntFile(filepath.Join(batDir, "power_now"))
	if powerNow > 0 {
		return float64(energyNow) / float64(powerNow) * 3600, true
	}
	chargeNow := readIntFile(filepath.Join(batDir, "charge_now"))
	currentNow := readIntFile(filepath.Join(batDir, "current_now"))
	if currentNow > 0 {
		return float64(chargeNow) / float64(currentNow) * 3600, true
	}
	return 0, false
}

func readIntFile(path string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(readStringFile(path)), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func readStringFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}
