package probe

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/exostack/exostack/internal/wire"
)

// ResourceProbe samples CPU and memory load from procfs (C3). Two-point
// /proc/stat delta sampling over SampleInterval, same approach as
// two-point jiffy-delta CPU accounting used elsewhere in the ecosystem
// for exactly this purpose (no single read of /proc/stat yields a
// percentage, only a cumulative counter).
type ResourceProbe struct {
	procRoot       string
	SampleInterval time.Duration
}

// NewResourceProbe builds a probe rooted at procRoot (normally
// "/proc"; overridable in tests).
func NewResourceProbe(procRoot string) *ResourceProbe {
	if procRoot == "" {
		procRoot = "/proc"
	}
	return &ResourceProbe{procRoot: procRoot, SampleInterval: time.Second}
}

type cpuTimes struct {
	user, nice, system, idle, iowait, irq, softirq, steal uint64
}

func (t cpuTimes) total() uint64 {
	return t.user + t.nice + t.system + t.idle + t.iowait + t.irq + t.softirq + t.steal
}

func (t cpuTimes) busy() uint64 {
	return t.total() - t.idle - t.iowait
}

// Sample blocks for SampleInterval (or until ctx is cancelled) taking
// a two-point delta, then returns instantaneous CPU and memory usage.
func (p *ResourceProbe) Sample(ctx context.Context) (wire.CurrentResources, error) {
	before := p.readCPUTimes()

	interval := p.SampleInterval
	if interval <= 0 {
		interval = time.Second
	}
	select {
	case <-time.After(interval):
	case <-ctx.Done():
		return wire.CurrentResources{}, ctx.Err()
	}

	after := p.readCPUTimes()

	res := wire.CurrentResources{
		CPUUsagePercent:    cpuPercent(before, after),
		MemoryUsagePercent: p.readMemoryPercent(),
		GPUAvailable:       detectGPU(),
	}
	return res, nil
}

// detectGPU reports whether the host has GPU capability available to
// tasks. The pack carries no Go GPU-detection library (no NVML/ROCm
// binding, no lspci parser), so this is an explicit override rather
// than a real probe: operators running on GPU-equipped nodes set
// EXOSTACK_GPU_AVAILABLE=true in the node's environment. Absent that,
// a node never claims GPU capability and gpu_inference/training tasks
// simply never match it.
func detectGPU() bool {
	v, err := strconv.ParseBool(os.Getenv("EXOSTACK_GPU_AVAILABLE"))
	return err == nil && v
}

func cpuPercent(before, after cpuTimes) float64 {
	totalDelta := float64(after.total() - before.total())
	if totalDelta <= 0 {
		return 0
	}
	busyDelta := float64(after.busy() - before.busy())
	return busyDelta / totalDelta * 100
}

func (p *ResourceProbe) readCPUTimes() cpuTimes {
	f, err := os.Open(filepath.Join(p.procRoot, "stat"))
	if err != nil {
		return cpuTimes{}
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) >= 9 && fields[0] == "cpu" {
			return parseCPULine(fields)
		}
	}
	return cpuTimes{}
}

func parseCPULine(fields []string) cpuTimes {
	parse := func(i int) uint64 {
		if i >= len(fields) {
			return 0
		}
		v, _ := strconv.ParseUint(fields[i], 10, 64)
		return v
	}
	return cpuTimes{
		user: parse(1), nice: parse(2), system: parse(3), idle: parse(4),
		iowait: parse(5), irq: parse(6), softirq: parse(7), steal: parse(8),
	}
}

func (p *ResourceProbe) readMemoryPercent() float64 {
	f, err := os.Open(filepath.Join(p.procRoot, "meminfo"))
	if err != nil {
		return 0
	}
	defer f.Close()

	var totalKB, availableKB uint64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		switch strings.TrimSuffix(fields[0], ":") {
		case "MemTotal":
			totalKB, _ = strconv.ParseUint(fields[1], 10, 64)
		case "MemAvailable":
			availableKB, _ = strconv.ParseUint(fields[1], 10, 64)
		}
	}
	if totalKB == 0 {
		return 0
	}
	usedKB := totalKB - availableKB
	return float64(usedKB) / float64(totalKB) * 100
}

// SystemFacts are the static-ish host facts served by health_detailed.
type SystemFacts struct {
	CPUCount     int
	MemoryTotal  int64
	BootTimeUnix int64
}

// SystemFacts reads CPU count, total memory, and boot time. Absence of
// /proc/stat's "btime" line (non-Linux) leaves BootTimeUnix at 0
// rather than guessing.
func (p *ResourceProbe) SystemFacts() SystemFacts {
	return SystemFacts{
		CPUCount:     runtime.NumCPU(),
		MemoryTotal:  p.readMemoryTotalBytes(),
		BootTimeUnix: p.readBootTime(),
	}
}

func (p *ResourceProbe) readMemoryTotalBytes() int64 {
	f, err := os.Open(filepath.Join(p.procRoot, "meminfo"))
	if err != nil {
		return 0
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) >= 2 && strings.TrimSuffix(fields[0], ":") == "MemTotal" {
			kb, _ := strconv.ParseInt(fields[1], 10, 64)
			return kb * 1024
		}
	}
	return 0
}

func (p *ResourceProbe) readBootTime() int64 {
	f, err := os.Open(filepath.Join(p.procRoot, "stat"))
	if err != nil {
		return 0
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 2 && fields[0] == "btime" {
			v, _ := strconv.ParseInt(fields[1], 10, 64)
			return v
		}
	}
	return 0
}
