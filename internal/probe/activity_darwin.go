//go:build darwin

package probe

import (
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// checkUserActivity parses HIDIdleTime (nanoseconds) out of
// `ioreg -c IOHIDSystem`. Falls back to active on any parse failure.
func checkUserActivity() bool {
	out, err := exec.Command("ioreg", "-c", "IOHIDSystem").Output()
	if err != nil {
		return true
	}
	for _, line := range strings.Split(string(out), "\n") {
		if !strings.Contains(line, "HIDIdleTime") {
			continue
		}
		parts := strings.Split(line, "=")
		if len(parts) < 2 {
			continue
		}
		idleNS, err := strconv.ParseInt(strings.TrimSpace(parts[len(parts)-1]), 10, 64)
		if err != nil {
			continue
		}
		return time.Duration(idleNS) < ActivityThreshold
	}
	return true
}
