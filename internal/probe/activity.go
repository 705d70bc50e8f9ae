package probe

import "time"

// ActivityThreshold is how recently input must have occurred to
// count the user as active.
const ActivityThreshold = 30 * time.Second

// ActivityProbe reports whether the user is currently at the
// keyboard/mouse (C2). Detection is OS-specific (see activity_*.go);
// any detection failure falls back to "active" — a false "idle"
// reading risks dispatching AI compute onto a laptop someone is
// actively using, which is the worse failure mode.
type ActivityProbe struct{}

func NewActivityProbe() *ActivityProbe { return &ActivityProbe{} }

// IsUserActive reports whether user input was seen within
// ActivityThreshold.
func (a *ActivityProbe) IsUserActive() bool {
	return checkUserActivity()
}
