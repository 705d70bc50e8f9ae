// Package idgen generates task ids for POST /tasks. Built directly on
// crypto/rand rather than a UUID library: none of the example repos'
// own code imports one directly (google/uuid only ever shows up as a
// transitive dependency pulled in by something else's go.sum), so
// there is nothing in the corpus to ground a UUID library choice on.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewTaskID returns a "task-" prefixed random hex id, collision odds
// low enough for an in-memory task table sized for one hub's queue.
func NewTaskID() string {
	return "task-" + randomHex(8)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand.Read failing means the platform's entropy source
		// is broken; there is no sane fallback to return a task id from.
		panic(fmt.Sprintf("idgen: reading random bytes: %v", err))
	}
	return hex.EncodeToString(buf)
}
