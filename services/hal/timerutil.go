// services/hal/timerutil.go
package hal

import (
	"time"

	"dht11-go/x/mathx"
)

// resetTimer safely stops, drains, and resets a timer.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		drainTimer(t)
	}
	t.Reset(mathx.Max(d, 0))
}

func drainTimer(t *time.Timer) {
	select {
	case <-t.C:
	default:
	}
}

// idleWait is the timer period used when nothing is scheduled.
const idleWait = time.Hour
