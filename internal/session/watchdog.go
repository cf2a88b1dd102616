package session

import (
	"sync"
	"time"
)

// watchdog calls onExpire once timeout passes without a re-arm.
type watchdog struct {
	timeout  time.Duration
	onExpire func()

	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
}

func newWatchdog(timeout time.Duration, onExpire func()) *watchdog {
	return &watchdog{
		timeout:  timeout,
		onExpire: onExpire,
	}
}

// Arm restarts the countdown. A non-positive timeout disables the watchdog.
func (that *watchdog) Arm() {
	if that.timeout <= 0 {
		return
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	that.stop()

	generation := that.generation
	that.timer = time.AfterFunc(that.timeout, func() {
		that.fire(generation)
	})
}

func (that *watchdog) Disarm() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.stop()
}

func (that *watchdog) stop() {
	that.generation++

	if that.timer != nil {
		that.timer.Stop()
		that.timer = nil
	}
}

func (that *watchdog) fire(generation uint64) {
	that.mu.Lock()
	if generation != that.generation {
		that.mu.Unlock()
		return
	}
	that.timer = nil
	that.mu.Unlock()

	that.onExpire()
}
