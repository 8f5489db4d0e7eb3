package timer

import (
	"time"
)

// tickLoop drives the main countdown. Each tick hands control to the engine,
// which decides from the captured generation whether the loop is still current.
type tickLoop struct {
	*stopper
	generation uint64
}

// startTickLoop launches the loop goroutine. tick returns false when the loop
// should stop (stale generation, or the timer finished).
func startTickLoop(clock Clock, interval time.Duration, generation uint64, tick func(gen uint64) bool) *tickLoop {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	loop := &tickLoop{
		stopper:    newStopper(clock.NewTicker(interval)),
		generation: generation,
	}

	go func() {
		defer loop.ticker.Stop()
		for {
			select {
			case <-loop.stopCh:
				loop.drain()
				return
			case <-loop.ticker.Chan():
				if !tick(generation) {
					return
				}
			}
		}
	}()

	return loop
}
