package timer

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the time source used by engines.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
}

// Default cadences
const (
	DefaultTickInterval  = 100 * time.Millisecond
	DefaultCountdownStep = time.Second
)

// FightBeat is the match time consumed by the "FIGHT!" beat of a countdown.
const FightBeat = time.Second

// stopper is a cancelable goroutine driven by a ticker. Cancel never blocks:
// the goroutine may still be mid-callback, which is why every callback is
// generation-checked by the engine.
type stopper struct {
	ticker clockwork.Ticker
	stopCh chan struct{}
	once   sync.Once
}

func newStopper(t clockwork.Ticker) *stopper {
	return &stopper{ticker: t, stopCh: make(chan struct{})}
}

// Cancel stops the ticker and signals the goroutine to exit. Safe to call more than once.
func (s *stopper) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.ticker.Stop()
		close(s.stopCh)
	})
}

// drain discards a tick that fired before Stop took effect.
func (s *stopper) drain() {
	select {
	case <-s.ticker.Chan():
	default:
	}
}
