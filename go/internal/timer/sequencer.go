package timer

import (
	"time"
)

// Sequencer plays the pre-fight countdown on a fixed cadence.
// The first token is shown by the caller when the sequence starts; the
// sequencer emits the remaining tokens one step apart and then signals done
// one step after "FIGHT!".
type Sequencer struct {
	clock Clock
	step  time.Duration
}

// Sequence is a handle to one running countdown.
type Sequence struct {
	*stopper
	generation uint64
}

// NewSequencer creates a sequencer that advances every step.
func NewSequencer(clock Clock, step time.Duration) *Sequencer {
	if step <= 0 {
		step = DefaultCountdownStep
	}
	return &Sequencer{clock: clock, step: step}
}

// FirstToken is the token visible as soon as a countdown begins.
func (s *Sequencer) FirstToken() string {
	return CountdownTokens[0]
}

// Run schedules the remaining tokens tagged with generation. emit and done
// must check the generation themselves; Cancel is best-effort.
func (s *Sequencer) Run(generation uint64, emit func(gen uint64, token string), done func(gen uint64)) *Sequence {
	seq := &Sequence{
		stopper:    newStopper(s.clock.NewTicker(s.step)),
		generation: generation,
	}

	go func() {
		defer seq.ticker.Stop()
		next := 1
		for {
			select {
			case <-seq.stopCh:
				seq.drain()
				return
			case <-seq.ticker.Chan():
				// Cancel may race with a tick that is already buffered
				select {
				case <-seq.stopCh:
					return
				default:
				}
				if next < len(CountdownTokens) {
					emit(generation, CountdownTokens[next])
					next++
					continue
				}
				done(generation)
				return
			}
		}
	}()

	return seq
}

// Generation returns the generation this sequence was started under.
func (s *Sequence) Generation() uint64 {
	return s.generation
}
