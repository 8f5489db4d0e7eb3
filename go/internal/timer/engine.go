package timer

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Config holds the per-timer settings
type Config struct {
	Name          string        `yaml:"name"`
	TickInterval  time.Duration `yaml:"tick_interval"`
	CountdownStep time.Duration `yaml:"countdown_step"`
}

// Engine owns the state of one shared timer. All mutations are serialized by mu;
// readers get an immutable snapshot without locking.
//
// Asynchronous work (the countdown sequence and the tick loop) is tagged with the
// generation current when it was scheduled. Every operation that supersedes a run
// bumps the generation, so a callback that slips past cancellation is a no-op.
type Engine struct {
	name      string
	clock     Clock
	interval  time.Duration
	sequencer *Sequencer
	publisher Publisher

	mu       sync.Mutex
	st       state
	lastTick time.Time
	seq      *Sequence
	loop     *tickLoop

	snap atomic.Pointer[Snapshot]
}

// NewEngine creates an idle engine
func NewEngine(cfg Config, clock Clock, publisher Publisher) *Engine {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	interval := cfg.TickInterval
	if interval <= 0 {
		interval = DefaultTickInterval
	}

	e := &Engine{
		name:      cfg.Name,
		clock:     clock,
		interval:  interval,
		sequencer: NewSequencer(clock, cfg.CountdownStep),
		publisher: publisher,
	}
	e.snap.Store(e.st.snapshot(e.name))
	return e
}

// Name returns the timer name
func (e *Engine) Name() string {
	return e.name
}

// Snapshot returns the latest published state. It never blocks on the engine lock.
func (e *Engine) Snapshot() Snapshot {
	return *e.snap.Load()
}

// Start begins a new run of duration d, optionally behind the pre-fight countdown.
// Any run in flight is superseded.
func (e *Engine) Start(d time.Duration, withCountdown bool) (Snapshot, error) {
	if d <= 0 {
		return e.Snapshot(), fmt.Errorf("%w: start requires a positive duration, got %s", ErrInvalidDuration, d)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelLocked()
	e.st.generation++
	e.st.duration = d
	e.st.timeLeft = d
	e.st.countdownText = nil

	if withCountdown {
		e.beginCountdownLocked(true)
	} else {
		e.st.phase = PhaseRunning
		e.startLoopLocked()
	}

	log.Info().
		Str("timer", e.name).
		Uint64("generation", e.st.generation).
		Dur("duration", d).
		Bool("with_countdown", withCountdown).
		Msg("timer started")

	return e.publishLocked(EventTypeStarted), nil
}

// Pause freezes the remaining time. A pre-fight countdown in flight is abandoned
// and the full remaining time is kept.
func (e *Engine) Pause() (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.st.phase {
	case PhaseRunning:
		e.settleLocked()
		if e.st.timeLeft == 0 {
			e.finishLocked()
			return e.publishLocked(EventTypeFinished), fmt.Errorf("%w: timer ran out before pause", ErrNotRunning)
		}
	case PhasePreCountdown:
		e.st.countdownText = nil
	default:
		return e.Snapshot(), fmt.Errorf("%w: cannot pause a timer in phase %s", ErrNotRunning, e.st.phase)
	}

	e.cancelLocked()
	e.st.generation++
	e.st.phase = PhasePaused

	log.Info().
		Str("timer", e.name).
		Uint64("generation", e.st.generation).
		Dur("time_left", e.st.timeLeft).
		Msg("timer paused")

	return e.publishLocked(EventTypePaused), nil
}

// Resume continues a paused timer from its preserved remaining time.
func (e *Engine) Resume(withCountdown bool) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.st.phase != PhasePaused || e.st.timeLeft <= 0 {
		return e.Snapshot(), fmt.Errorf("%w: timer is %s with %s left", ErrNothingToResume, e.st.phase, e.st.timeLeft)
	}

	e.cancelLocked()
	e.st.generation++

	if withCountdown {
		e.st.duration = e.st.timeLeft
		e.beginCountdownLocked(false)
	} else {
		e.st.phase = PhaseRunning
		e.startLoopLocked()
	}

	log.Info().
		Str("timer", e.name).
		Uint64("generation", e.st.generation).
		Dur("time_left", e.st.timeLeft).
		Bool("with_countdown", withCountdown).
		Msg("timer resumed")

	return e.publishLocked(EventTypeResumed), nil
}

// Restart cancels everything and returns the timer to Idle.
func (e *Engine) Restart() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelLocked()
	e.st = state{generation: e.st.generation + 1}

	log.Info().
		Str("timer", e.name).
		Uint64("generation", e.st.generation).
		Msg("timer restarted")

	return e.publishLocked(EventTypeRestarted)
}

// RemoveTime takes d off the remaining time, finishing the timer if nothing is left.
// Idle and finished timers are left alone.
func (e *Engine) RemoveTime(d time.Duration) (Snapshot, error) {
	if d < 0 {
		return e.Snapshot(), fmt.Errorf("%w: cannot remove a negative amount, got %s", ErrInvalidDuration, d)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.st.phase {
	case PhaseIdle, PhaseFinished:
		log.Debug().
			Str("timer", e.name).
			Str("phase", e.st.phase.String()).
			Msg("remove time ignored")
		return e.Snapshot(), nil
	case PhaseRunning:
		e.settleLocked()
	}

	e.st.timeLeft -= d
	if e.st.timeLeft <= 0 {
		e.finishLocked()
		return e.publishLocked(EventTypeFinished), nil
	}

	log.Info().
		Str("timer", e.name).
		Dur("removed", d).
		Dur("time_left", e.st.timeLeft).
		Msg("time removed")

	return e.publishLocked(EventTypeTimeRemoved), nil
}

// Close stops any scheduled work without touching the state. Used on shutdown.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelLocked()
	e.st.generation++
}

// beginCountdownLocked shows the first token and schedules the rest. When
// consumeBeat is set the "FIGHT!" second comes off the clock.
func (e *Engine) beginCountdownLocked(consumeBeat bool) {
	first := e.sequencer.FirstToken()
	e.st.phase = PhasePreCountdown
	e.st.countdownText = &first
	e.seq = e.sequencer.Run(e.st.generation, e.emitToken, func(gen uint64) {
		e.completeCountdown(gen, consumeBeat)
	})
}

// startLoopLocked begins ticking from now under the current generation.
func (e *Engine) startLoopLocked() {
	e.lastTick = e.clock.Now()
	e.loop = startTickLoop(e.clock, e.interval, e.st.generation, e.tick)
}

// cancelLocked stops the sequence and the loop. The goroutines may still run one
// more callback; the generation check makes that harmless.
func (e *Engine) cancelLocked() {
	if e.seq != nil {
		e.seq.Cancel()
		e.seq = nil
	}
	if e.loop != nil {
		e.loop.Cancel()
		e.loop = nil
	}
}

// settleLocked applies the time elapsed since the last tick.
func (e *Engine) settleLocked() {
	now := e.clock.Now()
	elapsed := now.Sub(e.lastTick)
	e.lastTick = now
	if elapsed <= 0 {
		return
	}
	e.st.timeLeft -= elapsed
	if e.st.timeLeft < 0 {
		e.st.timeLeft = 0
	}
}

func (e *Engine) finishLocked() {
	e.cancelLocked()
	e.st.generation++
	e.st.phase = PhaseFinished
	e.st.timeLeft = 0
	e.st.countdownText = nil

	log.Info().
		Str("timer", e.name).
		Uint64("generation", e.st.generation).
		Msg("timer finished")
}

// currentLocked reports whether a callback scheduled under gen may still act.
func (e *Engine) currentLocked(gen uint64, want Phase, source string) bool {
	if gen != e.st.generation {
		log.Debug().
			Str("timer", e.name).
			Str("source", source).
			Uint64("scheduled_generation", gen).
			Uint64("generation", e.st.generation).
			Msg("discarding stale callback")
		return false
	}
	if e.st.phase != want {
		log.Error().
			Err(ErrInternalRace).
			Str("timer", e.name).
			Str("source", source).
			Uint64("generation", gen).
			Str("phase", e.st.phase.String()).
			Str("expected_phase", want.String()).
			Msg("callback generation is current but phase is not")
		return false
	}
	return true
}

func (e *Engine) emitToken(gen uint64, token string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.currentLocked(gen, PhasePreCountdown, "countdown") {
		return
	}
	e.st.countdownText = &token
	e.publishLocked(EventTypeCountdownStep)
}

func (e *Engine) completeCountdown(gen uint64, consumeBeat bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.currentLocked(gen, PhasePreCountdown, "countdown") {
		return
	}
	e.seq = nil
	e.st.countdownText = nil

	if consumeBeat {
		e.st.timeLeft -= FightBeat
	}
	if e.st.timeLeft <= 0 {
		e.finishLocked()
		e.publishLocked(EventTypeFinished)
		return
	}

	e.st.phase = PhaseRunning
	e.startLoopLocked()
	e.publishLocked(EventTypeRunning)
}

// tick advances the clock by the real elapsed time. Returning false stops the loop.
func (e *Engine) tick(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.currentLocked(gen, PhaseRunning, "tick") {
		return false
	}

	e.settleLocked()
	if e.st.timeLeft == 0 {
		e.finishLocked()
		e.publishLocked(EventTypeFinished)
		return false
	}

	e.publishLocked(EventTypeTick)
	return true
}

// publishLocked stores a fresh snapshot and hands the event to the publisher.
func (e *Engine) publishLocked(eventType EventType) Snapshot {
	snap := e.st.snapshot(e.name)
	e.snap.Store(snap)

	e.publisher.Publish(Event{
		ID:        uuid.New(),
		Timer:     e.name,
		Type:      eventType,
		Timestamp: e.clock.Now(),
		Snapshot:  *snap,
	})
	return *snap
}
