package timer

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Timer errors
var (
	ErrInvalidDuration = errors.New("invalid duration")
	ErrNotRunning      = errors.New("timer not running")
	ErrNothingToResume = errors.New("nothing to resume")
	ErrInternalRace    = errors.New("internal race detected")
	ErrUnknownTimer    = errors.New("unknown timer")
)

// Phase is the state-machine state of a timer
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhasePreCountdown
	PhaseRunning
	PhasePaused
	PhaseFinished
)

// String returns the wire name of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhasePreCountdown:
		return "PreCountdown"
	case PhaseRunning:
		return "Running"
	case PhasePaused:
		return "Paused"
	case PhaseFinished:
		return "Finished"
	default:
		return "Unknown"
	}
}

// MarshalText lets phases serialize by name in JSON.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (p *Phase) UnmarshalText(text []byte) error {
	for candidate := PhaseIdle; candidate <= PhaseFinished; candidate++ {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown timer phase %q", text)
}

// Pre-fight countdown tokens, in display order
var CountdownTokens = []string{"3", "2", "1", "FIGHT!"}

// Snapshot is the read-only projection of a timer that pollers see
type Snapshot struct {
	Timer           string  `json:"timer"`
	Phase           Phase   `json:"phase"`
	IsRunning       bool    `json:"is_running"`
	TimeLeftSeconds float64 `json:"time_left_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
	CountdownText   *string `json:"countdown_text"`
	Generation      uint64  `json:"generation"`
	Display         string  `json:"display"`
}

// state is the mutable TimerState owned by an Engine. Times are kept as durations;
// seconds only appear in snapshots.
type state struct {
	phase         Phase
	duration      time.Duration
	timeLeft      time.Duration
	countdownText *string
	generation    uint64
}

func (s *state) snapshot(name string) *Snapshot {
	snap := &Snapshot{
		Timer:           name,
		Phase:           s.phase,
		IsRunning:       s.phase == PhaseRunning,
		TimeLeftSeconds: s.timeLeft.Seconds(),
		DurationSeconds: s.duration.Seconds(),
		Generation:      s.generation,
		Display:         FormatClock(s.timeLeft),
	}
	if s.countdownText != nil {
		text := *s.countdownText
		snap.CountdownText = &text
	}
	return snap
}

// FormatClock renders a remaining duration as m:ss.t for overlays.
// Tenths are truncated so the display never shows more time than remains.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	tenths := int64(math.Floor(d.Seconds() * 10))
	minutes := tenths / 600
	seconds := (tenths % 600) / 10
	return fmt.Sprintf("%d:%02d.%d", minutes, seconds, tenths%10)
}

// maxSeconds is the largest whole-second count a time.Duration can hold.
const maxSeconds = float64(math.MaxInt64 / int64(time.Second))

// Seconds converts float seconds from the API layer into a duration.
// Values beyond the range of time.Duration saturate instead of wrapping.
func Seconds(s float64) (time.Duration, error) {
	switch {
	case math.IsNaN(s) || math.IsInf(s, 0):
		return 0, fmt.Errorf("%w: %v is not a finite number of seconds", ErrInvalidDuration, s)
	case s >= maxSeconds:
		return time.Duration(math.MaxInt64), nil
	case s <= -maxSeconds:
		return time.Duration(math.MinInt64), nil
	}
	return time.Duration(s * float64(time.Second)), nil
}
