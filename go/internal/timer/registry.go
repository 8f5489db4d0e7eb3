package timer

import (
	"fmt"
	"sort"
)

// Timer names used by the event production
const (
	MatchTimer = "match"
	EventTimer = "event"
)

// DefaultConfigs returns the match and event timers with default cadences
func DefaultConfigs() []Config {
	return []Config{
		{Name: MatchTimer, TickInterval: DefaultTickInterval, CountdownStep: DefaultCountdownStep},
		{Name: EventTimer, TickInterval: DefaultTickInterval, CountdownStep: DefaultCountdownStep},
	}
}

// Registry holds the process-wide engines by name. It is built once at startup
// and read-only afterwards.
type Registry struct {
	engines map[string]*Engine
	names   []string
}

// NewRegistry creates one engine per config, all sharing the clock and publisher.
func NewRegistry(configs []Config, clock Clock, publisher Publisher) (*Registry, error) {
	r := &Registry{engines: make(map[string]*Engine, len(configs))}
	for _, cfg := range configs {
		if cfg.Name == "" {
			return nil, fmt.Errorf("timer config requires a name")
		}
		if _, exists := r.engines[cfg.Name]; exists {
			return nil, fmt.Errorf("duplicate timer %q", cfg.Name)
		}
		if cfg.CountdownStep != 0 && cfg.CountdownStep != FightBeat {
			return nil, fmt.Errorf("timer %q: countdown_step must be %s, got %s", cfg.Name, FightBeat, cfg.CountdownStep)
		}
		r.engines[cfg.Name] = NewEngine(cfg, clock, publisher)
		r.names = append(r.names, cfg.Name)
	}
	sort.Strings(r.names)
	return r, nil
}

// Get returns the engine for name
func (r *Registry) Get(name string) (*Engine, error) {
	e, ok := r.engines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimer, name)
	}
	return e, nil
}

// Names returns the timer names in sorted order
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Snapshots returns the current snapshot of every timer, ordered by name
func (r *Registry) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.engines[name].Snapshot())
	}
	return out
}

// Close stops all scheduled work
func (r *Registry) Close() {
	for _, e := range r.engines {
		e.Close()
	}
}
