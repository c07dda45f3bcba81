// Package strategy defines the contract user strategies implement against
// the simulation engine, the per-step market snapshot they receive, and a
// Registry for looking strategies up by name.
package strategy

import (
	"errors"
	"sort"
	"time"

	"qka/internal/broker"
)

// ErrStop is the cooperative stop signal. A strategy returns it from OnBar
// to end the run gracefully: the engine stops before the next step and the
// equity curve and ledger stay valid up to that point.
var ErrStop = errors.New("strategy requested stop")

// Strategy is the interface all strategies must implement. OnBar is invoked
// exactly once per produced timestamp, in timestamp order, never with an
// empty snapshot, and never concurrently, so strategy state needs no
// synchronization. Any error other than ErrStop aborts the run.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// OnBar is called once per time step with the market snapshot and the
	// broker handle for issuing orders.
	OnBar(snap *Snapshot, b broker.Broker, ts time.Time) error
}

// Starter is the optional start-of-run hook, invoked before the first step.
type Starter interface {
	OnStart(b broker.Broker) error
}

// Finisher is the optional end-of-run hook, invoked after the last step.
type Finisher interface {
	OnEnd(b broker.Broker) error
}

// Registry holds a named collection of strategies for lookup and enumeration.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
	}
}

// Register adds a strategy to the registry, keyed by its Name().
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get retrieves a strategy by name. The second return value indicates
// whether the strategy was found.
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
