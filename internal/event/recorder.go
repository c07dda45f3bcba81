package event

// Recorder is a bus subscriber that keeps a bounded history of delivered
// events. The bus itself never persists events; anything wanting history
// records it explicitly, capped by a retention window so it cannot grow
// without bound.
type Recorder struct {
	max    int
	events []Event
	subs   []*Subscription
}

// NewRecorder subscribes a Recorder to the given event types (all types when
// none are named), retaining at most max events, oldest evicted first.
func NewRecorder(b *Bus, max int, types ...Type) *Recorder {
	if max <= 0 {
		max = 1
	}
	r := &Recorder{max: max}
	if len(types) == 0 {
		for t := Type(0); t < typeCount; t++ {
			types = append(types, t)
		}
	}
	for _, t := range types {
		r.subs = append(r.subs, b.Subscribe(t, r.record))
	}
	return r
}

func (r *Recorder) record(e Event) {
	r.events = append(r.events, e)
	if len(r.events) > r.max {
		r.events = r.events[len(r.events)-r.max:]
	}
}

// Events returns the retained history in delivery order. The returned slice
// must not be mutated.
func (r *Recorder) Events() []Event {
	return r.events
}

// Close unsubscribes the recorder from the bus. The retained history stays
// readable.
func (r *Recorder) Close() {
	for _, s := range r.subs {
		s.Unsubscribe()
	}
}
