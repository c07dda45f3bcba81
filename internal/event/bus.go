// Package event provides the publish/subscribe coordinator that lets
// independent components react to simulation lifecycle events without direct
// coupling. The bus is single-threaded and cooperative: synchronous
// subscribers run inline within Publish, deferred subscribers are queued and
// drained by an explicit Pump step. It is exclusively owned by one engine
// instance, so no locking is used.
package event

import (
	"fmt"
	"log/slog"
	"time"

	"qka/internal/domain"
)

// Type enumerates the closed set of event kinds carried by the bus.
type Type int

const (
	TypeSimulationStart Type = iota
	TypeMarketData
	TypeSignal
	TypeOrderFilled
	TypeOrderRejected
	TypeHandlerError
	TypeSimulationEnd

	typeCount
)

// String returns the wire-friendly name of the event type.
func (t Type) String() string {
	switch t {
	case TypeSimulationStart:
		return "simulation-start"
	case TypeMarketData:
		return "market-data-ready"
	case TypeSignal:
		return "signal-generated"
	case TypeOrderFilled:
		return "order-filled"
	case TypeOrderRejected:
		return "order-rejected"
	case TypeHandlerError:
		return "handler-error"
	case TypeSimulationEnd:
		return "simulation-end"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Event is one published occurrence. Timestamp carries simulation time, not
// wall-clock time, so replays are reproducible. Seq is assigned by the bus
// in publish order.
type Event struct {
	Type      Type
	Payload   any
	Timestamp time.Time
	Seq       uint64
}

// Typed payloads, one per event type.

// RunPayload accompanies simulation-start and simulation-end.
type RunPayload struct {
	RunID    string
	Strategy string
}

// MarketDataPayload carries the closing prices of every symbol with a bar at
// the current step.
type MarketDataPayload struct {
	Timestamp time.Time
	Closes    map[string]float64
}

// SignalPayload is emitted by strategies that announce their decisions.
type SignalPayload struct {
	Strategy string
	Symbol   string
	Side     domain.Side
	Note     string
}

// FillPayload accompanies order-filled.
type FillPayload struct {
	Trade domain.Trade
}

// RejectPayload accompanies order-rejected.
type RejectPayload struct {
	Symbol string
	Side   domain.Side
	Reason domain.RejectReason
	Detail string
}

// HandlerErrorPayload reports a subscriber that panicked while handling the
// embedded event.
type HandlerErrorPayload struct {
	Failed Event
	Err    error
}

// Handler processes one delivered event.
type Handler func(Event)

// Stats is a read-only snapshot of the bus counters. It never influences
// control flow.
type Stats struct {
	Published     uint64
	HandlerErrors uint64
	QueueDepth    int
}

type subState int

const (
	subRegistered subState = iota
	subActive
	subUnsubscribed
)

// Subscription is the disposable handle returned by Subscribe. A removed
// subscription cannot be reactivated; create a fresh one instead.
type Subscription struct {
	eventType Type
	handler   Handler
	deferred  bool
	state     subState
}

// Unsubscribe removes the subscription. It takes effect at the next publish
// cycle: a delivery already dispatched to the handler completes, and queued
// deferred events for this subscription are dropped at pump time. Calling it
// again is a no-op.
func (s *Subscription) Unsubscribe() {
	s.state = subUnsubscribed
}

type queued struct {
	sub *Subscription
	e   Event
}

// Bus routes events from publishers to subscribers.
type Bus struct {
	subs      [typeCount][]*Subscription
	queue     []queued
	seq       uint64
	published uint64
	failures  uint64
	log       *slog.Logger
}

// New creates an empty Bus.
func New(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{log: log.With("component", "bus")}
}

// Subscribe registers a synchronous handler for the given event type.
// Synchronous handlers run inline, in subscription order, within the
// publisher's Publish call.
func (b *Bus) Subscribe(t Type, h Handler) *Subscription {
	return b.add(t, h, false)
}

// SubscribeDeferred registers a handler whose deliveries are queued FIFO and
// run only when Pump is called.
func (b *Bus) SubscribeDeferred(t Type, h Handler) *Subscription {
	return b.add(t, h, true)
}

func (b *Bus) add(t Type, h Handler, deferred bool) *Subscription {
	s := &Subscription{eventType: t, handler: h, deferred: deferred, state: subRegistered}
	b.subs[t] = append(b.subs[t], s)
	return s
}

// Publish delivers an event of the given type stamped with the given
// simulation time. Unsubscribed handlers are pruned first, then each
// remaining synchronous handler runs isolated: a panic is counted, logged,
// and reported through a handler-error event instead of propagating.
func (b *Bus) Publish(t Type, ts time.Time, payload any) {
	b.seq++
	b.published++
	e := Event{Type: t, Payload: payload, Timestamp: ts, Seq: b.seq}

	b.prune(t)
	subs := b.subs[t]
	for _, s := range subs {
		if s.state == subUnsubscribed {
			continue
		}
		s.state = subActive
		if s.deferred {
			b.queue = append(b.queue, queued{sub: s, e: e})
			continue
		}
		b.dispatch(s, e)
	}
}

// Pump drains the deferred queue in FIFO order and returns the number of
// deliveries made. Events enqueued by handlers during the pump are drained
// in the same call.
func (b *Bus) Pump() int {
	n := 0
	for len(b.queue) > 0 {
		q := b.queue[0]
		b.queue = b.queue[1:]
		if q.sub.state == subUnsubscribed {
			continue
		}
		b.dispatch(q.sub, q.e)
		n++
	}
	return n
}

// Stats returns the current counter snapshot.
func (b *Bus) Stats() Stats {
	return Stats{
		Published:     b.published,
		HandlerErrors: b.failures,
		QueueDepth:    len(b.queue),
	}
}

// dispatch invokes one handler, isolating panics so a failing subscriber
// never prevents delivery to the rest.
func (b *Bus) dispatch(s *Subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.failures++
			b.log.Error("event handler panicked",
				"event", e.Type.String(), "seq", e.Seq, "panic", r)
			// Handler-error events are delivered synchronously, but never
			// recursively for failures of handler-error handlers themselves.
			if e.Type != TypeHandlerError {
				b.Publish(TypeHandlerError, e.Timestamp, HandlerErrorPayload{
					Failed: e,
					Err:    fmt.Errorf("handler panic: %v", r),
				})
			}
		}
	}()
	s.handler(e)
}

// prune rebuilds the subscriber list for a type without removed entries.
func (b *Bus) prune(t Type) {
	subs := b.subs[t]
	kept := subs[:0]
	for _, s := range subs {
		if s.state != subUnsubscribed {
			kept = append(kept, s)
		}
	}
	b.subs[t] = kept
}
