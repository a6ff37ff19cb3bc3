package conn

import "container/heap"

// EventKind identifies the delivery/compatibility class of an event.
// A node declares the kinds it accepts per receptor; the check runs once at
// connection-build time and its result is cached as the receptor tag.
type EventKind int

const (
	SpikeEventKind EventKind = iota
	CurrentEventKind
	RateEventKind
)

func (k EventKind) String() string {
	switch k {
	case SpikeEventKind:
		return "spike"
	case CurrentEventKind:
		return "current"
	case RateEventKind:
		return "rate"
	}
	return "unknown"
}

// Event is a timed signal traveling along a connection. Clone produces the
// per-connection copy that the send path stamps with the connection's weight
// and delay; the original is never mutated.
type Event interface {
	Kind() EventKind
	Stamp() Tick
	Source() GlobalID
	Weight() float64
	DelaySteps() Delay
	Clone() Event
	SetWeight(w float64)
	SetDelay(d Delay)
}

type eventBase struct {
	source GlobalID
	stamp  Tick
	weight float64
	delay  Delay
}

func (e *eventBase) Stamp() Tick         { return e.stamp }
func (e *eventBase) Source() GlobalID    { return e.source }
func (e *eventBase) Weight() float64     { return e.weight }
func (e *eventBase) DelaySteps() Delay   { return e.delay }
func (e *eventBase) SetWeight(w float64) { e.weight = w }
func (e *eventBase) SetDelay(d Delay)    { e.delay = d }

// SpikeEvent is the scalar hot-path event.
type SpikeEvent struct {
	eventBase
	Multiplicity int
}

// NewSpikeEvent creates a spike generated by source at stamp.
func NewSpikeEvent(source GlobalID, stamp Tick) *SpikeEvent {
	return &SpikeEvent{eventBase: eventBase{source: source, stamp: stamp}, Multiplicity: 1}
}

func (e *SpikeEvent) Kind() EventKind { return SpikeEventKind }

func (e *SpikeEvent) Clone() Event {
	cp := *e
	return &cp
}

// CurrentEvent carries a scalar current injection.
type CurrentEvent struct {
	eventBase
	Current float64
}

func NewCurrentEvent(source GlobalID, stamp Tick, current float64) *CurrentEvent {
	return &CurrentEvent{eventBase: eventBase{source: source, stamp: stamp}, Current: current}
}

func (e *CurrentEvent) Kind() EventKind { return CurrentEventKind }

func (e *CurrentEvent) Clone() Event {
	cp := *e
	return &cp
}

// RateEvent is the secondary, variable-size event: a vector-valued signal
// delivered in batches rather than per spike. Clones share the payload;
// receivers must treat it as read-only.
type RateEvent struct {
	eventBase
	Payload []float64
}

func NewRateEvent(source GlobalID, stamp Tick, payload []float64) *RateEvent {
	return &RateEvent{eventBase: eventBase{source: source, stamp: stamp}, Payload: payload}
}

func (e *RateEvent) Kind() EventKind { return RateEventKind }

func (e *RateEvent) Clone() Event {
	cp := *e
	return &cp
}

// delivery is one queued handoff to a thread-local node.
type delivery struct {
	due  Tick
	node Node
	ev   Event
}

// deliveryQueue implements heap.Interface and orders deliveries by due time.
// See canonical Golang example here: https://pkg.go.dev/container/heap#example-package-IntHeap
type deliveryQueue []delivery

func (dq deliveryQueue) Len() int           { return len(dq) }
func (dq deliveryQueue) Less(i, j int) bool { return dq[i].due < dq[j].due }
func (dq deliveryQueue) Swap(i, j int)      { dq[i], dq[j] = dq[j], dq[i] }

func (dq *deliveryQueue) Push(x any) {
	*dq = append(*dq, x.(delivery))
}

func (dq *deliveryQueue) Pop() any {
	old := *dq
	n := len(old)
	item := old[n-1]
	*dq = old[0 : n-1]
	return item
}

func (dq *deliveryQueue) push(d delivery) { heap.Push(dq, d) }

// drainUntil pops and hands off every delivery due at or before now.
func (dq *deliveryQueue) drainUntil(now Tick) int {
	n := 0
	for dq.Len() > 0 && (*dq)[0].due <= now {
		d := heap.Pop(dq).(delivery)
		d.node.Deliver(d.ev)
		n++
	}
	return n
}
