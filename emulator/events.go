package emulator

import (
	sarq "github.com/nicosta1132/sarq-go"
)

type eventKind int

const (
	// timerInterrupt fires the sender's retransmission timer.
	timerInterrupt eventKind = iota
	// messageArrival hands the sender the next application message.
	messageArrival
	// packetArrival surfaces a packet at an endpoint after its channel
	// transit.
	packetArrival
)

// Event is one entry in the simulation calendar.
type Event struct {
	Time   float64
	Kind   eventKind
	Target Endpoint
	Packet sarq.Packet
	Index  int // the index of the event in the heap
	order  uint64
}

// eventQueue implements heap.Interface ordered by event time. Ties
// resolve by insertion order so a seeded run replays identically.
type eventQueue []*Event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].Time != q[j].Time {
		return q[i].Time < q[j].Time
	}
	return q[i].order < q[j].order
}

func (q eventQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].Index = i
	q[j].Index = j
}

func (q *eventQueue) Push(x any) {
	n := len(*q)
	item := x.(*Event)
	item.Index = n
	*q = append(*q, item)
}

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // don't stop the GC from reclaiming the item eventually
	item.Index = -1 // for safety
	*q = old[0 : n-1]
	return item
}
