// Package emulator runs a sender and receiver pair against a
// discrete-event channel with configurable loss and corruption. The
// channel delays each packet between one and ten time units, never
// reorders packets travelling in the same direction, and may lose or
// mangle them on the way. Runs are deterministic for a given seed.
package emulator

import (
	"bytes"
	"container/heap"
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"

	sarq "github.com/nicosta1132/sarq-go"
)

// Endpoint identifies one side of the conversation. A submits and
// retransmits, B acknowledges and delivers.
type Endpoint int

const (
	EndpointA Endpoint = iota
	EndpointB
)

func (e Endpoint) String() string {
	if e == EndpointA {
		return "A"
	}
	return "B"
}

// Trace event kinds published to an Observer.
const (
	EventMessage = "message"
	EventRefused = "refused"
	EventSend    = "send"
	EventLost    = "lost"
	EventCorrupt = "corrupt"
	EventArrive  = "arrive"
	EventDeliver = "deliver"
	EventTimeout = "timeout"
)

// TraceEvent is one observable happening on the channel or at an
// endpoint, shaped for serialization.
type TraceEvent struct {
	Time     float64 `json:"time"`
	Kind     string  `json:"kind"`
	Endpoint string  `json:"endpoint"`
	Seq      int32   `json:"seq"`
	Ack      int32   `json:"ack"`
	Detail   string  `json:"detail,omitempty"`
}

// Observer receives trace events as the simulation executes. The
// emulator calls it from the goroutine running Run.
type Observer interface {
	Observe(TraceEvent)
}

// Config parameterizes one simulation run.
type Config struct {
	// Protocol holds the window, sequence space and timeout shared by
	// both endpoints.
	Protocol sarq.Params
	// MaxMessages is how many messages the application offers the
	// sender. Messages offered while the window is full are refused
	// and never retried.
	MaxMessages int
	// MeanInterarrival is the average time between application
	// messages. Actual gaps are uniform in [0, 2*MeanInterarrival).
	MeanInterarrival float64
	// LossProb and CorruptProb are per-transmission probabilities in
	// [0, 1). Loss is drawn before corruption.
	LossProb    float64
	CorruptProb float64
	// Seed fixes the random sequence for the run.
	Seed uint64
	// MaxSimTime aborts a run whose clock passes it with events still
	// pending, which is how a channel that loses everything surfaces.
	// Zero disables the cap.
	MaxSimTime float64
	// RealTime paces the run against the wall clock: each simulated
	// time unit takes RealTime seconds. Zero runs as fast as possible.
	RealTime float64
}

func (cfg Config) validate() error {
	if err := cfg.Protocol.Validate(); err != nil {
		return err
	}
	if cfg.MaxMessages < 1 {
		return errors.New("emulator: need at least one message")
	}
	if cfg.MeanInterarrival <= 0 {
		return errors.New("emulator: mean interarrival must be positive")
	}
	if cfg.LossProb < 0 || cfg.LossProb > 1 {
		return errors.Errorf("emulator: loss probability %v out of range", cfg.LossProb)
	}
	if cfg.CorruptProb < 0 || cfg.CorruptProb > 1 {
		return errors.Errorf("emulator: corruption probability %v out of range", cfg.CorruptProb)
	}
	if cfg.RealTime < 0 {
		return errors.Errorf("emulator: realtime factor %v must not be negative", cfg.RealTime)
	}
	return nil
}

// Result summarizes a finished run. TimerWarnings counts Start calls
// that found a timer already armed; the endpoints keep it at zero.
type Result struct {
	Generated     int
	Accepted      int
	Refused       int
	LostData      int
	LostAcks      int
	CorruptedData int
	CorruptedAcks int
	TimerWarnings int
	SimTime       float64
	Delivered     []sarq.Payload
	Sender        sarq.SenderStats
	Receiver      sarq.ReceiverStats
}

// Messages returns the delivered payloads as trimmed strings in
// delivery order.
func (r Result) Messages() []string {
	out := make([]string, len(r.Delivered))
	for i, p := range r.Delivered {
		out[i] = string(bytes.TrimRight(p[:], "\x00"))
	}
	return out
}

// Accumulate folds another run's counters into r. Delivered payloads
// stay per run and are not merged.
func (r *Result) Accumulate(other Result) {
	r.Generated += other.Generated
	r.Accepted += other.Accepted
	r.Refused += other.Refused
	r.LostData += other.LostData
	r.LostAcks += other.LostAcks
	r.CorruptedData += other.CorruptedData
	r.CorruptedAcks += other.CorruptedAcks
	r.TimerWarnings += other.TimerWarnings
	r.SimTime += other.SimTime

	r.Sender.Submitted += other.Sender.Submitted
	r.Sender.WindowFull += other.Sender.WindowFull
	r.Sender.AcksReceived += other.Sender.AcksReceived
	r.Sender.NewAcks += other.Sender.NewAcks
	r.Sender.Resent += other.Sender.Resent
	r.Sender.CorruptedAcks += other.Sender.CorruptedAcks

	r.Receiver.Received += other.Receiver.Received
	r.Receiver.Delivered += other.Receiver.Delivered
	r.Receiver.Buffered += other.Receiver.Buffered
	r.Receiver.Duplicates += other.Receiver.Duplicates
	r.Receiver.CorruptedData += other.Receiver.CorruptedData
	r.Receiver.AcksSent += other.Receiver.AcksSent
}

// Emulator owns the calendar, the clock and both endpoints of one
// simulated conversation. It is single threaded; Run drives everything.
type Emulator struct {
	cfg      Config
	rng      *rand.Rand
	queue    eventQueue
	order    uint64
	clock    float64
	sender   *sarq.Sender
	receiver *sarq.Receiver
	log      *deliveryLog
	pending  [2]*Event // armed timer event per endpoint
	arrival  [2]float64
	tracer   *sarq.Tracer
	observer Observer

	generated     int
	accepted      int
	refused       int
	lostData      int
	lostAcks      int
	corruptedData int
	corruptedAcks int
	timerWarnings int
}

// New builds an emulator with freshly initialized endpoints. The tracer
// is shared by the channel and both endpoints; tracer and observer may
// be nil.
func New(cfg Config, tracer *sarq.Tracer, observer Observer) (*Emulator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	em := &Emulator{
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		tracer:   tracer,
		observer: observer,
	}
	em.log = &deliveryLog{em: em}
	sender, err := sarq.NewSender(cfg.Protocol, &channelLink{em: em, from: EndpointA}, &eventTimer{em: em, target: EndpointA}, tracer)
	if err != nil {
		return nil, err
	}
	receiver, err := sarq.NewReceiver(cfg.Protocol, &channelLink{em: em, from: EndpointB}, em.log, tracer)
	if err != nil {
		return nil, err
	}
	em.sender = sender
	em.receiver = receiver
	return em, nil
}

// Run executes the calendar until it drains or the context is
// cancelled. It returns the result so far in either case.
func (em *Emulator) Run(ctx context.Context) (Result, error) {
	em.scheduleNextMessage()
	for em.queue.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return em.result(), err
		}
		ev := heap.Pop(&em.queue).(*Event)
		if em.cfg.MaxSimTime > 0 && ev.Time > em.cfg.MaxSimTime {
			em.clock = ev.Time
			return em.result(), errors.Errorf("emulator: clock passed %v with %d events pending", em.cfg.MaxSimTime, em.queue.Len()+1)
		}
		if em.cfg.RealTime > 0 && ev.Time > em.clock {
			wait := time.Duration((ev.Time - em.clock) * em.cfg.RealTime * float64(time.Second))
			select {
			case <-ctx.Done():
				return em.result(), ctx.Err()
			case <-time.After(wait):
			}
		}
		em.clock = ev.Time
		var err error
		switch ev.Kind {
		case messageArrival:
			err = em.onMessage()
		case packetArrival:
			err = em.onPacket(ev)
		case timerInterrupt:
			err = em.onTimer(ev)
		}
		if err != nil {
			return em.result(), err
		}
	}
	return em.result(), nil
}

// Clock reports the current simulation time.
func (em *Emulator) Clock() float64 {
	return em.clock
}

func (em *Emulator) result() Result {
	return Result{
		Generated:     em.generated,
		Accepted:      em.accepted,
		Refused:       em.refused,
		LostData:      em.lostData,
		LostAcks:      em.lostAcks,
		CorruptedData: em.corruptedData,
		CorruptedAcks: em.corruptedAcks,
		TimerWarnings: em.timerWarnings,
		SimTime:       em.clock,
		Delivered:     append([]sarq.Payload(nil), em.log.delivered...),
		Sender:        em.sender.Stats(),
		Receiver:      em.receiver.Stats(),
	}
}

func (em *Emulator) onMessage() error {
	letter := byte('a' + em.generated%26)
	em.generated++
	em.scheduleNextMessage()

	var payload sarq.Payload
	for i := range payload {
		payload[i] = letter
	}
	status, err := em.sender.Submit(payload)
	if err != nil {
		return errors.Wrap(err, "emulator: submit")
	}
	switch status {
	case sarq.Success:
		em.accepted++
		em.observe(TraceEvent{Time: em.clock, Kind: EventMessage, Endpoint: "A", Seq: sarq.NotInUse, Ack: sarq.NotInUse, Detail: string(letter)})
	case sarq.WindowFull:
		em.refused++
		em.tracer.Logf(sarq.TraceEvents, "channel: message %c refused, window full", letter)
		em.observe(TraceEvent{Time: em.clock, Kind: EventRefused, Endpoint: "A", Seq: sarq.NotInUse, Ack: sarq.NotInUse, Detail: string(letter)})
	}
	return nil
}

func (em *Emulator) onPacket(ev *Event) error {
	em.observe(TraceEvent{Time: em.clock, Kind: EventArrive, Endpoint: ev.Target.String(), Seq: ev.Packet.Seq, Ack: ev.Packet.Ack})
	var err error
	if ev.Target == EndpointA {
		_, err = em.sender.OnAck(ev.Packet)
	} else {
		_, err = em.receiver.OnPacket(ev.Packet)
	}
	return errors.Wrap(err, "emulator: packet arrival")
}

func (em *Emulator) onTimer(ev *Event) error {
	em.pending[ev.Target] = nil
	em.observe(TraceEvent{Time: em.clock, Kind: EventTimeout, Endpoint: ev.Target.String(), Seq: sarq.NotInUse, Ack: sarq.NotInUse})
	if ev.Target != EndpointA {
		return nil
	}
	_, err := em.sender.OnTimeout()
	return errors.Wrap(err, "emulator: timer interrupt")
}

func (em *Emulator) scheduleNextMessage() {
	if em.generated >= em.cfg.MaxMessages {
		return
	}
	gap := 2 * em.cfg.MeanInterarrival * em.rng.Float64()
	em.schedule(&Event{Time: em.clock + gap, Kind: messageArrival, Target: EndpointA})
}

// transmit carries one packet across the channel, applying loss, delay
// and corruption in that order.
func (em *Emulator) transmit(from Endpoint, p sarq.Packet) {
	to := EndpointB
	if from == EndpointB {
		to = EndpointA
	}
	em.observe(TraceEvent{Time: em.clock, Kind: EventSend, Endpoint: from.String(), Seq: p.Seq, Ack: p.Ack})

	if em.rng.Float64() < em.cfg.LossProb {
		em.countLoss(from)
		em.tracer.Logf(sarq.TraceEvents, "channel: packet from %v lost", from)
		em.observe(TraceEvent{Time: em.clock, Kind: EventLost, Endpoint: from.String(), Seq: p.Seq, Ack: p.Ack})
		return
	}

	// packets in one direction never overtake each other
	depart := em.clock
	if em.arrival[to] > depart {
		depart = em.arrival[to]
	}
	at := depart + 1 + 9*em.rng.Float64()
	em.arrival[to] = at

	if em.rng.Float64() < em.cfg.CorruptProb {
		p = em.mangle(p)
		em.countCorruption(from)
		em.tracer.Logf(sarq.TraceEvents, "channel: packet from %v corrupted", from)
		em.observe(TraceEvent{Time: em.clock, Kind: EventCorrupt, Endpoint: from.String(), Seq: p.Seq, Ack: p.Ack})
	}
	em.schedule(&Event{Time: at, Kind: packetArrival, Target: to, Packet: p})
}

// mangle flips one byte of the encoded frame without refreshing the
// checksum. Any byte can be hit: payload, a header field, or the
// stored checksum itself.
func (em *Emulator) mangle(p sarq.Packet) sarq.Packet {
	frame, err := p.MarshalBinary()
	if err != nil {
		return p
	}
	frame[em.rng.Intn(len(frame))] ^= 0x5a
	var out sarq.Packet
	if err := out.UnmarshalBinary(frame); err != nil {
		return p
	}
	return out
}

func (em *Emulator) countLoss(from Endpoint) {
	if from == EndpointA {
		em.lostData++
	} else {
		em.lostAcks++
	}
}

func (em *Emulator) countCorruption(from Endpoint) {
	if from == EndpointA {
		em.corruptedData++
	} else {
		em.corruptedAcks++
	}
}

func (em *Emulator) startTimer(target Endpoint, duration float64) {
	if em.pending[target] != nil {
		em.timerWarnings++
		em.tracer.Logf(sarq.TraceEvents, "channel: timer for %v already running, start ignored", target)
		return
	}
	ev := &Event{Time: em.clock + duration, Kind: timerInterrupt, Target: target}
	em.schedule(ev)
	em.pending[target] = ev
}

func (em *Emulator) stopTimer(target Endpoint) {
	ev := em.pending[target]
	if ev == nil {
		em.tracer.Logf(sarq.TraceEvents, "channel: no timer for %v to stop", target)
		return
	}
	heap.Remove(&em.queue, ev.Index)
	em.pending[target] = nil
}

func (em *Emulator) schedule(ev *Event) {
	ev.order = em.order
	em.order++
	heap.Push(&em.queue, ev)
}

func (em *Emulator) observe(ev TraceEvent) {
	if em.observer == nil {
		return
	}
	em.observer.Observe(ev)
}

// channelLink feeds an endpoint's outbound packets into the channel.
type channelLink struct {
	em   *Emulator
	from Endpoint
}

func (link *channelLink) Transmit(p sarq.Packet) error {
	link.em.transmit(link.from, p)
	return nil
}

// eventTimer maps the sender's timer onto calendar events.
type eventTimer struct {
	em     *Emulator
	target Endpoint
}

func (timer *eventTimer) Start(duration float64) {
	timer.em.startTimer(timer.target, duration)
}

func (timer *eventTimer) Stop() {
	timer.em.stopTimer(timer.target)
}

// deliveryLog collects what the receiver hands up, in order.
type deliveryLog struct {
	em        *Emulator
	delivered []sarq.Payload
}

func (log *deliveryLog) Deliver(p sarq.Payload) {
	log.delivered = append(log.delivered, p)
	log.em.observe(TraceEvent{
		Time:     log.em.clock,
		Kind:     EventDeliver,
		Endpoint: "B",
		Seq:      sarq.NotInUse,
		Ack:      sarq.NotInUse,
		Detail:   string(bytes.TrimRight(p[:], "\x00")),
	})
}
