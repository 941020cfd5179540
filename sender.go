package sarq

import "github.com/pkg/errors"

// Link transmits a packet toward the peer endpoint. Implementations
// model the channel below the protocol and are free to lose or corrupt
// the frame after Transmit returns; the protocol recovers either way.
type Link interface {
	Transmit(Packet) error
}

// Timer is the single countdown a sender owns for retransmission. The
// sender never calls Start while a countdown is running; a countdown
// ends by expiring or by Stop.
type Timer interface {
	Start(duration float64)
	Stop()
}

// Application receives payloads on the receiving endpoint, in sequence
// order and each exactly once.
type Application interface {
	Deliver(Payload)
}

// Sender is the transmitting endpoint. It assigns sequence numbers,
// keeps up to WindowSize packets in flight, acknowledges them
// individually and retransmits the oldest unacknowledged packet when
// the timer expires.
//
// A Sender is not safe for concurrent use; callers serialize Submit,
// OnAck and OnTimeout the way an event loop does.
type Sender struct {
	params Params
	window *sendWindow
	next   int32
	link   Link
	timer  Timer
	armed  bool
	tracer *Tracer
	stats  SenderStats
}

func NewSender(params Params, link Link, timer Timer, tracer *Tracer) (*Sender, error) {
	if err := params.Validate(); err != nil {
		return nil, errors.Wrap(err, "sender")
	}
	if link == nil {
		return nil, errors.New("sender: nil link")
	}
	if timer == nil {
		return nil, errors.New("sender: nil timer")
	}
	return &Sender{
		params: params,
		window: newSendWindow(params.WindowSize),
		link:   link,
		timer:  timer,
		tracer: tracer,
	}, nil
}

// Submit accepts one payload from the application. It returns
// WindowFull without side effects while WindowSize packets are
// unacknowledged; otherwise it stamps the next sequence number,
// transmits, and arms the timer if the window was empty.
func (snd *Sender) Submit(payload Payload) (StatusCode, error) {
	if snd.window.full() {
		snd.stats.WindowFull++
		snd.tracer.Logf(TraceEvents, "sender: window full, payload rejected")
		return WindowFull, nil
	}
	p := newDataPacket(snd.next, payload)
	snd.window.push(p)
	snd.next = nextSeq(snd.next, snd.params.SeqSpace)
	snd.stats.Submitted++
	if snd.window.outstanding() == 1 {
		snd.startTimer()
	}
	snd.tracer.Logf(TraceVerbose, "sender: sending packet %d", p.Seq)
	if err := snd.link.Transmit(p); err != nil {
		// the packet stays in the window, the timer will retry it
		return Success, errors.Wrap(err, "transmit data")
	}
	return Success, nil
}

// OnAck processes one inbound acknowledgment. Corrupted and duplicate
// acknowledgments are dropped without touching the window; a new
// acknowledgment of the oldest packet slides the window past every
// leading acknowledged slot and re-arms the timer for the next oldest.
func (snd *Sender) OnAck(p Packet) (StatusCode, error) {
	if IsCorrupted(p) {
		snd.stats.CorruptedAcks++
		snd.tracer.Logf(TraceDecisions, "sender: corrupted ack ignored")
		return Corrupted, nil
	}
	snd.stats.AcksReceived++
	if snd.window.outstanding() == 0 {
		snd.tracer.Logf(TraceDecisions, "sender: ack %d with empty window ignored", p.Ack)
		return DuplicateAck, nil
	}
	offset := seqDistance(p.Ack, snd.window.oldest().Seq, snd.params.SeqSpace)
	if int(offset) >= snd.window.outstanding() {
		snd.tracer.Logf(TraceDecisions, "sender: ack %d outside window ignored", p.Ack)
		return DuplicateAck, nil
	}
	if snd.window.statusAt(offset) == ackAcknowledged {
		snd.tracer.Logf(TraceDecisions, "sender: repeated ack %d ignored", p.Ack)
		return DuplicateAck, nil
	}
	snd.window.ack(offset)
	snd.stats.NewAcks++
	snd.tracer.Logf(TraceEvents, "sender: packet %d acknowledged", p.Ack)
	if offset == 0 {
		moved := snd.window.slide()
		snd.tracer.Logf(TraceEvents, "sender: window slides by %d", moved)
		snd.stopTimer()
		if snd.window.outstanding() > 0 {
			snd.startTimer()
		}
	}
	return Success, nil
}

// OnTimeout retransmits the oldest unacknowledged packet and re-arms
// the timer. A timeout that races an emptied window does nothing. Only
// the oldest packet is resent: the single timer stands in for one timer
// per packet and always guards the packet waiting longest.
func (snd *Sender) OnTimeout() (StatusCode, error) {
	snd.armed = false
	if snd.window.outstanding() == 0 {
		snd.tracer.Logf(TraceDecisions, "sender: timeout with empty window ignored")
		return Success, nil
	}
	p := snd.window.oldest()
	snd.stats.Resent++
	snd.startTimer()
	snd.tracer.Logf(TraceEvents, "sender: timeout, resending packet %d", p.Seq)
	if err := snd.link.Transmit(p); err != nil {
		return Success, errors.Wrap(err, "retransmit data")
	}
	return Success, nil
}

// Outstanding reports how many packets are in flight.
func (snd *Sender) Outstanding() int {
	return snd.window.outstanding()
}

// NextSeq reports the sequence number the next Submit will assign.
func (snd *Sender) NextSeq() int32 {
	return snd.next
}

// Stats returns a snapshot of the sender's counters.
func (snd *Sender) Stats() SenderStats {
	return snd.stats
}

func (snd *Sender) startTimer() {
	if snd.armed {
		snd.timer.Stop()
	}
	snd.timer.Start(snd.params.Timeout)
	snd.armed = true
}

func (snd *Sender) stopTimer() {
	if !snd.armed {
		return
	}
	snd.timer.Stop()
	snd.armed = false
}
