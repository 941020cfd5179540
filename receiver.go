package sarq

import "github.com/pkg/errors"

// Receiver is the receiving endpoint. It acknowledges every uncorrupted
// data packet individually, buffers packets that arrive ahead of the
// next expected sequence number, and releases buffered runs to the
// application in order.
//
// Like Sender, a Receiver expects its calls serialized by the caller.
type Receiver struct {
	params Params
	window *recvWindow
	base   int32
	ackSeq int32
	link   Link
	app    Application
	tracer *Tracer
	stats  ReceiverStats
}

func NewReceiver(params Params, link Link, app Application, tracer *Tracer) (*Receiver, error) {
	if err := params.Validate(); err != nil {
		return nil, errors.Wrap(err, "receiver")
	}
	if link == nil {
		return nil, errors.New("receiver: nil link")
	}
	if app == nil {
		return nil, errors.New("receiver: nil application")
	}
	return &Receiver{
		params: params,
		window: newRecvWindow(params.WindowSize),
		ackSeq: 1,
		link:   link,
		app:    app,
		tracer: tracer,
	}, nil
}

// OnPacket processes one inbound data packet. Corrupted packets are
// ignored without acknowledgment. Every other packet is acknowledged,
// including duplicates, since a duplicate means the original
// acknowledgment was lost. A packet matching the next expected sequence
// number is delivered together with the buffered run behind it; one
// ahead of it is buffered; one behind the window is an old duplicate
// and only re-acknowledged.
func (rcv *Receiver) OnPacket(p Packet) (StatusCode, error) {
	if IsCorrupted(p) {
		rcv.stats.CorruptedData++
		rcv.tracer.Logf(TraceDecisions, "receiver: corrupted packet ignored")
		return Corrupted, nil
	}
	rcv.stats.Received++
	offset := seqDistance(p.Seq, rcv.base, rcv.params.SeqSpace)
	if offset >= rcv.window.size() {
		rcv.stats.Duplicates++
		rcv.tracer.Logf(TraceDecisions, "receiver: old packet %d acknowledged again", p.Seq)
		return DuplicateData, rcv.sendAck(p.Seq)
	}
	if rcv.window.buffered(offset) {
		rcv.stats.Duplicates++
		rcv.tracer.Logf(TraceDecisions, "receiver: buffered packet %d acknowledged again", p.Seq)
		return DuplicateData, rcv.sendAck(p.Seq)
	}
	rcv.window.store(offset, p.Payload)
	ackErr := rcv.sendAck(p.Seq)
	if offset > 0 {
		rcv.stats.Buffered++
		rcv.tracer.Logf(TraceEvents, "receiver: packet %d buffered, expecting %d", p.Seq, rcv.base)
		return Buffered, ackErr
	}
	delivered := rcv.deliverRun()
	rcv.tracer.Logf(TraceEvents, "receiver: delivered %d payloads, expecting %d", delivered, rcv.base)
	return Delivered, ackErr
}

// Expected reports the sequence number the receiver will deliver next.
func (rcv *Receiver) Expected() int32 {
	return rcv.base
}

// Stats returns a snapshot of the receiver's counters.
func (rcv *Receiver) Stats() ReceiverStats {
	return rcv.stats
}

func (rcv *Receiver) deliverRun() int {
	var n int
	for {
		payload, ok := rcv.window.takeHead()
		if !ok {
			break
		}
		rcv.app.Deliver(payload)
		rcv.base = nextSeq(rcv.base, rcv.params.SeqSpace)
		rcv.stats.Delivered++
		n++
	}
	return n
}

// sendAck transmits an acknowledgment for the given data sequence
// number. The acknowledgment's own header seq alternates 0/1; it
// carries no window information.
func (rcv *Receiver) sendAck(seq int32) error {
	p := newAckPacket(rcv.ackSeq, seq)
	rcv.ackSeq = (rcv.ackSeq + 1) % 2
	rcv.stats.AcksSent++
	rcv.tracer.Logf(TraceVerbose, "receiver: sending ack %d", seq)
	if err := rcv.link.Transmit(p); err != nil {
		return errors.Wrap(err, "transmit ack")
	}
	return nil
}
