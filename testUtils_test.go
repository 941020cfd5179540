package sarq

import (
	"bytes"
	"container/list"

	"github.com/stretchr/testify/suite"
)

type sarqTestSuite struct {
	suite.Suite
}

func (suite *sarqTestSuite) newSender(params Params) (*Sender, *recordingLink, *scriptedTimer) {
	link := &recordingLink{}
	timer := &scriptedTimer{}
	snd, err := NewSender(params, link, timer, nil)
	suite.Require().NoError(err)
	return snd, link, timer
}

func (suite *sarqTestSuite) newReceiver(params Params) (*Receiver, *recordingLink, *recordingApp) {
	link := &recordingLink{}
	app := &recordingApp{}
	rcv, err := NewReceiver(params, link, app, nil)
	suite.Require().NoError(err)
	return rcv, link, app
}

func (suite *sarqTestSuite) submit(snd *Sender, payload string) {
	suite.submitExpectStatus(snd, payload, Success)
}

func (suite *sarqTestSuite) submitExpectStatus(snd *Sender, payload string, code StatusCode) {
	status, err := snd.Submit(PayloadOf(payload))
	suite.Require().NoError(err)
	suite.Equal(code, status)
}

func (suite *sarqTestSuite) ackExpectStatus(snd *Sender, p Packet, code StatusCode) {
	status, err := snd.OnAck(p)
	suite.Require().NoError(err)
	suite.Equal(code, status)
}

func (suite *sarqTestSuite) packetExpectStatus(rcv *Receiver, p Packet, code StatusCode) {
	status, err := rcv.OnPacket(p)
	suite.Require().NoError(err)
	suite.Equal(code, status)
}

// timeout fires the scripted timer and runs the sender's handler.
func (suite *sarqTestSuite) timeout(snd *Sender, timer *scriptedTimer) {
	timer.fire()
	status, err := snd.OnTimeout()
	suite.Require().NoError(err)
	suite.Equal(Success, status)
}

// recordingLink collects transmitted packets so tests can inspect them
// or relay them to the peer. Packets registered via DropOnce or
// DropAckOnce vanish once, the way a lossy channel would lose them.
type recordingLink struct {
	sent          []Packet
	toDropOnce    list.List
	toDropAckOnce list.List
}

func (link *recordingLink) DropOnce(seq int32) {
	link.toDropOnce.PushFront(seq)
}

func (link *recordingLink) DropAckOnce(ack int32) {
	link.toDropAckOnce.PushFront(ack)
}

func (link *recordingLink) Transmit(p Packet) error {
	if p.Ack == NotInUse {
		for elem := link.toDropOnce.Front(); elem != nil; elem = elem.Next() {
			if elem.Value.(int32) == p.Seq {
				link.toDropOnce.Remove(elem)
				return nil
			}
		}
	} else {
		for elem := link.toDropAckOnce.Front(); elem != nil; elem = elem.Next() {
			if elem.Value.(int32) == p.Ack {
				link.toDropAckOnce.Remove(elem)
				return nil
			}
		}
	}
	link.sent = append(link.sent, p)
	return nil
}

// takeAll drains the recorded packets in transmission order.
func (link *recordingLink) takeAll() []Packet {
	out := link.sent
	link.sent = nil
	return out
}

// scriptedTimer records timer traffic. It flags a Start while a
// countdown is already running since the sender contract forbids that.
type scriptedTimer struct {
	running      bool
	starts       int
	stops        int
	doubleArms   int
	lastDuration float64
}

func (timer *scriptedTimer) Start(duration float64) {
	if timer.running {
		timer.doubleArms++
	}
	timer.running = true
	timer.starts++
	timer.lastDuration = duration
}

func (timer *scriptedTimer) Stop() {
	timer.running = false
	timer.stops++
}

// fire marks the countdown as expired, the state the sender sees when
// its OnTimeout runs.
func (timer *scriptedTimer) fire() {
	timer.running = false
}

type recordingApp struct {
	delivered []Payload
}

func (app *recordingApp) Deliver(p Payload) {
	app.delivered = append(app.delivered, p)
}

// messages returns the delivered payloads as strings without padding.
func (app *recordingApp) messages() []string {
	out := make([]string, len(app.delivered))
	for i, p := range app.delivered {
		out[i] = string(bytes.TrimRight(p[:], "\x00"))
	}
	return out
}

// corrupted returns a copy of the packet with one payload byte changed
// and the checksum left stale.
func corrupted(p Packet) Packet {
	p.Payload[0] ^= 0xff
	return p
}
