package sarq

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ProtocolTestSuite struct {
	sarqTestSuite
	snd     *Sender
	rcv     *Receiver
	sndLink *recordingLink
	rcvLink *recordingLink
	timer   *scriptedTimer
	app     *recordingApp
}

func (suite *ProtocolTestSuite) SetupTest() {
	suite.snd, suite.sndLink, suite.timer = suite.newSender(DefaultParams())
	suite.rcv, suite.rcvLink, suite.app = suite.newReceiver(DefaultParams())
}

func (suite *ProtocolTestSuite) deliverData() {
	for _, p := range suite.sndLink.takeAll() {
		_, err := suite.rcv.OnPacket(p)
		suite.Require().NoError(err)
	}
}

func (suite *ProtocolTestSuite) deliverAcks() {
	for _, p := range suite.rcvLink.takeAll() {
		_, err := suite.snd.OnAck(p)
		suite.Require().NoError(err)
	}
}

// exchange relays packets in both directions until the links run dry.
func (suite *ProtocolTestSuite) exchange() {
	for len(suite.sndLink.sent) > 0 || len(suite.rcvLink.sent) > 0 {
		suite.deliverData()
		suite.deliverAcks()
	}
}

func (suite *ProtocolTestSuite) TestLossFreeConversation() {
	suite.submit(suite.snd, "alpha")
	suite.submit(suite.snd, "beta")
	suite.submit(suite.snd, "gamma")
	suite.submit(suite.snd, "delta")
	suite.exchange()

	suite.Equal([]string{"alpha", "beta", "gamma", "delta"}, suite.app.messages())
	suite.Equal(0, suite.snd.Outstanding())
	suite.False(suite.timer.running)
	suite.Equal(0, suite.snd.Stats().Resent)
}

func (suite *ProtocolTestSuite) TestLostDataPacketRecoveredByTimeout() {
	suite.sndLink.DropOnce(1)
	for _, payload := range []string{"a", "b", "c", "d", "e"} {
		suite.submit(suite.snd, payload)
	}
	suite.exchange()

	// everything past the gap is buffered, nothing more delivered
	suite.Equal([]string{"a"}, suite.app.messages())
	suite.Equal(4, suite.snd.Outstanding())

	suite.timeout(suite.snd, suite.timer)
	suite.exchange()

	suite.Equal([]string{"a", "b", "c", "d", "e"}, suite.app.messages())
	suite.Equal(0, suite.snd.Outstanding())
	suite.False(suite.timer.running)
	suite.Equal(1, suite.snd.Stats().Resent)
	suite.Equal(3, suite.rcv.Stats().Buffered)
}

func (suite *ProtocolTestSuite) TestLostAckRecoveredByTimeout() {
	suite.rcvLink.DropAckOnce(0)
	suite.submit(suite.snd, "solo")
	suite.exchange()

	suite.Equal([]string{"solo"}, suite.app.messages())
	suite.Equal(1, suite.snd.Outstanding())

	suite.timeout(suite.snd, suite.timer)
	suite.exchange()

	// the retransmission is re-acknowledged, not delivered again
	suite.Equal([]string{"solo"}, suite.app.messages())
	suite.Equal(0, suite.snd.Outstanding())
	suite.Equal(1, suite.rcv.Stats().Duplicates)
}

func (suite *ProtocolTestSuite) TestCorruptedDataRecoveredByTimeout() {
	suite.submit(suite.snd, "mangle")
	for _, p := range suite.sndLink.takeAll() {
		suite.packetExpectStatus(suite.rcv, corrupted(p), Corrupted)
	}
	suite.Empty(suite.app.messages())

	suite.timeout(suite.snd, suite.timer)
	suite.exchange()

	suite.Equal([]string{"mangle"}, suite.app.messages())
	suite.Equal(0, suite.snd.Outstanding())
}

func (suite *ProtocolTestSuite) TestCorruptedAckRecoveredByTimeout() {
	suite.submit(suite.snd, "mangle")
	suite.deliverData()
	for _, p := range suite.rcvLink.takeAll() {
		suite.ackExpectStatus(suite.snd, corrupted(p), Corrupted)
	}
	suite.Equal(1, suite.snd.Outstanding())

	suite.timeout(suite.snd, suite.timer)
	suite.exchange()

	suite.Equal([]string{"mangle"}, suite.app.messages())
	suite.Equal(0, suite.snd.Outstanding())
	suite.Equal(1, suite.snd.Stats().CorruptedAcks)
}

func (suite *ProtocolTestSuite) TestWindowRecyclesThroughManyMessages() {
	const total = 30
	var want []string
	next := 0

	for len(want) < total || suite.snd.Outstanding() > 0 {
		for next < total {
			payload := fmt.Sprintf("message %02d", next)
			status, err := suite.snd.Submit(PayloadOf(payload))
			suite.Require().NoError(err)
			if status == WindowFull {
				break
			}
			suite.Equal(Success, status)
			want = append(want, payload)
			next++
		}
		suite.exchange()
	}

	suite.Equal(want, suite.app.messages())
	suite.Equal(total, suite.rcv.Stats().Delivered)
	suite.Equal(total, suite.snd.Stats().NewAcks)
	suite.Equal(0, suite.snd.Stats().Resent)
	suite.False(suite.timer.running)
	suite.Equal(0, suite.timer.doubleArms)
}

func TestProtocol(t *testing.T) {
	suite.Run(t, new(ProtocolTestSuite))
}
