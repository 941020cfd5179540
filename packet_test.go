package sarq

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type PacketTestSuite struct {
	sarqTestSuite
}

func (suite *PacketTestSuite) TestChecksumCoversHeaderAndPayload() {
	p := newDataPacket(3, PayloadOf("hello"))
	suite.False(IsCorrupted(p))
	suite.Equal(p.Checksum, ComputeChecksum(p))

	flippedSeq := p
	flippedSeq.Seq = 4
	suite.True(IsCorrupted(flippedSeq))

	flippedAck := p
	flippedAck.Ack = 0
	suite.True(IsCorrupted(flippedAck))

	flippedByte := p
	flippedByte.Payload[7] ^= 0x01
	suite.True(IsCorrupted(flippedByte))
}

func (suite *PacketTestSuite) TestDataPacketLeavesAckUnused() {
	p := newDataPacket(0, PayloadOf("a"))
	suite.Equal(NotInUse, p.Ack)
	suite.Equal(int32(0), p.Seq)
}

func (suite *PacketTestSuite) TestAckPacketFillsPayload() {
	p := newAckPacket(1, 5)
	suite.Equal(int32(1), p.Seq)
	suite.Equal(int32(5), p.Ack)
	for _, b := range p.Payload {
		suite.Equal(byte('0'), b)
	}
	suite.False(IsCorrupted(p))
}

func (suite *PacketTestSuite) TestFrameRoundTrip() {
	p := newDataPacket(11, PayloadOf("round trip"))
	frame, err := p.MarshalBinary()
	suite.Require().NoError(err)
	suite.Len(frame, FrameLength)

	var decoded Packet
	suite.Require().NoError(decoded.UnmarshalBinary(frame))
	suite.Equal(p, decoded)
	suite.False(IsCorrupted(decoded))
}

func (suite *PacketTestSuite) TestFrameRoundTripKeepsNotInUse() {
	p := newDataPacket(2, PayloadOf("negative header field"))
	frame, err := p.MarshalBinary()
	suite.Require().NoError(err)

	var decoded Packet
	suite.Require().NoError(decoded.UnmarshalBinary(frame))
	suite.Equal(NotInUse, decoded.Ack)
}

func (suite *PacketTestSuite) TestUnmarshalRejectsShortFrame() {
	var p Packet
	suite.Error(p.UnmarshalBinary(make([]byte, FrameLength-1)))
}

func (suite *PacketTestSuite) TestScrambledFrameFailsChecksum() {
	p := newDataPacket(7, PayloadOf("scramble"))
	frame, err := p.MarshalBinary()
	suite.Require().NoError(err)
	frame[15] ^= 0xa5

	var decoded Packet
	suite.Require().NoError(decoded.UnmarshalBinary(frame))
	suite.True(IsCorrupted(decoded))
}

func TestPacket(t *testing.T) {
	suite.Run(t, new(PacketTestSuite))
}
