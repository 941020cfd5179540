// Package sarq implements the endpoint logic of a selective-repeat ARQ
// protocol: a windowed sender with individual acknowledgment bookkeeping
// and a buffering receiver that delivers in order exactly once. The
// channel between the endpoints is supplied by the caller (see Link).
package sarq

import (
	"encoding/binary"
	"fmt"
)

const (
	// PayloadSize is the fixed number of application bytes carried by
	// every packet, data and acknowledgment alike.
	PayloadSize = 20

	// FrameLength is the encoded size of a packet on the wire:
	// three big-endian int32 header fields followed by the payload.
	FrameLength = 12 + PayloadSize
)

// NotInUse fills header fields that carry no meaning for a packet kind,
// such as the ack field of a data packet.
const NotInUse int32 = -1

// Payload is one fixed-size application message unit.
type Payload [PayloadSize]byte

// Packet is the unit exchanged over the channel in both directions.
// Packets are passed by value and never mutated after transmission.
type Packet struct {
	Seq      int32
	Ack      int32
	Checksum int32
	Payload  Payload
}

// ComputeChecksum sums the header fields and every payload byte. The
// channel may overwrite any part of a frame in transit; a single-byte
// change always moves the sum.
func ComputeChecksum(p Packet) int32 {
	sum := p.Seq + p.Ack
	for _, b := range p.Payload {
		sum += int32(b)
	}
	return sum
}

// IsCorrupted reports whether the packet's stored checksum disagrees
// with a recomputation over its current contents.
func IsCorrupted(p Packet) bool {
	return ComputeChecksum(p) != p.Checksum
}

func newDataPacket(seq int32, payload Payload) Packet {
	p := Packet{Seq: seq, Ack: NotInUse, Payload: payload}
	p.Checksum = ComputeChecksum(p)
	return p
}

// newAckPacket builds an acknowledgment for the given data sequence
// number. The seq field alternates 0/1 on the reverse direction purely
// as a header convention; the payload is filler so the checksum covers
// a full frame.
func newAckPacket(seq, ack int32) Packet {
	p := Packet{Seq: seq, Ack: ack}
	for i := range p.Payload {
		p.Payload[i] = '0'
	}
	p.Checksum = ComputeChecksum(p)
	return p
}

// MarshalBinary encodes the packet as a fixed 32-byte big-endian frame.
func (p Packet) MarshalBinary() ([]byte, error) {
	frame := make([]byte, FrameLength)
	binary.BigEndian.PutUint32(frame[0:4], uint32(p.Seq))
	binary.BigEndian.PutUint32(frame[4:8], uint32(p.Ack))
	binary.BigEndian.PutUint32(frame[8:12], uint32(p.Checksum))
	copy(frame[12:], p.Payload[:])
	return frame, nil
}

// UnmarshalBinary decodes a frame produced by MarshalBinary.
func (p *Packet) UnmarshalBinary(frame []byte) error {
	if len(frame) != FrameLength {
		return fmt.Errorf("frame length %d, want %d", len(frame), FrameLength)
	}
	p.Seq = int32(binary.BigEndian.Uint32(frame[0:4]))
	p.Ack = int32(binary.BigEndian.Uint32(frame[4:8]))
	p.Checksum = int32(binary.BigEndian.Uint32(frame[8:12]))
	copy(p.Payload[:], frame[12:])
	return nil
}

// PayloadOf builds a Payload from a string, truncating or zero-padding
// to the fixed size.
func PayloadOf(s string) Payload {
	var p Payload
	copy(p[:], s)
	return p
}
