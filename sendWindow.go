package sarq

type ackStatus int

const (
	slotFree ackStatus = iota
	ackPending
	ackAcknowledged
)

type sendSlot struct {
	packet Packet
	status ackStatus
}

// sendWindow is a fixed ring of in-flight packets ordered by age. New
// packets are appended behind the youngest slot and acknowledged slots
// are reclaimed from the front, so a slot is never reused while its
// packet is still unacknowledged.
type sendWindow struct {
	slots []sendSlot
	base  int
	count int
}

func newSendWindow(size int32) *sendWindow {
	return &sendWindow{slots: make([]sendSlot, size)}
}

func (ring *sendWindow) full() bool {
	return ring.count == len(ring.slots)
}

func (ring *sendWindow) outstanding() int {
	return ring.count
}

func (ring *sendWindow) push(p Packet) {
	index := (ring.base + ring.count) % len(ring.slots)
	ring.slots[index] = sendSlot{packet: p, status: ackPending}
	ring.count++
}

// oldest returns the packet in the base slot. Valid only while the
// window is non-empty.
func (ring *sendWindow) oldest() Packet {
	return ring.slots[ring.base].packet
}

// statusAt reports the slot offset packets past the oldest one.
func (ring *sendWindow) statusAt(offset int32) ackStatus {
	index := (ring.base + int(offset)) % len(ring.slots)
	return ring.slots[index].status
}

func (ring *sendWindow) ack(offset int32) {
	index := (ring.base + int(offset)) % len(ring.slots)
	ring.slots[index].status = ackAcknowledged
}

// slide frees the leading run of acknowledged slots and reports how far
// the window base moved.
func (ring *sendWindow) slide() int32 {
	var moved int32
	for ring.count > 0 && ring.slots[ring.base].status == ackAcknowledged {
		ring.slots[ring.base] = sendSlot{}
		ring.base = (ring.base + 1) % len(ring.slots)
		ring.count--
		moved++
	}
	return moved
}
