package sarq

type recvSlot struct {
	payload  Payload
	received bool
}

// recvWindow buffers payloads that arrived ahead of the next expected
// sequence number. Slots are addressed by distance from the window
// base, and the base slot index advances together with the base
// sequence number, so two live packets can never collide even when the
// sequence space is not a multiple of the window size.
type recvWindow struct {
	slots []recvSlot
	base  int
}

func newRecvWindow(size int32) *recvWindow {
	return &recvWindow{slots: make([]recvSlot, size)}
}

func (ring *recvWindow) size() int32 {
	return int32(len(ring.slots))
}

func (ring *recvWindow) buffered(offset int32) bool {
	index := (ring.base + int(offset)) % len(ring.slots)
	return ring.slots[index].received
}

func (ring *recvWindow) store(offset int32, p Payload) {
	index := (ring.base + int(offset)) % len(ring.slots)
	ring.slots[index] = recvSlot{payload: p, received: true}
}

// takeHead pops the payload in the base slot if one is buffered and
// advances the base by one slot.
func (ring *recvWindow) takeHead() (Payload, bool) {
	slot := &ring.slots[ring.base]
	if !slot.received {
		return Payload{}, false
	}
	p := slot.payload
	*slot = recvSlot{}
	ring.base = (ring.base + 1) % len(ring.slots)
	return p, true
}
