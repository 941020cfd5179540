package sarq

// StatusCode reports the outcome of a sender or receiver operation.
// Dropping a corrupted or duplicate packet is normal protocol behavior,
// not an error, so outcomes travel on this type and the error return is
// reserved for genuine faults such as a failing Link.
type StatusCode int

const (
	// Success marks an operation that advanced the protocol: a payload
	// accepted into the window, a new acknowledgment, a new delivery.
	Success StatusCode = iota
	// WindowFull rejects a Submit while the send window holds
	// WindowSize unacknowledged packets.
	WindowFull
	// Corrupted marks an inbound packet whose checksum failed; the
	// packet was ignored entirely.
	Corrupted
	// DuplicateAck marks an acknowledgment for a packet already marked
	// acknowledged, or one outside the current send window.
	DuplicateAck
	// DuplicateData marks a data packet already buffered or already
	// delivered; it was acknowledged again but not stored or delivered
	// again.
	DuplicateData
	// Buffered marks an out-of-order data packet held for later
	// in-order delivery.
	Buffered
	// Delivered marks a data packet that reached the application,
	// alone or at the head of a buffered run.
	Delivered
)

func (s StatusCode) String() string {
	switch s {
	case Success:
		return "success"
	case WindowFull:
		return "windowFull"
	case Corrupted:
		return "corrupted"
	case DuplicateAck:
		return "duplicateAck"
	case DuplicateData:
		return "duplicateData"
	case Buffered:
		return "buffered"
	case Delivered:
		return "delivered"
	}
	return "unknown"
}
