package sarq

// SenderStats counts protocol events on the sending endpoint. Counters
// only ever grow; Sender.Stats returns a snapshot copy.
type SenderStats struct {
	// Submitted counts payloads accepted into the send window.
	Submitted int
	// WindowFull counts payloads rejected because the window held
	// WindowSize unacknowledged packets.
	WindowFull int
	// AcksReceived counts every uncorrupted acknowledgment processed,
	// duplicates included.
	AcksReceived int
	// NewAcks counts acknowledgments that marked a packet for the
	// first time.
	NewAcks int
	// Resent counts retransmissions triggered by timeouts.
	Resent int
	// CorruptedAcks counts acknowledgments dropped by checksum.
	CorruptedAcks int
}

// ReceiverStats counts protocol events on the receiving endpoint.
type ReceiverStats struct {
	// Received counts every uncorrupted data packet processed,
	// duplicates included.
	Received int
	// Delivered counts payloads handed to the application.
	Delivered int
	// Buffered counts packets held back for reordering.
	Buffered int
	// Duplicates counts packets acknowledged again without delivery.
	Duplicates int
	// CorruptedData counts data packets dropped by checksum.
	CorruptedData int
	// AcksSent counts acknowledgments transmitted.
	AcksSent int
}
