package sarq

import "github.com/pkg/errors"

// seqDistance returns how many single increments move from onto seq in
// a circular sequence space of size n. The result is always in [0, n),
// so callers compare it against a window size to classify a packet as
// in-window, an old duplicate, or impossible.
func seqDistance(seq, from, n int32) int32 {
	return (seq - from + n) % n
}

func nextSeq(seq, n int32) int32 {
	return (seq + 1) % n
}

// Params fixes the protocol constants both endpoints must agree on.
type Params struct {
	// WindowSize bounds the number of unacknowledged packets the
	// sender keeps in flight and the span the receiver buffers.
	WindowSize int32
	// SeqSpace is the number of distinct sequence numbers. It must be
	// at least twice WindowSize or the receiver cannot tell a
	// retransmission of an old packet from a new one.
	SeqSpace int32
	// Timeout is the retransmission timer duration in the caller's
	// time unit, handed verbatim to Timer.Start.
	Timeout float64
}

// DefaultParams returns the classic textbook configuration.
func DefaultParams() Params {
	return Params{WindowSize: 6, SeqSpace: 12, Timeout: 16.0}
}

// Validate reports whether the parameters describe a workable
// configuration.
func (p Params) Validate() error {
	if p.WindowSize < 1 {
		return errors.New("window size must be at least 1")
	}
	if p.SeqSpace < 2*p.WindowSize {
		return errors.Errorf("sequence space %d too small for window %d, need at least twice the window", p.SeqSpace, p.WindowSize)
	}
	if p.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	return nil
}
