package sarq

import "log"

// TraceLevel selects how much protocol commentary an endpoint writes.
// Each level includes everything below it.
type TraceLevel int

const (
	TraceOff TraceLevel = iota
	// TraceEvents reports window movement, deliveries and timeouts.
	TraceEvents
	// TraceDecisions additionally reports why packets were dropped or
	// classified as duplicates.
	TraceDecisions
	// TraceVerbose additionally reports every packet in and out.
	TraceVerbose
)

// Tracer writes leveled protocol commentary to a standard library
// logger. A nil Tracer is valid and silent, so callers never guard
// trace calls.
type Tracer struct {
	level  TraceLevel
	logger *log.Logger
}

func NewTracer(level TraceLevel, logger *log.Logger) *Tracer {
	if logger == nil {
		logger = log.Default()
	}
	return &Tracer{level: level, logger: logger}
}

// Logf prints when the tracer's level is at or above the given one.
func (t *Tracer) Logf(level TraceLevel, format string, args ...interface{}) {
	if t == nil || t.level < level {
		return
	}
	t.logger.Printf(format, args...)
}
