package trace

// TraceLevel controls the verbosity of round tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelRounds captures every generated point and every delivery.
	TraceLevelRounds TraceLevel = "rounds"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:   true,
	TraceLevelRounds: true,
	"":               true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// RoundTrace collects request and delivery records across a coordinator's
// lifetime. A nil *RoundTrace records nothing.
type RoundTrace struct {
	Level      TraceLevel
	Requests   []RequestRecord
	Deliveries []DeliveryRecord
}

// NewRoundTrace creates a RoundTrace ready for recording.
func NewRoundTrace(level TraceLevel) *RoundTrace {
	return &RoundTrace{
		Level:      level,
		Requests:   make([]RequestRecord, 0),
		Deliveries: make([]DeliveryRecord, 0),
	}
}

func (rt *RoundTrace) enabled() bool {
	return rt != nil && rt.Level == TraceLevelRounds
}

// RecordRequest appends a request record.
func (rt *RoundTrace) RecordRequest(record RequestRecord) {
	if rt.enabled() {
		rt.Requests = append(rt.Requests, record)
	}
}

// RecordDelivery appends a delivery record.
func (rt *RoundTrace) RecordDelivery(record DeliveryRecord) {
	if rt.enabled() {
		rt.Deliveries = append(rt.Deliveries, record)
	}
}
