package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// ToneEvent captures a playback event for post-mortem analysis
type ToneEvent struct {
	EventType uint8  // event type code
	OID       uint8  // tone output OID
	Clock     uint32 // system clock at event
	Value1    uint32 // context-dependent value
	Value2    uint32 // context-dependent value
}

// Event type codes
const (
	EvtToneStart = 1 // start_tone accepted
	EvtToneDone  = 2 // tone completed its repeat count
	EvtToneStop  = 3 // stop_tone or emergency stop
)

const ToneRingSize = 32 // keep the last 32 events

var (
	// debugPrintln is the platform debug print function, no-op by default
	debugPrintln DebugWriter = func(s string) {}

	// debugEnabled gates verbose output; off by default since printing
	// from the main loop skews tick latency
	debugEnabled bool

	toneRing     [ToneRingSize]ToneEvent
	toneRingHead uint8
)

// SetDebugWriter sets the platform-specific debug output function.
// Targets redirect this to UART or USB.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message using the platform writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// RecordToneEvent captures a playback event in the ring buffer. Always
// non-blocking; safe to call from alarm callbacks.
func RecordToneEvent(eventType, oid uint8, clock, value1, value2 uint32) {
	idx := toneRingHead
	toneRing[idx] = ToneEvent{
		EventType: eventType,
		OID:       oid,
		Clock:     clock,
		Value1:    value1,
		Value2:    value2,
	}
	toneRingHead = (idx + 1) % ToneRingSize
}

// DumpToneRing outputs the event ring, oldest first. Call after
// stopping playback; it prints synchronously.
func DumpToneRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[TONE] === event ring ===")

	start := toneRingHead
	for i := uint8(0); i < ToneRingSize; i++ {
		idx := (start + i) % ToneRingSize
		evt := &toneRing[idx]
		if evt.EventType == 0 {
			continue
		}

		var name string
		switch evt.EventType {
		case EvtToneStart:
			name = "START"
		case EvtToneDone:
			name = "DONE"
		case EvtToneStop:
			name = "STOP"
		default:
			name = "UNKNOWN"
		}

		debugPrintln("[TONE] " + name +
			" oid=" + itoa(int(evt.OID)) +
			" clock=" + utoa(evt.Clock) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	debugPrintln("[TONE] === end ===")
}

// ClearToneRing clears the event ring
func ClearToneRing() {
	for i := range toneRing {
		toneRing[i] = ToneEvent{}
	}
	toneRingHead = 0
}
