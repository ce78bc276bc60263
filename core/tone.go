// Tone generation on binary PWM outputs
// Emulates variable-volume, single-frequency tones by toggling which
// output line carries the ultrasonic duty level once per audible
// half-period. Supports single-ended and differential wiring;
// differential lines must share an output group so their carriers stay
// aligned.
package core

import "math"

// TimeUnit selects the timebase of a tone duration.
type TimeUnit uint8

const (
	TimeMS TimeUnit = 0 // duration in milliseconds
	TimeUS TimeUnit = 1 // duration in microseconds
)

// noPin marks the secondary line as absent in single-ended mode.
const noPin = TonePin(0xFFFFFFFF)

// toneState is the live state of one in-flight tone. It is created by
// StartTone, replaced wholesale on every new tone, and mutated only by
// the alarm callback.
type toneState struct {
	numRepeats uint32 // half-periods to emit
	repeats    uint32 // half-periods completed
	high       bool   // true while the primary line holds the duty level
	pinPlus    TonePin
	pinMinus   TonePin
	diff       bool
	level      uint16
	debugID    uint8
}

// ToneOut drives tones on one PWM output line, or on a differential
// pair sharing an output group. Its timing resources (alarm pool and
// repeating alarm) are recreated for every tone and never outlive it.
type ToneOut struct {
	pinPlus  TonePin
	pinMinus TonePin
	group    uint8
	diff     bool
	debugID  uint8

	state *toneState
	alarm Alarm
	pool  AlarmPool
}

// SetDebugID tags the output's events in the debug ring, typically with
// the command-layer oid.
func (o *ToneOut) SetDebugID(id uint8) {
	o.debugID = id
}

// NewToneOut binds a single-ended tone output to pinPlus, claiming the
// pin for waveform output.
func NewToneOut(pinPlus TonePin) (*ToneOut, error) {
	drv := MustWaveform()

	group, err := drv.PinGroup(pinPlus)
	if err != nil {
		return nil, err
	}
	if err := drv.ClaimPin(pinPlus); err != nil {
		return nil, err
	}

	return &ToneOut{pinPlus: pinPlus, pinMinus: noPin, group: group}, nil
}

// NewDifferentialToneOut binds a differential pair. Both pins must
// resolve to the same output group; a mismatch panics, since continuing
// would silently drive unintended hardware.
func NewDifferentialToneOut(pinPlus, pinMinus TonePin) (*ToneOut, error) {
	drv := MustWaveform()

	group, err := drv.PinGroup(pinPlus)
	if err != nil {
		return nil, err
	}
	minusGroup, err := drv.PinGroup(pinMinus)
	if err != nil {
		return nil, err
	}
	if minusGroup != group {
		panic("differential tone pins must share an output group")
	}

	if err := drv.ClaimPin(pinPlus); err != nil {
		return nil, err
	}
	if err := drv.ClaimPin(pinMinus); err != nil {
		return nil, err
	}

	return &ToneOut{pinPlus: pinPlus, pinMinus: pinMinus, group: group, diff: true}, nil
}

// StartTone begins a tone of freq Hz at the given volume (0-100, tenths
// precision, out-of-range values clamped) for duration in the given
// timebase. A tone already in flight is cancelled first and its timing
// resources released; last call wins. The outputs stay silent until the
// new carrier is fully configured, so a restart cannot glitch audibly.
// A zero or negative frequency, or an unavailable alarm channel, is
// rejected before any current tone is disturbed.
func (o *ToneOut) StartTone(freq, volume float64, duration uint32, unit TimeUnit) error {
	halfPeriodUS, err := FreqToHalfPeriodUS(freq)
	if err != nil {
		return err
	}
	level := VolumeToLevel(volume)

	pool, err := MustAlarmDriver().NewPool(ToneAlarmChannel)
	if err != nil {
		return err
	}

	drv := MustWaveform()

	// Silence the group and tear down the old tone before configuring,
	// so no stale callback can observe the new state.
	drv.SetEnabled(o.group, false)
	o.releaseTiming()

	if err := drv.ConfigureCarrier(o.group, PWMTop, true); err != nil {
		pool.Destroy()
		return err
	}

	// The first tick drives the primary line high, so park the duty
	// level on the secondary side for now.
	drv.SetLevel(o.pinPlus, 0)
	if o.diff {
		drv.SetLevel(o.pinMinus, level)
	}

	var numRepeats uint32
	switch unit {
	case TimeUS:
		numRepeats = duration / halfPeriodUS
	default:
		// Scale in 64 bits; long durations would wrap the uint32
		// microsecond product.
		reps := uint64(duration) * 1000 / uint64(halfPeriodUS)
		if reps > math.MaxUint32 {
			reps = math.MaxUint32
		}
		numRepeats = uint32(reps)
	}

	state := &toneState{
		numRepeats: numRepeats,
		pinPlus:    o.pinPlus,
		pinMinus:   o.pinMinus,
		diff:       o.diff,
		level:      level,
		debugID:    o.debugID,
	}

	alarm, err := pool.AddRepeating(halfPeriodUS, state.tick)
	if err != nil {
		pool.Destroy()
		return err
	}

	o.state = state
	o.pool = pool
	o.alarm = alarm

	if o.diff {
		drv.ResetCounter(o.group)
	}
	drv.SetEnabled(o.group, true)

	return nil
}

// StopTone cancels any in-flight tone, releases its timing resources
// and forces both lines to duty 0. The carrier stays enabled so the
// outputs settle low instead of latching the last driven level. Calling
// it with no tone active only re-asserts silence.
func (o *ToneOut) StopTone() {
	o.releaseTiming()

	drv := MustWaveform()
	drv.SetLevel(o.pinPlus, 0)
	if o.diff {
		drv.SetLevel(o.pinMinus, 0)
	}
}

// Close silences the output and releases its timing resources and pin
// claims. No alarm tick can fire after Close returns, and the pins may
// be claimed again.
func (o *ToneOut) Close() {
	o.StopTone()

	drv := MustWaveform()
	drv.ReleasePin(o.pinPlus)
	if o.diff {
		drv.ReleasePin(o.pinMinus)
	}
}

// Active reports whether a tone is still in flight. The answer is a
// snapshot; the tone may complete concurrently.
func (o *ToneOut) Active() bool {
	s := o.state
	return s != nil && s.repeats < s.numRepeats
}

// Repeats returns the completed half-period count of the current tone,
// or zero when none is active.
func (o *ToneOut) Repeats() uint32 {
	if s := o.state; s != nil {
		return s.repeats
	}
	return 0
}

// releaseTiming cancels the repeating alarm and destroys its pool. The
// pool is recreated for every tone, never reused.
func (o *ToneOut) releaseTiming() {
	if o.alarm != nil {
		o.alarm.Cancel()
		o.alarm = nil
	}
	if o.pool != nil {
		o.pool.Destroy()
		o.pool = nil
	}
	o.state = nil
}

// tick runs once per half-period in the alarm dispatch context. It must
// not allocate or block. An extra tick after termination re-asserts the
// silent levels and terminates again, so an over-firing facility is
// harmless.
func (s *toneState) tick() bool {
	drv := MustWaveform()

	s.repeats++
	if s.repeats >= s.numRepeats {
		// Duty 0 with the carrier still running: the lines reach low
		// deterministically.
		drv.SetLevel(s.pinPlus, 0)
		if s.diff {
			drv.SetLevel(s.pinMinus, 0)
		}
		if s.repeats == s.numRepeats {
			RecordToneEvent(EvtToneDone, s.debugID, GetTime(), s.repeats, 0)
		}
		return false
	}

	if s.high {
		drv.SetLevel(s.pinPlus, 0)
		if s.diff {
			drv.SetLevel(s.pinMinus, s.level)
		}
	} else {
		drv.SetLevel(s.pinPlus, s.level)
		if s.diff {
			drv.SetLevel(s.pinMinus, 0)
		}
	}
	s.high = !s.high

	return true
}
