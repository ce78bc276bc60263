package core

import (
	"errors"
	"math"
	"testing"
)

var errMockPinClaimed = errors.New("pin already claimed")

// mockWaveform implements WaveformDriver with the RP2040 pin-to-slice
// mapping, recording every level write for inspection. ClaimPin rejects
// double claims like the hardware drivers do.
type mockWaveform struct {
	levels     map[TonePin]uint16
	claimed    map[TonePin]bool
	enabled    map[uint8]bool
	carrierTop map[uint8]uint16
	phaseOK    map[uint8]bool
	resets     map[uint8]int
}

func newMockWaveform() *mockWaveform {
	return &mockWaveform{
		levels:     make(map[TonePin]uint16),
		claimed:    make(map[TonePin]bool),
		enabled:    make(map[uint8]bool),
		carrierTop: make(map[uint8]uint16),
		phaseOK:    make(map[uint8]bool),
		resets:     make(map[uint8]int),
	}
}

func (m *mockWaveform) PinGroup(pin TonePin) (uint8, error) {
	return uint8((pin >> 1) & 0x7), nil
}

func (m *mockWaveform) ClaimPin(pin TonePin) error {
	if m.claimed[pin] {
		return errMockPinClaimed
	}
	m.claimed[pin] = true
	return nil
}

func (m *mockWaveform) ReleasePin(pin TonePin) {
	delete(m.claimed, pin)
}

func (m *mockWaveform) ConfigureCarrier(group uint8, top uint16, phaseCorrect bool) error {
	m.carrierTop[group] = top
	m.phaseOK[group] = phaseCorrect
	return nil
}

func (m *mockWaveform) SetEnabled(group uint8, enabled bool) {
	m.enabled[group] = enabled
}

func (m *mockWaveform) SetLevel(pin TonePin, level uint16) {
	m.levels[pin] = level
}

func (m *mockWaveform) ResetCounter(group uint8) {
	m.resets[group]++
}

// setupToneTest resets the scheduler and installs fresh drivers
func setupToneTest() *mockWaveform {
	timerList = nil
	currentTime = 0
	armedAlarms = make(map[*Timer]*schedAlarm)
	SetTime(0)

	wf := newMockWaveform()
	SetWaveformDriver(wf)
	SetAlarmDriver(NewSchedAlarmDriver())
	return wf
}

// stepUS advances simulated time by one increment and dispatches timers
func stepUS(us uint32) {
	SetTime(GetTime() + us)
	ProcessTimers()
}

func TestSingleEndedTone(t *testing.T) {
	wf := setupToneTest()

	out, err := NewToneOut(4)
	if err != nil {
		t.Fatalf("NewToneOut failed: %v", err)
	}

	// 1kHz at volume 50 for 10ms: half period 500us, level 500,
	// 20 half-periods.
	if err := out.StartTone(1000, 50, 10, TimeMS); err != nil {
		t.Fatalf("StartTone failed: %v", err)
	}

	if !wf.claimed[4] {
		t.Error("pin 4 not claimed")
	}
	if wf.carrierTop[2] != PWMTop {
		t.Errorf("carrier top: expected %d, got %d", PWMTop, wf.carrierTop[2])
	}
	if !wf.phaseOK[2] {
		t.Error("carrier not phase-correct")
	}
	if !wf.enabled[2] {
		t.Error("group not enabled after StartTone")
	}
	if wf.levels[4] != 0 {
		t.Errorf("pin should be parked at 0 before the first tick, got %d", wf.levels[4])
	}
	if !out.Active() {
		t.Error("tone not active after StartTone")
	}

	// First tick drives the pin to the duty level.
	stepUS(500)
	if wf.levels[4] != 500 {
		t.Errorf("after first tick: expected level 500, got %d", wf.levels[4])
	}

	// Second tick toggles back to 0.
	stepUS(500)
	if wf.levels[4] != 0 {
		t.Errorf("after second tick: expected level 0, got %d", wf.levels[4])
	}

	// Run out the remaining half-periods.
	for i := 0; i < 18; i++ {
		stepUS(500)
	}

	if out.Active() {
		t.Error("tone still active after full duration")
	}
	if wf.levels[4] != 0 {
		t.Errorf("pin not silent after completion, level %d", wf.levels[4])
	}

	// Extra dispatches after completion must not disturb silence.
	stepUS(500)
	stepUS(500)
	if wf.levels[4] != 0 {
		t.Errorf("over-fire disturbed output, level %d", wf.levels[4])
	}
}

func TestDifferentialToneAlternates(t *testing.T) {
	wf := setupToneTest()

	// Pins 6 and 7 share slice 3.
	out, err := NewDifferentialToneOut(6, 7)
	if err != nil {
		t.Fatalf("NewDifferentialToneOut failed: %v", err)
	}

	if err := out.StartTone(1000, 80, 5000, TimeUS); err != nil {
		t.Fatalf("StartTone failed: %v", err)
	}

	if wf.resets[3] != 1 {
		t.Errorf("counter not reset once for differential start, got %d", wf.resets[3])
	}

	// Before ticking: plus parked low, minus carries the level.
	if wf.levels[6] != 0 || wf.levels[7] != 800 {
		t.Errorf("initial park wrong: plus=%d minus=%d", wf.levels[6], wf.levels[7])
	}

	// 10 half-periods; exactly one line nonzero at any time, and the
	// nonzero side alternates.
	for i := 0; i < 10; i++ {
		stepUS(500)
		plus, minus := wf.levels[6], wf.levels[7]

		if out.Active() {
			if plus != 0 && minus != 0 {
				t.Fatalf("tick %d: both lines driven (plus=%d minus=%d)", i, plus, minus)
			}
			wantPlusHigh := i%2 == 0
			if wantPlusHigh && (plus != 800 || minus != 0) {
				t.Errorf("tick %d: expected plus=800 minus=0, got plus=%d minus=%d", i, plus, minus)
			}
			if !wantPlusHigh && (plus != 0 || minus != 800) {
				t.Errorf("tick %d: expected plus=0 minus=800, got plus=%d minus=%d", i, plus, minus)
			}
		}
	}

	if out.Active() {
		t.Error("tone still active after 10 half-periods of a 5ms tone")
	}
	if wf.levels[6] != 0 || wf.levels[7] != 0 {
		t.Errorf("lines not silent after completion: plus=%d minus=%d", wf.levels[6], wf.levels[7])
	}
}

func TestDifferentialSliceMismatchPanics(t *testing.T) {
	setupToneTest()

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for pins on different slices")
		}
	}()

	// Pin 4 is slice 2, pin 6 is slice 3.
	_, _ = NewDifferentialToneOut(4, 6)
}

func TestInvalidFrequencyLeavesToneRunning(t *testing.T) {
	wf := setupToneTest()

	out, err := NewToneOut(2)
	if err != nil {
		t.Fatalf("NewToneOut failed: %v", err)
	}

	if err := out.StartTone(1000, 50, 100, TimeMS); err != nil {
		t.Fatalf("StartTone failed: %v", err)
	}
	stepUS(500)
	if wf.levels[2] != 500 {
		t.Fatalf("tone not running, level %d", wf.levels[2])
	}

	if err := out.StartTone(0, 50, 100, TimeMS); err != ErrInvalidFrequency {
		t.Fatalf("expected ErrInvalidFrequency, got %v", err)
	}

	// The running tone must be untouched.
	if !out.Active() {
		t.Error("running tone cancelled by rejected request")
	}
	stepUS(500)
	if wf.levels[2] != 0 {
		t.Errorf("toggle cadence broken after rejected request, level %d", wf.levels[2])
	}
	stepUS(500)
	if wf.levels[2] != 500 {
		t.Errorf("toggle cadence broken after rejected request, level %d", wf.levels[2])
	}
}

func TestRestartReplacesTone(t *testing.T) {
	wf := setupToneTest()

	out, err := NewToneOut(8)
	if err != nil {
		t.Fatalf("NewToneOut failed: %v", err)
	}

	if err := out.StartTone(1000, 50, 100, TimeMS); err != nil {
		t.Fatalf("StartTone failed: %v", err)
	}
	stepUS(500)
	stepUS(500)
	stepUS(500)
	if out.Repeats() != 3 {
		t.Fatalf("expected 3 repeats, got %d", out.Repeats())
	}

	// Restart with a new frequency and volume; last call wins.
	if err := out.StartTone(2000, 100, 10, TimeMS); err != nil {
		t.Fatalf("restart failed: %v", err)
	}

	if out.Repeats() != 0 {
		t.Errorf("repeat count carried over a restart: %d", out.Repeats())
	}

	// New cadence is 250us. The old 500us alarm must be gone: a single
	// 250us step fires exactly one tick at the new level.
	stepUS(250)
	if wf.levels[8] != 1000 {
		t.Errorf("expected new tone level 1000, got %d", wf.levels[8])
	}
	if out.Repeats() != 1 {
		t.Errorf("expected 1 repeat after one new-cadence step, got %d", out.Repeats())
	}
}

func TestStopTone(t *testing.T) {
	wf := setupToneTest()

	out, err := NewToneOut(10)
	if err != nil {
		t.Fatalf("NewToneOut failed: %v", err)
	}

	if err := out.StartTone(500, 30, 100, TimeMS); err != nil {
		t.Fatalf("StartTone failed: %v", err)
	}
	stepUS(1000)
	if wf.levels[10] != 300 {
		t.Fatalf("tone not running, level %d", wf.levels[10])
	}

	out.StopTone()

	if out.Active() {
		t.Error("tone active after StopTone")
	}
	if wf.levels[10] != 0 {
		t.Errorf("pin not silent after StopTone, level %d", wf.levels[10])
	}
	if !wf.enabled[5] {
		t.Error("carrier should stay enabled after StopTone")
	}

	// No stray alarm survives.
	stepUS(1000)
	stepUS(1000)
	if wf.levels[10] != 0 {
		t.Errorf("alarm survived StopTone, level %d", wf.levels[10])
	}

	// Stopping with nothing active just re-asserts silence.
	out.StopTone()
}

func TestRepeatCountAtConcertPitch(t *testing.T) {
	setupToneTest()

	out, err := NewToneOut(12)
	if err != nil {
		t.Fatalf("NewToneOut failed: %v", err)
	}

	// 440Hz for 1s: half period 1136us, 1000000/1136 = 880 half-periods.
	if err := out.StartTone(440, 50, 1000, TimeMS); err != nil {
		t.Fatalf("StartTone failed: %v", err)
	}

	if out.state.numRepeats != 880 {
		t.Errorf("expected 880 half-periods, got %d", out.state.numRepeats)
	}
	if out.state.level != 500 {
		t.Errorf("expected duty level 500, got %d", out.state.level)
	}
}

func TestUnknownTimeUnitTreatedAsMilliseconds(t *testing.T) {
	setupToneTest()

	out, err := NewToneOut(0)
	if err != nil {
		t.Fatalf("NewToneOut failed: %v", err)
	}

	// Unit 99 falls back to milliseconds: 2ms at 1kHz = 4 half-periods.
	if err := out.StartTone(1000, 50, 2, TimeUnit(99)); err != nil {
		t.Fatalf("StartTone failed: %v", err)
	}

	if out.state.numRepeats != 4 {
		t.Errorf("expected 4 half-periods, got %d", out.state.numRepeats)
	}
}

func TestTwoOutputsPlayConcurrently(t *testing.T) {
	wf := setupToneTest()

	a, err := NewToneOut(2)
	if err != nil {
		t.Fatalf("NewToneOut failed: %v", err)
	}
	b, err := NewToneOut(14)
	if err != nil {
		t.Fatalf("NewToneOut failed: %v", err)
	}

	if err := a.StartTone(1000, 50, 100, TimeMS); err != nil {
		t.Fatalf("StartTone on first output failed: %v", err)
	}

	// The second output starts while the first is playing; both share
	// the tone alarm channel.
	if err := b.StartTone(500, 80, 100, TimeMS); err != nil {
		t.Fatalf("StartTone on second output failed: %v", err)
	}

	// t=500us: only the 1kHz tone has ticked.
	stepUS(500)
	if wf.levels[2] != 500 {
		t.Errorf("first output: expected level 500, got %d", wf.levels[2])
	}
	if wf.levels[14] != 0 {
		t.Errorf("second output ticked early, level %d", wf.levels[14])
	}

	// t=1000us: the 1kHz tone toggles back, the 500Hz tone goes high.
	stepUS(500)
	if wf.levels[2] != 0 {
		t.Errorf("first output: expected level 0, got %d", wf.levels[2])
	}
	if wf.levels[14] != 800 {
		t.Errorf("second output: expected level 800, got %d", wf.levels[14])
	}

	// Stopping one output leaves the other's cadence intact.
	a.StopTone()
	stepUS(500)
	stepUS(500)
	if wf.levels[2] != 0 {
		t.Errorf("stopped output driven again, level %d", wf.levels[2])
	}
	if wf.levels[14] != 0 {
		t.Errorf("second output: expected level 0 at t=2ms, got %d", wf.levels[14])
	}
	if !b.Active() {
		t.Error("second output no longer active after the first stopped")
	}
	stepUS(500)
	stepUS(500)
	if wf.levels[14] != 800 {
		t.Errorf("second output: expected level 800 at t=3ms, got %d", wf.levels[14])
	}
}

func TestLongDurationRepeatCount(t *testing.T) {
	setupToneTest()

	out, err := NewToneOut(4)
	if err != nil {
		t.Fatalf("NewToneOut failed: %v", err)
	}

	// 1kHz for 10000 seconds: 1e7ms * 1000us/ms / 500us. The product
	// exceeds 32 bits; the quotient must not.
	if err := out.StartTone(1000, 50, 10000000, TimeMS); err != nil {
		t.Fatalf("StartTone failed: %v", err)
	}
	if out.state.numRepeats != 20000000 {
		t.Errorf("expected 20000000 half-periods, got %d", out.state.numRepeats)
	}

	// A duration whose repeat count cannot fit saturates.
	if err := out.StartTone(1000, 50, math.MaxUint32, TimeMS); err != nil {
		t.Fatalf("StartTone failed: %v", err)
	}
	if out.state.numRepeats != math.MaxUint32 {
		t.Errorf("expected saturated repeat count, got %d", out.state.numRepeats)
	}
}

func TestCloseReleasesPins(t *testing.T) {
	wf := setupToneTest()

	out, err := NewDifferentialToneOut(8, 9)
	if err != nil {
		t.Fatalf("NewDifferentialToneOut failed: %v", err)
	}
	if !wf.claimed[8] || !wf.claimed[9] {
		t.Fatal("pins not claimed")
	}

	out.Close()

	if wf.claimed[8] || wf.claimed[9] {
		t.Error("pins still claimed after Close")
	}

	// The pins can be bound again.
	if _, err := NewDifferentialToneOut(8, 9); err != nil {
		t.Errorf("rebinding released pins failed: %v", err)
	}
}
