package core

// TonePin identifies a hardware pin capable of waveform output
type TonePin uint32

// WaveformDriver is the abstract waveform-peripheral interface the tone
// engine drives. Platform-specific implementations handle actual
// hardware control; pins belong to groups (PWM slices on RP2040) that
// share one carrier counter.
type WaveformDriver interface {
	// PinGroup returns the output group the pin belongs to.
	PinGroup(pin TonePin) (uint8, error)

	// ClaimPin binds the pin to waveform output, making it unavailable
	// for general-purpose use.
	ClaimPin(pin TonePin) error

	// ReleasePin drops the claim on the pin so it can be claimed again.
	ReleasePin(pin TonePin)

	// ConfigureCarrier sets the group's free-running counter to wrap at
	// top with a unit clock divider and the given phase-correction mode.
	// The group is left disabled.
	ConfigureCarrier(group uint8, top uint16, phaseCorrect bool) error

	// SetEnabled starts or stops the group's counter.
	SetEnabled(group uint8, enabled bool)

	// SetLevel sets the duty level (0..top) driven on a pin.
	SetLevel(pin TonePin, level uint16)

	// ResetCounter zeroes the group's internal counter.
	ResetCounter(group uint8)
}

// Global singleton used by core code.
var waveformDriver WaveformDriver

// SetWaveformDriver is called by target-specific code to register its driver.
func SetWaveformDriver(d WaveformDriver) {
	waveformDriver = d
}

// MustWaveform returns the configured driver or panics if missing.
func MustWaveform() WaveformDriver {
	if waveformDriver == nil {
		panic("waveform driver not configured")
	}
	return waveformDriver
}
