// Duty-cycle modulation arithmetic for tone generation
// Maps perceptual volume to an ultrasonic PWM duty level and audible
// frequency to the half-period at which output polarity must toggle.
package core

import (
	"errors"
	"math"
)

const (
	// PWMTop is the wrap value of the ultrasonic carrier counter. With a
	// unit clock divider and phase-correct counting, a stock 125MHz
	// system clock yields 125e6/(1000*2) = 62.5kHz: inaudible, but fast
	// enough that the duty level is perceived as loudness.
	PWMTop = 1000

	// CarrierFreqHz is the nominal ultrasonic carrier rate at stock clock.
	CarrierFreqHz = 62500
)

// ErrInvalidFrequency is returned when a tone request carries a zero or
// negative frequency.
var ErrInvalidFrequency = errors.New("tone frequency must be positive")

// FreqToHalfPeriodUS converts a tone frequency in Hz to the number of
// microseconds between output polarity toggles (half the wave period).
// The toggle interval is quantized to whole microseconds, so frequency
// error grows with frequency: negligible below 1kHz, roughly 200Hz near
// 20kHz. Frequencies below ~7.5Hz produce half-periods beyond the
// practical range of the alarm facility.
func FreqToHalfPeriodUS(freq float64) (uint32, error) {
	if freq <= 0 {
		return 0, ErrInvalidFrequency
	}
	return uint32(math.Round(1e6 / (2 * freq))), nil
}

// VolumeToLevel converts a perceptual volume to a carrier duty level.
// Volume is clamped to [0,100] and retains tenths precision (95.11
// behaves as 95.1). The result is in [0,PWMTop].
func VolumeToLevel(volume float64) uint16 {
	if volume > 100 {
		volume = 100
	}
	if volume < 0 {
		volume = 0
	}
	return uint16(math.Round(volume * 10))
}
