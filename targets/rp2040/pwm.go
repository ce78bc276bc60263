//go:build rp2040

package main

import (
	"errors"
	"machine"
	"runtime/volatile"
	"unsafe"

	"tonegen/core"
)

// RP2040 PWM peripheral memory map. The slice registers are accessed
// directly: the machine package's PWM API cannot set an exact TOP with
// a unity divider, and the carrier depends on both.
const (
	pwmBase     = 0x40050000
	pwmSliceLen = 0x14 // register stride per slice

	pwmCSROffset = 0x00
	pwmDIVOffset = 0x04
	pwmCTROffset = 0x08
	pwmCCOffset  = 0x0C
	pwmTOPOffset = 0x10

	csrEnable       = 1 << 0
	csrPhaseCorrect = 1 << 1

	numPWMSlices = 8
	maxGPIOPin   = 29
)

var (
	ErrInvalidTonePin = errors.New("pin does not support waveform output")
	ErrPinClaimed     = errors.New("pin already claimed for waveform output")
)

// sliceReg returns a register of the given PWM slice
func sliceReg(slice uint8, offset uintptr) *volatile.Register32 {
	addr := uintptr(pwmBase) + uintptr(slice)*pwmSliceLen + offset
	return (*volatile.Register32)(unsafe.Pointer(addr))
}

// RPWaveformDriver implements core.WaveformDriver on the RP2040 PWM
// block: 8 slices of 2 channels, GPIO pin N mapping to slice (N>>1)&7
// and channel N&1. A slice is the output group unit; both channels of a
// slice share one counter, which is what keeps a differential pair
// phase-locked.
type RPWaveformDriver struct {
	claimed [maxGPIOPin + 1]bool
}

// NewRPWaveformDriver creates the RP2040 waveform driver
func NewRPWaveformDriver() *RPWaveformDriver {
	return &RPWaveformDriver{}
}

// PinGroup returns the PWM slice driving the pin
func (d *RPWaveformDriver) PinGroup(pin core.TonePin) (uint8, error) {
	if pin > maxGPIOPin {
		return 0, ErrInvalidTonePin
	}
	return uint8((pin >> 1) & 0x7), nil
}

// ClaimPin routes the pin to its PWM slice and marks it claimed
func (d *RPWaveformDriver) ClaimPin(pin core.TonePin) error {
	if pin > maxGPIOPin {
		return ErrInvalidTonePin
	}
	if d.claimed[pin] {
		return ErrPinClaimed
	}

	machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinPWM})
	d.claimed[pin] = true
	return nil
}

// ReleasePin drops the waveform claim on the pin. The pad keeps its PWM
// routing; the next claim reconfigures it.
func (d *RPWaveformDriver) ReleasePin(pin core.TonePin) {
	if pin > maxGPIOPin {
		return
	}
	d.claimed[pin] = false
}

// ConfigureCarrier programs the slice counter. With the 125MHz system
// clock, a unity divider and phase-correct counting, top=1000 yields
// the 62.5kHz ultrasonic carrier.
func (d *RPWaveformDriver) ConfigureCarrier(group uint8, top uint16, phaseCorrect bool) error {
	if group >= numPWMSlices {
		return ErrInvalidTonePin
	}

	var csr uint32
	if phaseCorrect {
		csr = csrPhaseCorrect
	}

	// Leave the slice disabled while reprogramming; SetEnabled turns it
	// back on once the levels are parked.
	sliceReg(group, pwmCSROffset).Set(csr)
	sliceReg(group, pwmDIVOffset).Set(1 << 4) // divider 1.0 (8.4 fixed point)
	sliceReg(group, pwmTOPOffset).Set(uint32(top))
	sliceReg(group, pwmCTROffset).Set(0)
	sliceReg(group, pwmCCOffset).Set(0)

	return nil
}

// SetEnabled starts or stops the slice counter
func (d *RPWaveformDriver) SetEnabled(group uint8, enabled bool) {
	if group >= numPWMSlices {
		return
	}

	csr := sliceReg(group, pwmCSROffset)
	if enabled {
		csr.SetBits(csrEnable)
	} else {
		csr.ClearBits(csrEnable)
	}
}

// SetLevel sets the pin's compare value. Channel A lives in the low 16
// bits of the CC register, channel B in the high 16.
func (d *RPWaveformDriver) SetLevel(pin core.TonePin, level uint16) {
	if pin > maxGPIOPin {
		return
	}

	group := uint8((pin >> 1) & 0x7)
	cc := sliceReg(group, pwmCCOffset)

	if pin&1 == 0 {
		cc.Set((cc.Get() & 0xFFFF0000) | uint32(level))
	} else {
		cc.Set((cc.Get() & 0x0000FFFF) | (uint32(level) << 16))
	}
}

// ResetCounter zeroes the slice counter so both channels restart the
// carrier period together.
func (d *RPWaveformDriver) ResetCounter(group uint8) {
	if group >= numPWMSlices {
		return
	}
	sliceReg(group, pwmCTROffset).Set(0)
}
