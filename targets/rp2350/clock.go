//go:build rp2350

package main

import (
	"runtime/volatile"
	"unsafe"

	"tonegen/core"
)

// RP2350 TIMER0 peripheral. The timer moved to 0x400B0000 but keeps
// the RP2040 register layout: a 64-bit microsecond counter with raw
// (unlatched) read registers.
const (
	timerBase     = 0x400B0000
	timerTimeRawH = timerBase + 0x24
	timerTimeRawL = timerBase + 0x28
)

var (
	timerRawH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTimeRawH)))
	timerRawL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTimeRawL)))
)

// InitClock registers the chip identity constants. The TinyGo runtime
// has already started the tick generator by the time main runs.
func InitClock() {
	core.RegisterConstant("MCU", "rp2350")
	core.RegisterConstant("CLOCK_FREQ", uint32(core.ClockFreq))
}

// GetHardwareTime returns the low 32 bits of the microsecond counter
func GetHardwareTime() uint32 {
	return timerRawL.Get()
}

// GetHardwareUptime reads the full 64-bit hardware timer
func GetHardwareUptime() uint64 {
	// Read high, low, high again to detect a rollover mid-read.
	for {
		high1 := timerRawH.Get()
		low := timerRawL.Get()
		high2 := timerRawH.Get()

		if high1 == high2 {
			return (uint64(high1) << 32) | uint64(low)
		}
	}
}

// UpdateSystemTime feeds the hardware time into the timer core
func UpdateSystemTime() {
	core.SetTime(GetHardwareTime())
}
