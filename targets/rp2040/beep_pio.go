//go:build rp2040

package main

import (
	"errors"
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"tonegen/core"
	"tonegen/protocol"
)

// PIO beeper: a fixed-volume square-wave generator that runs entirely
// inside a PIO state machine, with no timer callbacks on the CPU. It
// complements the PWM tone outputs for status beeps that must keep
// sounding even when the scheduler is busy.
//
// FIFO protocol per beep: first word is the half-period in state
// machine cycles, second word is the number of half-periods to emit.
//
// buildBeepProgram creates the square-wave PIO program using AssemblerV0
func buildBeepProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),                      // 0: pull block (half period)
		asm.Mov(rp2pio.MovDestISR, rp2pio.MovSrcOSR).Encode(), // 1: mov isr, osr
		asm.Pull(false, true).Encode(),                      // 2: pull block (half-period count)
		asm.Out(rp2pio.OutDestX, 32).Encode(),               // 3: out x, 32
		// beep_loop:
		asm.Set(rp2pio.SetDestPins, 1).Encode(),               // 4: set pins, 1
		asm.Mov(rp2pio.MovDestY, rp2pio.MovSrcISR).Encode(),   // 5: mov y, isr
		asm.Jmp(6, rp2pio.JmpYNZeroDec).Encode(),              // 6: jmp y--, 6
		asm.Set(rp2pio.SetDestPins, 0).Encode(),               // 7: set pins, 0
		asm.Mov(rp2pio.MovDestY, rp2pio.MovSrcISR).Encode(),   // 8: mov y, isr
		asm.Jmp(9, rp2pio.JmpYNZeroDec).Encode(),              // 9: jmp y--, 9
		asm.Jmp(4, rp2pio.JmpXNZeroDec).Encode(),              // 10: jmp x--, 4
		// .wrap
	}
}

const beepPIOOrigin = 0 // load at offset 0 for correct jump addresses

// The clock divider slows the state machine to 1MHz so the delay loops
// count microseconds.
const beepClkDivInt = 125

// Each half-period spends this many instructions outside the delay loop.
const beepLoopOverheadUS = 3

// PIOBeeper drives one pin from a PIO state machine
type PIOBeeper struct {
	pio    *rp2pio.PIO
	sm     rp2pio.StateMachine
	pin    machine.Pin
	offset uint8
}

var (
	globalBeeper *PIOBeeper

	ErrBeepPeriodTooShort = errors.New("beep half period shorter than loop overhead")
)

// NewPIOBeeper claims a PIO0 state machine and binds it to the pin
func NewPIOBeeper(pin machine.Pin) (*PIOBeeper, error) {
	pioHW := rp2pio.PIO0
	sm := pioHW.StateMachine(1)

	b := &PIOBeeper{
		pio: pioHW,
		sm:  sm,
		pin: pin,
	}

	b.sm.TryClaim()

	program := buildBeepProgram()
	offset, err := b.pio.AddProgram(program, beepPIOOrigin)
	if err != nil {
		return nil, err
	}
	b.offset = offset

	b.pin.Configure(machine.PinConfig{Mode: b.pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(b.pin, 1)
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	cfg.SetClkDivIntFrac(beepClkDivInt, 0)

	b.sm.Init(offset, cfg)

	b.sm.SetPindirsConsecutive(b.pin, 1, true)
	b.sm.SetPinsConsecutive(b.pin, 1, false)

	b.sm.SetEnabled(true)

	return b, nil
}

// Beep queues one beep of the given half-period and length
func (b *PIOBeeper) Beep(halfPeriodUS, cycles uint32) error {
	if halfPeriodUS <= beepLoopOverheadUS {
		return ErrBeepPeriodTooShort
	}

	b.put(halfPeriodUS - beepLoopOverheadUS)
	b.put(cycles)
	return nil
}

// Stop aborts the current beep and leaves the pin low
func (b *PIOBeeper) Stop() {
	b.sm.SetEnabled(false)
	b.sm.ClearFIFOs()
	b.sm.Restart()
	b.sm.SetPinsConsecutive(b.pin, 1, false)
	b.sm.SetEnabled(true)
}

func (b *PIOBeeper) put(word uint32) {
	for b.sm.IsTxFIFOFull() {
		// FIFO holds 4 words; the wait is bounded by the beep length.
	}
	b.sm.TxPut(word)
}

// InitBeepCommands registers the PIO beeper commands
func InitBeepCommands() {
	core.RegisterCommand("pio_beep", "pin=%u half_period_us=%u cycles=%u", handlePIOBeep)
	core.RegisterCommand("pio_beep_stop", "", handlePIOBeepStop)
}

// handlePIOBeep starts a beep, creating the beeper on first use. The
// pin is fixed by the first call; later calls ignore a changed pin.
func handlePIOBeep(data *[]byte) error {
	pin, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	halfPeriodUS, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	cycles, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	if globalBeeper == nil {
		globalBeeper, err = NewPIOBeeper(machine.Pin(pin))
		if err != nil {
			globalBeeper = nil
			return err
		}
	}

	return globalBeeper.Beep(halfPeriodUS, cycles)
}

// handlePIOBeepStop silences the beeper
func handlePIOBeepStop(data *[]byte) error {
	if globalBeeper != nil {
		globalBeeper.Stop()
	}
	return nil
}
