package core

import (
	"errors"
	"sync"

	"tonegen/protocol"
)

// Tone command layer. Maps host OIDs onto ToneOut engines and decodes
// the wire arguments; all playback semantics live in tone.go.

var (
	toneOuts   = make(map[uint8]*ToneOut)
	toneOutsMu sync.Mutex
)

var ErrToneOutNotConfigured = errors.New("tone output not configured for oid")

// InitToneCommands registers the tone commands and their constants.
func InitToneCommands() {
	RegisterCommand("config_tone_out", "oid=%c pin_plus=%u pin_minus=%u differential=%c", handleConfigToneOut)
	RegisterCommand("start_tone", "oid=%c freq_mhz=%u volume=%hu duration=%u time_unit=%c", handleStartTone)
	RegisterCommand("stop_tone", "oid=%c", handleStopTone)
	RegisterCommand("query_tone", "oid=%c", handleQueryTone)

	RegisterResponse("tone_state", "oid=%c active=%c repeats=%u")

	RegisterConstant("TONE_PWM_TOP", uint32(PWMTop))
	RegisterConstant("TONE_CARRIER_FREQ", uint32(CarrierFreqHz))
}

// handleConfigToneOut creates a tone output for an OID. A reconfigure
// of a live OID silences and releases the old output before the new one
// is built, so re-binding the same pin is legal; if the new
// configuration is rejected the OID is left unconfigured.
func handleConfigToneOut(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	pinPlus, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	pinMinus, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	differential, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	toneOutsMu.Lock()
	old := toneOuts[uint8(oid)]
	delete(toneOuts, uint8(oid))
	toneOutsMu.Unlock()

	if old != nil {
		old.Close()
	}

	var out *ToneOut
	if differential != 0 {
		out, err = NewDifferentialToneOut(TonePin(pinPlus), TonePin(pinMinus))
	} else {
		out, err = NewToneOut(TonePin(pinPlus))
	}
	if err != nil {
		return err
	}
	out.SetDebugID(uint8(oid))

	toneOutsMu.Lock()
	toneOuts[uint8(oid)] = out
	toneOutsMu.Unlock()

	return nil
}

// handleStartTone starts a tone on a configured output. Frequency
// arrives in millihertz so the host keeps fractional precision over the
// integer wire format; volume arrives in tenths of a percent.
func handleStartTone(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	freqMilliHz, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	volumeTenths, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	duration, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	timeUnit, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	out, err := lookupToneOut(uint8(oid))
	if err != nil {
		return err
	}

	err = out.StartTone(
		float64(freqMilliHz)/1000.0,
		float64(volumeTenths)/10.0,
		duration,
		TimeUnit(timeUnit),
	)
	if err != nil {
		return err
	}

	RecordToneEvent(EvtToneStart, uint8(oid), GetTime(), freqMilliHz, volumeTenths)
	return nil
}

// handleStopTone silences a configured output
func handleStopTone(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	out, err := lookupToneOut(uint8(oid))
	if err != nil {
		return err
	}

	out.StopTone()
	RecordToneEvent(EvtToneStop, uint8(oid), GetTime(), 0, 0)
	return nil
}

// handleQueryTone reports playback progress for a configured output
func handleQueryTone(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	out, err := lookupToneOut(uint8(oid))
	if err != nil {
		return err
	}

	active := out.Active()
	repeats := out.Repeats()

	SendResponse("tone_state", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, oid)
		if active {
			protocol.EncodeVLQUint(output, 1)
		} else {
			protocol.EncodeVLQUint(output, 0)
		}
		protocol.EncodeVLQUint(output, repeats)
	})

	return nil
}

func lookupToneOut(oid uint8) (*ToneOut, error) {
	toneOutsMu.Lock()
	out := toneOuts[oid]
	toneOutsMu.Unlock()

	if out == nil {
		return nil, ErrToneOutNotConfigured
	}
	return out, nil
}

// StopAllTones silences every configured output. Used by
// emergency_stop and safe to call repeatedly.
func StopAllTones() {
	toneOutsMu.Lock()
	outs := make([]*ToneOut, 0, len(toneOuts))
	for _, out := range toneOuts {
		outs = append(outs, out)
	}
	toneOutsMu.Unlock()

	for _, out := range outs {
		out.StopTone()
	}
}
