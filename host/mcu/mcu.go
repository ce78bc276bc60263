// Package mcu drives a tone device from the host: it retrieves the
// data dictionary, resolves command names to wire IDs, and wraps the
// tone commands in a typed API.
package mcu

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"tonegen/host/serial"
	"tonegen/protocol"
)

// TimeUnit selects the timebase of a tone duration
type TimeUnit uint8

const (
	TimeMS TimeUnit = 0
	TimeUS TimeUnit = 1
)

// MCU is a connection to a tone device
type MCU struct {
	transport *protocol.HostTransport
	port      serial.Port

	dictionary     *Dictionary
	dictionaryData []byte

	connected bool
}

// Dictionary is the parsed device data dictionary
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]string         `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`
}

// ToneState is the decoded tone_state response
type ToneState struct {
	OID     uint8
	Active  bool
	Repeats uint32
}

// NewMCU creates a new MCU instance (not yet connected)
func NewMCU() *MCU {
	return &MCU{}
}

// Connect connects to a device via serial port
func (m *MCU) Connect(device string) error {
	return m.ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig connects with a custom serial config
func (m *MCU) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}

	m.port = port
	m.transport = protocol.NewHostTransport(port)
	m.connected = true

	// Give the device time to initialize if it just powered on.
	time.Sleep(100 * time.Millisecond)

	return nil
}

// Close closes the connection to the device
func (m *MCU) Close() error {
	if m.transport != nil {
		if err := m.transport.Close(); err != nil {
			return err
		}
	}
	m.connected = false
	return nil
}

// RetrieveDictionary fetches the complete dictionary in chunks via the
// identify command.
func (m *MCU) RetrieveDictionary() error {
	if !m.connected {
		return fmt.Errorf("not connected to device")
	}

	var dictBuffer bytes.Buffer
	offset := uint32(0)
	chunkSize := uint8(40)
	maxIterations := 1000 // safety limit

	for i := 0; i < maxIterations; i++ {
		chunk, err := m.sendIdentify(offset, chunkSize)
		if err != nil {
			return fmt.Errorf("failed to retrieve dictionary chunk at offset %d: %w", offset, err)
		}

		if len(chunk) == 0 {
			break
		}

		dictBuffer.Write(chunk)
		offset += uint32(len(chunk))

		if len(chunk) < int(chunkSize) {
			break
		}
	}

	raw := dictBuffer.Bytes()

	// The device serves the dictionary as a zlib stream.
	if len(raw) >= 2 && raw[0] == 0x78 {
		r, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return fmt.Errorf("failed to open dictionary stream: %w", err)
		}
		inflated, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			return fmt.Errorf("failed to inflate dictionary: %w", err)
		}
		raw = inflated
	}

	m.dictionaryData = raw

	if err := m.parseDictionary(); err != nil {
		return fmt.Errorf("failed to parse dictionary: %w", err)
	}

	return nil
}

// sendIdentify requests one dictionary chunk. The identify command is
// bootstrap: its wire IDs (identify=1, identify_response=0) are fixed,
// since the dictionary that names them is what it retrieves.
func (m *MCU) sendIdentify(offset uint32, count uint8) ([]byte, error) {
	err := m.transport.SendCommand(1, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQUint(output, uint32(count))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send identify command: %w", err)
	}

	resp, err := m.transport.ReceiveResponse(1 * time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to receive identify response: %w", err)
	}

	payload := resp.Payload

	cmdID, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response command ID: %w", err)
	}
	if cmdID != 0 {
		return nil, fmt.Errorf("unexpected response command ID: %d (expected 0)", cmdID)
	}

	respOffset, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response offset: %w", err)
	}
	if respOffset != offset {
		return nil, fmt.Errorf("offset mismatch: expected %d, got %d", offset, respOffset)
	}

	data, err := protocol.DecodeVLQBytes(&payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response data: %w", err)
	}

	return data, nil
}

// parseDictionary parses the dictionary JSON
func (m *MCU) parseDictionary() error {
	dict := &Dictionary{}
	if err := json.Unmarshal(m.dictionaryData, dict); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	m.dictionary = dict
	return nil
}

// lookupMessage resolves a message name against a dictionary map. The
// map keys are full format strings ("start_tone oid=%c ..."), so the
// match is on the name prefix.
func lookupMessage(messages map[string]int, name string) (int, bool) {
	if id, ok := messages[name]; ok {
		return id, true
	}
	prefix := name + " "
	for format, id := range messages {
		if strings.HasPrefix(format, prefix) {
			return id, true
		}
	}
	return 0, false
}

// GetDictionary returns the parsed dictionary
func (m *MCU) GetDictionary() *Dictionary {
	return m.dictionary
}

// GetDictionaryRaw returns the raw dictionary data
func (m *MCU) GetDictionaryRaw() []byte {
	return m.dictionaryData
}

// PrintDictionary prints a summary of the dictionary
func (m *MCU) PrintDictionary() {
	if m.dictionary == nil {
		fmt.Println("No dictionary loaded")
		return
	}

	fmt.Println("\n=== Device Dictionary ===")
	fmt.Printf("Version: %s\n", m.dictionary.Version)
	fmt.Printf("Build: %s\n", m.dictionary.BuildVersions)

	fmt.Println("\nConfig:")
	for k, v := range m.dictionary.Config {
		fmt.Printf("  %s = %s\n", k, v)
	}

	fmt.Printf("\nCommands (%d):\n", len(m.dictionary.Commands))
	for name, id := range m.dictionary.Commands {
		fmt.Printf("  [%d] %s\n", id, name)
	}

	fmt.Printf("\nResponses (%d):\n", len(m.dictionary.Responses))
	for name, id := range m.dictionary.Responses {
		fmt.Printf("  [%d] %s\n", id, name)
	}

	if len(m.dictionary.Enumerations) > 0 {
		fmt.Printf("\nEnumerations (%d):\n", len(m.dictionary.Enumerations))
		for name, values := range m.dictionary.Enumerations {
			fmt.Printf("  %s: %d values\n", name, len(values))
		}
	}

	fmt.Println("=========================")
}

// SendCommand sends a named command to the device
func (m *MCU) SendCommand(name string, args func(output protocol.OutputBuffer)) error {
	if !m.connected {
		return fmt.Errorf("not connected to device")
	}
	if m.dictionary == nil {
		return fmt.Errorf("dictionary not loaded")
	}

	cmdID, ok := lookupMessage(m.dictionary.Commands, name)
	if !ok {
		return fmt.Errorf("unknown command: %s", name)
	}

	return m.transport.SendCommand(uint16(cmdID), args)
}

// IsConnected returns whether the device is connected
func (m *MCU) IsConnected() bool {
	return m.connected
}

// ConfigureTone configures a tone output. With differential set, the
// device drives pinPlus and pinMinus in antiphase; both pins must share
// a PWM slice.
func (m *MCU) ConfigureTone(oid uint8, pinPlus, pinMinus uint32, differential bool) error {
	return m.SendCommand("config_tone_out", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(oid))
		protocol.EncodeVLQUint(output, pinPlus)
		protocol.EncodeVLQUint(output, pinMinus)
		if differential {
			protocol.EncodeVLQUint(output, 1)
		} else {
			protocol.EncodeVLQUint(output, 0)
		}
	})
}

// PlayTone starts a tone of freq Hz at volume percent (0-100, tenths
// resolution) for the given duration. Frequency travels as millihertz
// and volume as tenths, matching the integer wire format.
func (m *MCU) PlayTone(oid uint8, freq, volume float64, duration uint32, unit TimeUnit) error {
	if freq <= 0 {
		return fmt.Errorf("tone frequency must be positive, got %g", freq)
	}

	freqMilliHz := uint32(math.Round(freq * 1000))
	volumeTenths := uint32(math.Round(volume * 10))

	return m.SendCommand("start_tone", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(oid))
		protocol.EncodeVLQUint(output, freqMilliHz)
		protocol.EncodeVLQUint(output, volumeTenths)
		protocol.EncodeVLQUint(output, duration)
		protocol.EncodeVLQUint(output, uint32(unit))
	})
}

// StopTone silences a tone output
func (m *MCU) StopTone(oid uint8) error {
	return m.SendCommand("stop_tone", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(oid))
	})
}

// QueryTone asks the device for playback progress and decodes the
// tone_state response.
func (m *MCU) QueryTone(oid uint8) (*ToneState, error) {
	err := m.SendCommand("query_tone", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(oid))
	})
	if err != nil {
		return nil, err
	}

	stateID, ok := lookupMessage(m.dictionary.Responses, "tone_state")
	if !ok {
		return nil, fmt.Errorf("device dictionary has no tone_state response")
	}

	deadline := time.Now().Add(1 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := m.transport.ReceiveResponse(time.Until(deadline))
		if err != nil {
			return nil, fmt.Errorf("failed to receive tone_state: %w", err)
		}

		payload := resp.Payload
		cmdID, err := protocol.DecodeVLQUint(&payload)
		if err != nil || int(cmdID) != stateID {
			// Some other response; keep waiting for ours.
			continue
		}

		respOID, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode tone_state oid: %w", err)
		}
		active, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode tone_state active: %w", err)
		}
		repeats, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode tone_state repeats: %w", err)
		}

		return &ToneState{
			OID:     uint8(respOID),
			Active:  active != 0,
			Repeats: repeats,
		}, nil
	}

	return nil, fmt.Errorf("tone_state timeout")
}

// EmergencyStop silences every output on the device
func (m *MCU) EmergencyStop() error {
	return m.SendCommand("emergency_stop", nil)
}
