package protocol

import (
	"bytes"
	"testing"
)

func TestVLQIntRoundTrip(t *testing.T) {
	values := []int32{
		0, 1, -1, 31, 32, -32, -33, 95, 96,
		127, 128, 300, -300, 12287, 12288, -4096, -4097,
		1000000, -1000000, 1 << 28, -(1 << 28),
		2147483647, -2147483648,
	}

	for _, v := range values {
		output := NewScratchOutput()
		EncodeVLQInt(output, v)
		data := output.Result()

		decoded, err := DecodeVLQInt(&data)
		if err != nil {
			t.Errorf("decode %d failed: %v", v, err)
			continue
		}
		if decoded != v {
			t.Errorf("round trip %d: got %d", v, decoded)
		}
		if len(data) != 0 {
			t.Errorf("value %d: %d trailing bytes not consumed", v, len(data))
		}
	}
}

func TestVLQUintRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 95, 96, 1000, 62500, 1000000, 0xFFFFFFFF}

	for _, v := range values {
		output := NewScratchOutput()
		EncodeVLQUint(output, v)
		data := output.Result()

		decoded, err := DecodeVLQUint(&data)
		if err != nil {
			t.Errorf("decode %d failed: %v", v, err)
			continue
		}
		if decoded != v {
			t.Errorf("round trip %d: got %d", v, decoded)
		}
	}
}

// Encoded width steps at the documented range boundaries. The wire cost
// of a command depends on these staying put.
func TestVLQEncodedWidth(t *testing.T) {
	testCases := []struct {
		value int32
		width int
	}{
		{0, 1},
		{95, 1},
		{96, 2},
		{-32, 1},
		{-33, 2},
		{12287, 2},
		{12288, 3},
		{-4096, 2},
		{-4097, 3},
	}

	for _, tc := range testCases {
		if got := len(EncodeVLQ(tc.value)); got != tc.width {
			t.Errorf("EncodeVLQ(%d): expected %d bytes, got %d", tc.value, tc.width, got)
		}
	}
}

func TestDecodeVLQConsumed(t *testing.T) {
	encoded := append(EncodeVLQ(300), 0xAA, 0xBB)

	val, consumed, err := DecodeVLQ(encoded)
	if err != nil {
		t.Fatalf("DecodeVLQ failed: %v", err)
	}
	if val != 300 {
		t.Errorf("expected 300, got %d", val)
	}
	if consumed != 2 {
		t.Errorf("expected 2 bytes consumed, got %d", consumed)
	}
	if len(encoded) != 4 {
		t.Error("DecodeVLQ must not modify its input slice")
	}
}

func TestVLQDecodeErrors(t *testing.T) {
	empty := []byte{}
	if _, err := DecodeVLQInt(&empty); err != ErrBufferTooSmall {
		t.Errorf("empty input: expected ErrBufferTooSmall, got %v", err)
	}

	// A continuation byte with nothing after it.
	truncated := []byte{0x81}
	if _, err := DecodeVLQInt(&truncated); err != ErrBufferTooSmall {
		t.Errorf("truncated input: expected ErrBufferTooSmall, got %v", err)
	}
}

func TestVLQBytesRoundTrip(t *testing.T) {
	payload := []byte{0x01, 0x7E, 0x80, 0xFF}

	output := NewScratchOutput()
	EncodeVLQBytes(output, payload)
	data := output.Result()

	decoded, err := DecodeVLQBytes(&data)
	if err != nil {
		t.Fatalf("DecodeVLQBytes failed: %v", err)
	}
	if !bytes.Equal(decoded, payload) {
		t.Errorf("expected %v, got %v", payload, decoded)
	}

	// A length prefix longer than the remaining data is an error.
	short := []byte{5, 1, 2}
	if _, err := DecodeVLQBytes(&short); err != ErrBufferTooSmall {
		t.Errorf("short payload: expected ErrBufferTooSmall, got %v", err)
	}
}

func TestVLQStringRoundTrip(t *testing.T) {
	output := NewScratchOutput()
	EncodeVLQString(output, "tone_state")
	data := output.Result()

	decoded, err := DecodeVLQString(&data)
	if err != nil {
		t.Fatalf("DecodeVLQString failed: %v", err)
	}
	if decoded != "tone_state" {
		t.Errorf("expected \"tone_state\", got %q", decoded)
	}
}
