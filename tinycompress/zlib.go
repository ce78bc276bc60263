// Package tinycompress produces zlib streams using stored DEFLATE
// blocks only. The data dictionary is served to the host in zlib
// format; a real DEFLATE encoder costs more flash and RAM than the
// few hundred bytes it would save, so the firmware wraps the raw
// bytes in stored blocks and lets standard inflaters read them.
package tinycompress

import (
	"errors"
	"hash/adler32"
)

var (
	ErrNotZlib     = errors.New("not a zlib stream")
	ErrCorrupt     = errors.New("corrupt stored-block stream")
	ErrBadChecksum = errors.New("adler32 mismatch")
)

// maxStoredBlock is the DEFLATE stored-block payload limit
const maxStoredBlock = 0xFFFF

// Deflate wraps input in a zlib stream of stored blocks. The result is
// valid input for any zlib inflater.
func Deflate(input []byte) []byte {
	blocks := len(input)/maxStoredBlock + 1
	out := make([]byte, 0, 2+len(input)+5*blocks+4)

	// CMF/FLG header: deflate, 32K window, default level.
	out = append(out, 0x78, 0x9C)

	remaining := input
	for {
		n := len(remaining)
		final := byte(1)
		if n > maxStoredBlock {
			n = maxStoredBlock
			final = 0
		}

		// Stored block: type 00, LEN and NLEN little endian.
		out = append(out, final,
			byte(n), byte(n>>8),
			byte(^n), byte(^n>>8))
		out = append(out, remaining[:n]...)

		remaining = remaining[n:]
		if final == 1 {
			break
		}
	}

	sum := adler32.Checksum(input)
	return append(out, byte(sum>>24), byte(sum>>16), byte(sum>>8), byte(sum))
}

// IsZlib reports whether data starts with a zlib header
func IsZlib(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x78
}

// Inflate decodes a stored-block zlib stream produced by Deflate. It
// does not handle compressed block types.
func Inflate(data []byte) ([]byte, error) {
	if !IsZlib(data) {
		return nil, ErrNotZlib
	}

	pos := 2
	var out []byte

	for {
		if pos+5 > len(data) {
			return nil, ErrCorrupt
		}

		header := data[pos]
		if (header>>1)&0x03 != 0 {
			return nil, ErrCorrupt
		}

		n := int(data[pos+1]) | int(data[pos+2])<<8
		nlen := int(data[pos+3]) | int(data[pos+4])<<8
		if n != ^nlen&0xFFFF {
			return nil, ErrCorrupt
		}
		pos += 5

		if pos+n > len(data) {
			return nil, ErrCorrupt
		}
		out = append(out, data[pos:pos+n]...)
		pos += n

		if header&0x01 != 0 {
			break
		}
	}

	if pos+4 > len(data) {
		return nil, ErrCorrupt
	}
	sum := uint32(data[pos])<<24 | uint32(data[pos+1])<<16 |
		uint32(data[pos+2])<<8 | uint32(data[pos+3])
	if sum != adler32.Checksum(out) {
		return nil, ErrBadChecksum
	}

	return out, nil
}
