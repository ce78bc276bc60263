// Package protocol implements the framed serial protocol spoken between
// the tone device and the host: length/sequence header, VLQ-encoded
// payload, CRC-16 trailer and a sync byte. The device side lives in
// Transport, the host side in HostTransport.
package protocol

// Version is the protocol package version
const Version = "0.1.0"

const (
	MessageMax = 512 // output scratch buffer size, holds several frames

	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E

	// Sequence bytes run 0x10..0x1F: the destination nibble is fixed at
	// MessageDest, the low nibble counts frames.
	MessageSeqMask = 0x0F
	MessageDest    = 0x10
)
