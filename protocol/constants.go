// Package protocol
// Author: momentics <momentics@gmail.com>
//
// WebSocket wire protocol constants

package protocol

// Opcode identifies the purpose of a frame.
type Opcode byte

const (
	// Data opcodes
	OpcodeContinuation Opcode = 0x0
	OpcodeText         Opcode = 0x1
	OpcodeBinary       Opcode = 0x2

	// Control opcodes (>=0x8)
	OpcodeClose Opcode = 0x8
	OpcodePing  Opcode = 0x9
	OpcodePong  Opcode = 0xA
)

const (
	// Frame limit settings
	MaxControlPayloadLen = 125
	MaxFrameHeaderLen    = 14 // for extended payloads with masking

	// MaxFramePayload caps a single decoded payload.
	MaxFramePayload = 16 << 20

	// Bit masks
	FinBit     = 0x80
	MaskBit    = 0x80
	opcodeBits = 0x0F
	lenBits    = 0x7F

	// Length markers in the 7-bit field.
	len16Marker = 126
	len64Marker = 127
)

// Close codes
const (
	CloseNormalClosure     = 1000
	CloseGoingAway         = 1001
	CloseProtocolError     = 1002
	CloseInvalidPayload    = 1007
	CloseMessageTooBig     = 1009
	CloseInternalServerErr = 1011
)

// IsControl reports whether op is a control opcode.
func (op Opcode) IsControl() bool {
	return op&0x8 != 0
}

func (op Opcode) String() string {
	switch op {
	case OpcodeContinuation:
		return "continuation"
	case OpcodeText:
		return "text"
	case OpcodeBinary:
		return "binary"
	case OpcodeClose:
		return "close"
	case OpcodePing:
		return "ping"
	case OpcodePong:
		return "pong"
	default:
		return "reserved"
	}
}
