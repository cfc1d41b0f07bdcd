// Package protocol
// Author: momentics <momentics@gmail.com>
//
// WebSocket frame encoding/decoding and masking logic.
//
// Decoding reads exactly the bytes a frame needs from a stream, looping until
// each section is complete. Encoding always emits a single FIN frame using the
// shortest length form.

package protocol

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// WSFrame represents a decoded WebSocket frame.
type WSFrame struct {
	IsFinal    bool   // FIN bit
	Opcode     Opcode // Operation code
	Masked     bool   // Whether the frame was masked on the wire
	PayloadLen uint64 // Payload length as carried in the header
	MaskKey    [4]byte
	Payload    []byte // Unmasked payload, owned by the caller
}

// Text returns the payload as a string, failing if it is not valid UTF-8.
func (f *WSFrame) Text() (string, error) {
	if !utf8.Valid(f.Payload) {
		return "", ErrInvalidUTF8
	}
	return string(f.Payload), nil
}

// DecodeFrame parses one WebSocket frame from stream r.
//
// A stream that ends before the first header byte yields io.EOF. A stream that
// ends anywhere inside the frame yields an error wrapping ErrTruncatedStream.
func DecodeFrame(r io.Reader) (*WSFrame, error) {
	var hdr [2]byte
	if n, err := io.ReadFull(r, hdr[:]); err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, truncated("header", err)
	}

	f := &WSFrame{
		IsFinal: hdr[0]&FinBit != 0,
		Opcode:  Opcode(hdr[0] & opcodeBits),
		Masked:  hdr[1]&MaskBit != 0,
	}
	length := uint64(hdr[1] & lenBits)

	switch length {
	case len16Marker:
		var ext [2]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return nil, truncated("16-bit length", err)
		}
		length = uint64(binary.BigEndian.Uint16(ext[:]))
	case len64Marker:
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return nil, truncated("64-bit length", err)
		}
		length = binary.BigEndian.Uint64(ext[:])
	}
	if length > MaxFramePayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}
	f.PayloadLen = length

	if f.Masked {
		if _, err := io.ReadFull(r, f.MaskKey[:]); err != nil {
			return nil, truncated("mask key", err)
		}
	}

	f.Payload = make([]byte, length)
	if _, err := io.ReadFull(r, f.Payload); err != nil {
		return nil, truncated("payload", err)
	}
	if f.Masked {
		maskBytes(f.Payload, f.MaskKey)
	}
	return f, nil
}

// EncodeFrame serializes a single FIN frame. When masked is set a fresh random
// masking key is drawn; the caller's payload is never modified.
func EncodeFrame(opcode Opcode, payload []byte, masked bool) []byte {
	if !masked {
		return AppendFrame(nil, opcode, payload, nil)
	}
	var key [4]byte
	if _, err := rand.Read(key[:]); err != nil {
		// crypto/rand does not fail on supported platforms.
		panic(fmt.Sprintf("protocol: mask key: %v", err))
	}
	return AppendFrame(nil, opcode, payload, &key)
}

// EncodeFrameWithKey serializes a masked FIN frame using an explicit key.
func EncodeFrameWithKey(opcode Opcode, payload []byte, key [4]byte) []byte {
	return AppendFrame(nil, opcode, payload, &key)
}

// ClosePayload returns the two-byte status code body of a close frame.
func ClosePayload(code uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, code)
}

// AppendFrame appends the encoded frame to dst and returns the extended slice.
// A nil key produces an unmasked frame. A nil dst is sized for the whole frame.
func AppendFrame(dst []byte, opcode Opcode, payload []byte, key *[4]byte) []byte {
	if dst == nil {
		dst = make([]byte, 0, MaxFrameHeaderLen+len(payload))
	}
	b0 := byte(FinBit) | byte(opcode)&opcodeBits
	var maskBit byte
	if key != nil {
		maskBit = MaskBit
	}

	plen := len(payload)
	switch {
	case plen < len16Marker:
		dst = append(dst, b0, byte(plen)|maskBit)
	case plen <= 0xFFFF:
		dst = append(dst, b0, len16Marker|maskBit)
		dst = binary.BigEndian.AppendUint16(dst, uint16(plen))
	default:
		dst = append(dst, b0, len64Marker|maskBit)
		dst = binary.BigEndian.AppendUint64(dst, uint64(plen))
	}

	if key == nil {
		return append(dst, payload...)
	}
	dst = append(dst, key[:]...)
	start := len(dst)
	dst = append(dst, payload...)
	maskBytes(dst[start:], *key)
	return dst
}

// WriteFrame encodes a frame and writes it to w in one call.
func WriteFrame(w io.Writer, opcode Opcode, payload []byte, masked bool) error {
	_, err := w.Write(EncodeFrame(opcode, payload, masked))
	return err
}

// HeaderLen reports how many header bytes a frame with the given payload
// length and masking needs.
func HeaderLen(payloadLen int, masked bool) int {
	n := 2
	switch {
	case payloadLen >= 0x10000:
		n += 8
	case payloadLen >= len16Marker:
		n += 2
	}
	if masked {
		n += 4
	}
	return n
}

// maskBytes XORs buf in place against key, cycling every 4 bytes.
// Masking and unmasking are the same operation.
func maskBytes(buf []byte, key [4]byte) {
	for i := range buf {
		buf[i] ^= key[i&3]
	}
}

func truncated(stage string, err error) error {
	return fmt.Errorf("%w: reading %s: %w", ErrTruncatedStream, stage, err)
}
