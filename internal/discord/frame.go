package discord

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ///////////////////////////////////////////////
// Wire Format
// ///////////////////////////////////////////////

// Opcode identifies the kind of an IPC frame.
type Opcode uint32

const (
	OpHandshake Opcode = 0
	OpFrame     Opcode = 1
	OpClose     Opcode = 2
	OpPing      Opcode = 3
	OpPong      Opcode = 4
)

// frameHeader precedes every payload. Both fields are little endian.
type frameHeader struct {
	Op     Opcode
	Length uint32
}

const (
	// frameHeaderSize is the encoded size of frameHeader.
	frameHeaderSize = 8

	// MaxPayloadSize caps a single frame payload at 1 MiB.
	MaxPayloadSize = 1 << 20

	// maxIPCSlots is the number of numbered sockets Discord may listen on.
	maxIPCSlots = 10
)

// ErrPayloadTooLarge is returned for frames over [MaxPayloadSize].
var ErrPayloadTooLarge = errors.New("payload too large")

// ErrIPCNotAvailable is returned when no Discord IPC socket can be reached.
var ErrIPCNotAvailable = errors.New("discord IPC not available")

// ///////////////////////////////////////////////
// Encoding
// ///////////////////////////////////////////////

// EncodeFrame returns opcode and payload framed for the IPC socket.
func EncodeFrame(opcode Opcode, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}
	var buf bytes.Buffer
	buf.Grow(frameHeaderSize + len(payload))
	// Writes to a bytes.Buffer cannot fail.
	_ = binary.Write(&buf, binary.LittleEndian, frameHeader{Op: opcode, Length: uint32(len(payload))})
	buf.Write(payload)
	return buf.Bytes(), nil
}

// WriteFrame encodes a frame and writes it to w in a single call, so frames
// from concurrent writers never interleave on a shared socket.
func WriteFrame(w io.Writer, opcode Opcode, payload []byte) error {
	frame, err := EncodeFrame(opcode, payload)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// ///////////////////////////////////////////////
// Decoding
// ///////////////////////////////////////////////

// DecodeFrame reads one frame from r, blocking until it is complete.
func DecodeFrame(r io.Reader) (Opcode, []byte, error) {
	var h frameHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return 0, nil, fmt.Errorf("reading frame header: %w", err)
	}
	if h.Length > MaxPayloadSize {
		return 0, nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, h.Length, MaxPayloadSize)
	}

	payload := make([]byte, h.Length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("reading frame payload: %w", err)
	}
	return h.Op, payload, nil
}
