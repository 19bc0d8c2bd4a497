package discord

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

// byteReader hands out one byte per Read to exercise partial reads.
type byteReader struct {
	data []byte
}

func (r *byteReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	p[0] = r.data[0]
	r.data = r.data[1:]
	return 1, nil
}

func mustEncode(t *testing.T, op Opcode, payload []byte) []byte {
	t.Helper()
	frame, err := EncodeFrame(op, payload)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	return frame
}

func TestEncodeFrame_Layout(t *testing.T) {
	payload := []byte(`{"v":1,"client_id":"445053620698742804"}`)
	frame := mustEncode(t, OpHandshake, payload)

	if len(frame) != frameHeaderSize+len(payload) {
		t.Fatalf("len = %d, want %d", len(frame), frameHeaderSize+len(payload))
	}
	if op := binary.LittleEndian.Uint32(frame[0:4]); Opcode(op) != OpHandshake {
		t.Errorf("opcode = %d, want %d", op, OpHandshake)
	}
	if n := binary.LittleEndian.Uint32(frame[4:8]); n != uint32(len(payload)) {
		t.Errorf("length = %d, want %d", n, len(payload))
	}
	if !bytes.Equal(frame[8:], payload) {
		t.Errorf("payload = %q, want %q", frame[8:], payload)
	}
}

func TestEncodeFrame_Limits(t *testing.T) {
	if _, err := EncodeFrame(OpFrame, make([]byte, MaxPayloadSize)); err != nil {
		t.Errorf("payload at the limit should encode: %v", err)
	}
	if _, err := EncodeFrame(OpFrame, make([]byte, MaxPayloadSize+1)); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("err = %v, want ErrPayloadTooLarge", err)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		op      Opcode
		payload []byte
	}{
		{"handshake", OpHandshake, []byte(`{"v":1}`)},
		{"frame", OpFrame, []byte(`{"cmd":"SET_ACTIVITY","args":{}}`)},
		{"close", OpClose, []byte(`{"code":4000,"message":"bye"}`)},
		{"ping", OpPing, nil},
		{"pong", OpPong, []byte(`{}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteFrame(&buf, tt.op, tt.payload); err != nil {
				t.Fatalf("WriteFrame: %v", err)
			}

			op, payload, err := DecodeFrame(&byteReader{data: buf.Bytes()})
			if err != nil {
				t.Fatalf("DecodeFrame: %v", err)
			}
			if op != tt.op {
				t.Errorf("opcode = %d, want %d", op, tt.op)
			}
			if !bytes.Equal(payload, tt.payload) {
				t.Errorf("payload = %q, want %q", payload, tt.payload)
			}
		})
	}
}

func TestDecodeFrame_Sequential(t *testing.T) {
	var buf bytes.Buffer
	for _, p := range []string{"one", "two", "three"} {
		if err := WriteFrame(&buf, OpFrame, []byte(p)); err != nil {
			t.Fatal(err)
		}
	}

	for _, want := range []string{"one", "two", "three"} {
		_, got, err := DecodeFrame(&buf)
		if err != nil {
			t.Fatalf("DecodeFrame: %v", err)
		}
		if string(got) != want {
			t.Errorf("payload = %q, want %q", got, want)
		}
	}
	if _, _, err := DecodeFrame(&buf); !errors.Is(err, io.EOF) {
		t.Errorf("err = %v, want EOF after the last frame", err)
	}
}

func TestDecodeFrame_Errors(t *testing.T) {
	oversized := make([]byte, frameHeaderSize)
	binary.LittleEndian.PutUint32(oversized[0:4], uint32(OpFrame))
	binary.LittleEndian.PutUint32(oversized[4:8], MaxPayloadSize+1)

	truncated := mustEncode(t, OpFrame, []byte("hello world"))
	truncated = truncated[:len(truncated)-3]

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"short header", []byte{1, 0, 0}, io.ErrUnexpectedEOF},
		{"oversized", oversized, ErrPayloadTooLarge},
		{"short payload", truncated, io.ErrUnexpectedEOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := DecodeFrame(bytes.NewReader(tt.data)); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
