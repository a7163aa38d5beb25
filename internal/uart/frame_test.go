package uart

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// unescapeFrame reverses the wire escaping and strips the start byte.
func unescapeFrame(t *testing.T, frame []byte) []byte {
	t.Helper()
	if len(frame) == 0 || frame[0] != startByte {
		t.Fatalf("frame does not begin with start byte: % x", frame)
	}
	var out []byte
	for i := 1; i < len(frame); i++ {
		b := frame[i]
		if b == startByte {
			t.Fatalf("unescaped start byte inside frame at %d", i)
		}
		if b == escapeByte {
			i++
			if i >= len(frame) {
				t.Fatal("escape byte at end of frame")
			}
			b = frame[i] ^ flipMask
		}
		out = append(out, b)
	}
	return out
}

func TestCRC16KnownValue(t *testing.T) {
	// CRC-16/CCITT-FALSE check value.
	if got := crc16([]byte("123456789")); got != 0x29B1 {
		t.Errorf("crc16 = %#04x, want 0x29b1", got)
	}
}

func TestEncodeFrameRoundTrip(t *testing.T) {
	payload := []byte{0x50, 0x01, 0x64}
	frame := encodeFrame(OpSwitchState, payload)

	body := unescapeFrame(t, frame)
	if len(body) != 2+1+len(payload)+2 {
		t.Fatalf("body length = %d", len(body))
	}
	if size := binary.LittleEndian.Uint16(body[:2]); size != uint16(len(payload)) {
		t.Errorf("size field = %d, want %d", size, len(payload))
	}
	if body[2] != OpSwitchState {
		t.Errorf("opcode = %d, want %d", body[2], OpSwitchState)
	}
	if !bytes.Equal(body[3:3+len(payload)], payload) {
		t.Errorf("payload = % x", body[3:3+len(payload)])
	}
	want := crc16(body[:len(body)-2])
	if got := binary.LittleEndian.Uint16(body[len(body)-2:]); got != want {
		t.Errorf("crc = %#04x, want %#04x", got, want)
	}
}

func TestEncodeFrameEscapesReservedBytes(t *testing.T) {
	frame := encodeFrame(OpPresence, []byte{startByte, escapeByte, 0x00})

	for i, b := range frame[1:] {
		if b == startByte {
			t.Fatalf("raw start byte leaked at offset %d: % x", i+1, frame)
		}
	}
	body := unescapeFrame(t, frame)
	if !bytes.Equal(body[3:6], []byte{startByte, escapeByte, 0x00}) {
		t.Errorf("payload after unescape = % x", body[3:6])
	}
}

func TestEncodeFrameEmptyPayload(t *testing.T) {
	frame := encodeFrame(OpOverride, nil)
	body := unescapeFrame(t, frame)
	if size := binary.LittleEndian.Uint16(body[:2]); size != 0 {
		t.Errorf("size field = %d, want 0", size)
	}
	want := crc16(body[:3])
	if got := binary.LittleEndian.Uint16(body[3:]); got != want {
		t.Errorf("crc = %#04x, want %#04x", got, want)
	}
}
