// Package uart reports switch telemetry over a serial line so external
// collaborators (mesh radio, debug host) can follow the output state.
package uart

import "encoding/binary"

// Wire framing: start byte, little-endian payload size, opcode, payload,
// CRC16 over size+opcode+payload. Start and escape bytes inside the frame
// are escaped by XOR-ing with the flip mask.
const (
	startByte  = 0x7E
	escapeByte = 0x5C
	flipMask   = 0x40
)

// Telemetry opcodes.
const (
	OpSwitchState uint8 = 1
	OpOverride    uint8 = 2
	OpPresence    uint8 = 3
)

// crc16 is CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF).
func crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// encodeFrame builds a complete escaped frame for the given opcode and
// payload.
func encodeFrame(opcode uint8, payload []byte) []byte {
	body := make([]byte, 0, 3+len(payload)+2)
	body = binary.LittleEndian.AppendUint16(body, uint16(len(payload)))
	body = append(body, opcode)
	body = append(body, payload...)
	body = binary.LittleEndian.AppendUint16(body, crc16(body))

	out := make([]byte, 0, len(body)+4)
	out = append(out, startByte)
	for _, b := range body {
		if b == startByte || b == escapeByte {
			out = append(out, escapeByte, b^flipMask)
			continue
		}
		out = append(out, b)
	}
	return out
}
