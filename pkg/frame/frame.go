// Package frame implements the MCUmgr console framing used to carry SMP
// messages over a line oriented serial link. A frame is the raw message
// prefixed with its 16 bit length, protected by a CRC16/XMODEM, base64
// encoded and split over marker prefixed lines.
package frame

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/mcutools/gosmp/internal/crc"
)

// Frame start and continuation line markers
const (
	MarkerStart1 = 0x06
	MarkerStart2 = 0x09
	MarkerCont1  = 0x04
	MarkerCont2  = 0x14
)

// MaxLineLength bounds a single line on the wire, marker and newline
// included
const MaxLineLength = 128

// MaxFrameLength bounds the raw SMP message carried by one frame,
// set by the 16 bit length prefix
const MaxFrameLength = 0xFFFF

// Base64 payload bytes per line. Lines carry 2 marker bytes and a
// trailing newline, the rest is base64 text kept 4-aligned so that
// partial reassembly stays decodable.
const lineChunk = ((MaxLineLength - 3) / 4) * 4

// Encode wraps a raw SMP message into console frame lines, ready to be
// written to the port in order.
func Encode(msg []byte) ([][]byte, error) {
	if len(msg) > MaxFrameLength {
		return nil, fmt.Errorf("message too large for a frame : %v bytes", len(msg))
	}
	body := make([]byte, 0, len(msg)+4)
	body = binary.BigEndian.AppendUint16(body, uint16(len(msg)))
	body = append(body, msg...)
	body = binary.BigEndian.AppendUint16(body, uint16(crc.Checksum(body)))

	text := base64.StdEncoding.EncodeToString(body)
	lines := make([][]byte, 0, len(text)/lineChunk+1)
	for off := 0; off < len(text); off += lineChunk {
		end := off + lineChunk
		if end > len(text) {
			end = len(text)
		}
		line := make([]byte, 0, end-off+3)
		if off == 0 {
			line = append(line, MarkerStart1, MarkerStart2)
		} else {
			line = append(line, MarkerCont1, MarkerCont2)
		}
		line = append(line, text[off:end]...)
		line = append(line, '\n')
		lines = append(lines, line)
	}
	return lines, nil
}

// EncodedSize returns the total number of bytes a message of the given
// raw length occupies on the wire once framed
func EncodedSize(msgLen int) int {
	b64 := base64.StdEncoding.EncodedLen(msgLen + 4)
	nLines := (b64 + lineChunk - 1) / lineChunk
	if nLines == 0 {
		nLines = 1
	}
	return b64 + nLines*3
}
