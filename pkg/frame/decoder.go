package frame

import (
	"encoding/base64"
	"encoding/binary"
	"log/slog"

	"github.com/mcutools/gosmp/internal/crc"
)

// Upper bound on accumulated base64 text for one frame, derived from
// the maximum frame length
var maxText = base64.StdEncoding.EncodedLen(MaxFrameLength + 4)

// Decoder reassembles console frames from an arbitrary byte feed.
// Damaged input never desynchronizes it : unrecognized lines are
// ignored, bad base64 and CRC mismatches drop the current frame and
// the decoder resynchronizes on the next start marker.
type Decoder struct {
	logger  *slog.Logger
	line    []byte
	text    []byte
	inFrame bool
}

func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{logger: logger.With("service", "[FRAME]")}
}

// Feed consumes raw bytes read from the port and returns any complete,
// CRC verified raw SMP messages they finish.
func (d *Decoder) Feed(p []byte) [][]byte {
	var msgs [][]byte
	for _, b := range p {
		if b != '\n' {
			// Oversized garbage between frames, keep the head only
			if len(d.line) < MaxLineLength*2 {
				d.line = append(d.line, b)
			}
			continue
		}
		if msg := d.handleLine(d.line); msg != nil {
			msgs = append(msgs, msg)
		}
		d.line = d.line[:0]
	}
	return msgs
}

// Reset drops any partially assembled frame and buffered line bytes
func (d *Decoder) Reset() {
	d.line = d.line[:0]
	d.text = d.text[:0]
	d.inFrame = false
}

func (d *Decoder) drop(reason string, args ...any) {
	d.logger.Debug("dropped frame : "+reason, args...)
	d.text = d.text[:0]
	d.inFrame = false
}

func (d *Decoder) handleLine(line []byte) []byte {
	// Tolerate CRLF line endings from console transports
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	if len(line) < 2 {
		return nil
	}
	switch {
	case line[0] == MarkerStart1 && line[1] == MarkerStart2:
		// New frame, discards any unfinished previous one
		d.text = append(d.text[:0], line[2:]...)
		d.inFrame = true
	case line[0] == MarkerCont1 && line[1] == MarkerCont2:
		if !d.inFrame {
			return nil
		}
		d.text = append(d.text, line[2:]...)
	default:
		// Console noise between frames
		return nil
	}
	if len(d.text) > maxText {
		d.drop("frame text too long", "len", len(d.text))
		return nil
	}
	// Intermediate lines are emitted 4-aligned, so a non aligned
	// length means more continuation lines are pending
	if len(d.text)%4 != 0 {
		return nil
	}
	body := make([]byte, base64.StdEncoding.DecodedLen(len(d.text)))
	n, err := base64.StdEncoding.Decode(body, d.text)
	if err != nil {
		d.drop("bad base64", "error", err)
		return nil
	}
	body = body[:n]
	if n < 2 {
		return nil
	}
	want := int(binary.BigEndian.Uint16(body[:2]))
	switch {
	case n < want+4:
		// Frame still incomplete
		return nil
	case n > want+4:
		d.drop("frame longer than declared", "declared", want, "actual", n-4)
		return nil
	}
	sum := crc.Checksum(body[:2+want])
	if uint16(sum) != binary.BigEndian.Uint16(body[2+want:]) {
		d.drop("crc mismatch")
		return nil
	}
	d.text = d.text[:0]
	d.inFrame = false
	return body[2 : 2+want]
}
