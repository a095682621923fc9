// Package port provides the byte oriented serial ports the SMP
// transport runs on : real serial devices, USB serial discovery by
// VID:PID and an in memory loopback used for testing.
package port

import (
	"io"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate for SMP consoles (8N1)
const DefaultBaudRate = 115200

// Port is a bidirectional byte stream with a configurable read
// timeout. Read returns (0, nil) when the timeout elapses with no
// data, and io.EOF once the underlying handle is gone.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// Open a serial port at the given path, 8N1
func Open(path string, baudRate int) (Port, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	return serial.Open(path, mode)
}
