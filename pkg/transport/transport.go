// Package transport implements the SMP request / response engine on
// top of a serial port : sequence number assignment, response
// correlation, deadlines and frame size handling.
package transport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	smp "github.com/mcutools/gosmp"
	"github.com/mcutools/gosmp/pkg/frame"
	"github.com/mcutools/gosmp/pkg/mgmt"
	"github.com/mcutools/gosmp/pkg/port"
)

const (
	DefaultTimeout   = 2 * time.Second
	DefaultFrameSize = 512
)

// MinFrameSize is the smallest usable frame size : an SMP header plus
// one CBOR byte, framed
var MinFrameSize = frame.EncodedSize(smp.HeaderSize + 1)

var ErrClosed = errors.New("transport is closed")

// Transport owns a serial port and serializes request / response
// exchanges on it. All methods are safe for concurrent use : a mutex
// covers one complete exchange, so requests from concurrent callers
// hit the wire strictly one after the other.
type Transport struct {
	mu        sync.Mutex
	port      port.Port
	dec       *frame.Decoder
	logger    *slog.Logger
	seq       uint8
	timeout   time.Duration
	frameSize int
	closed    bool
}

func New(p port.Port, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("service", "[TRANSPORT]")
	return &Transport{
		port:      p,
		dec:       frame.NewDecoder(logger),
		logger:    logger,
		timeout:   DefaultTimeout,
		frameSize: DefaultFrameSize,
	}
}

// SetTimeout changes the per request response deadline
func (t *Transport) SetTimeout(timeout time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
}

func (t *Transport) Timeout() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timeout
}

// SetFrameSize fixes the upper bound on one encoded frame sequence,
// which limits the chunk size of streaming operations
func (t *Transport) SetFrameSize(n int) error {
	if n < MinFrameSize {
		return fmt.Errorf("%w : %v < %v", smp.ErrFrameSizeTooSmall, n, MinFrameSize)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frameSize = n
	return nil
}

func (t *Transport) FrameSize() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frameSize
}

// UseAutoFrameSize queries the device MCUmgr parameters and derives
// the frame size from the reported netbuf size
func (t *Transport) UseAutoFrameSize() error {
	var params mgmt.McuMgrParamsResponse
	err := t.SendDecode(smp.OpRead, smp.GroupOS, smp.CmdOSMcuMgrParams, nil, &params)
	if err != nil {
		return fmt.Errorf("could not query mcumgr parameters : %w", err)
	}
	if params.BufSize == 0 {
		return fmt.Errorf("%w : device reported zero buffer size", smp.ErrProtocol)
	}
	size := int(params.BufSize)
	if size < MinFrameSize {
		return fmt.Errorf("%w : device netbuf %v", smp.ErrFrameSizeTooSmall, size)
	}
	t.logger.Info("negotiated frame size", "bufSize", params.BufSize, "bufCount", params.BufCount)
	return t.SetFrameSize(size)
}

// CheckConnection performs an echo round trip
func (t *Transport) CheckConnection() error {
	var rsp mgmt.EchoResponse
	req := &mgmt.EchoRequest{D: "ping"}
	err := t.SendDecode(smp.OpWrite, smp.GroupOS, smp.CmdOSEcho, req, &rsp)
	if err != nil {
		return err
	}
	if rsp.R != req.D {
		return fmt.Errorf("%w : echo mismatch", smp.ErrProtocol)
	}
	return nil
}

// Send encodes one request, writes it to the port and waits for the
// response carrying the same sequence number. Frames for other
// sequences (stale responses of timed out requests) are dropped.
func (t *Transport) Send(op uint8, group uint16, command uint8, req any) (smp.Message, error) {
	payload, err := mgmt.Encode(req)
	if err != nil {
		return smp.Message{}, fmt.Errorf("%w : %v", smp.ErrCodec, err)
	}
	return t.SendPayload(op, group, command, payload)
}

// SendPayload is Send for an already CBOR encoded payload
func (t *Transport) SendPayload(op uint8, group uint16, command uint8, payload []byte) (smp.Message, error) {
	if len(payload) > frame.MaxFrameLength-smp.HeaderSize {
		return smp.Message{}, smp.ErrFrameTooLarge
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return smp.Message{}, ErrClosed
	}

	t.seq++
	msg := smp.Message{
		Header: smp.Header{
			Version: smp.Version2,
			Op:      op,
			Group:   group,
			Seq:     t.seq,
			Command: command,
		},
		Payload: payload,
	}
	lines, err := frame.Encode(msg.Encode())
	if err != nil {
		return smp.Message{}, err
	}
	for _, line := range lines {
		if _, err := t.port.Write(line); err != nil {
			return smp.Message{}, fmt.Errorf("port write failed : %w", err)
		}
	}
	t.logger.Debug("[TX]", "op", op, "group", group, "command", command, "seq", msg.Header.Seq, "len", len(payload))
	return t.awaitResponse(msg.Header)
}

// awaitResponse drains the port until a frame matching the request
// sequence number decodes, the deadline expires or the port dies.
// Called with the exchange lock held.
func (t *Transport) awaitResponse(req smp.Header) (smp.Message, error) {
	deadline := time.Now().Add(t.timeout)
	buf := make([]byte, 512)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.dec.Reset()
			return smp.Message{}, smp.ErrTimeout
		}
		if err := t.port.SetReadTimeout(remaining); err != nil {
			return smp.Message{}, fmt.Errorf("port configuration failed : %w", err)
		}
		n, err := t.port.Read(buf)
		if errors.Is(err, io.EOF) {
			t.dec.Reset()
			return smp.Message{}, smp.ErrDisconnected
		}
		if err != nil {
			t.dec.Reset()
			return smp.Message{}, fmt.Errorf("port read failed : %w", err)
		}
		for _, raw := range t.dec.Feed(buf[:n]) {
			rsp, err := smp.ParseMessage(raw)
			if err != nil {
				t.logger.Debug("dropped malformed message", "error", err)
				continue
			}
			if !rsp.IsResponseTo(req) {
				t.logger.Debug("dropped out of order response", "seq", rsp.Header.Seq, "want", req.Seq)
				continue
			}
			t.logger.Debug("[RX]", "group", rsp.Header.Group, "command", rsp.Header.Command, "seq", rsp.Header.Seq, "len", len(rsp.Payload))
			return rsp, nil
		}
	}
}

// SendDecode sends a request and decodes the response into rsp,
// surfacing device error envelopes as *smp.DeviceError
func (t *Transport) SendDecode(op uint8, group uint16, command uint8, req any, rsp any) error {
	msg, err := t.Send(op, group, command, req)
	if err != nil {
		return err
	}
	if devErr := mgmt.DecodeError(msg.Payload, group); devErr != nil {
		return devErr
	}
	if err := mgmt.Decode(msg.Payload, rsp); err != nil {
		return fmt.Errorf("%w : %v", smp.ErrCodec, err)
	}
	return nil
}

// Close releases the serial port. An exchange in progress holds the
// exchange lock, so Close waits for it to finish; later sends fail
// with ErrClosed.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.port.Close()
}
