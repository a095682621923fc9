// Package client is the high level MCUmgr command facade : one typed
// operation per SMP command, plus the multi round trip streaming
// transfers for files and firmware images.
package client

import (
	"errors"
	"fmt"
	"log/slog"

	smp "github.com/mcutools/gosmp"
	"github.com/mcutools/gosmp/pkg/mgmt"
	"github.com/mcutools/gosmp/pkg/transport"
)

// ProgressFunc is invoked after every acknowledged chunk of a
// streaming transfer with the bytes moved so far and the total. It
// runs on the calling goroutine while no engine lock is held, so it
// may call back into the client.
type ProgressFunc func(done int, total int)

// Client wraps a transport with typed MCUmgr operations. The zero
// lock facade : all synchronization lives in the transport, one
// request / response exchange at a time.
type Client struct {
	transport *transport.Transport
	logger    *slog.Logger
}

func New(t *transport.Transport, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{transport: t, logger: logger.With("service", "[CLIENT]")}
}

// Transport exposes the underlying engine for timeout and frame size
// configuration
func (c *Client) Transport() *transport.Transport {
	return c.transport
}

func (c *Client) Close() error {
	return c.transport.Close()
}

// Echo sends a string to the device and returns what it echoes back
func (c *Client) Echo(s string) (string, error) {
	var rsp mgmt.EchoResponse
	err := c.transport.SendDecode(smp.OpWrite, smp.GroupOS, smp.CmdOSEcho, &mgmt.EchoRequest{D: s}, &rsp)
	if err != nil {
		return "", err
	}
	return rsp.R, nil
}

// Reset reboots the device. A device that is already resetting may
// never answer, so a response timeout counts as success here.
func (c *Client) Reset() error {
	err := c.transport.SendDecode(smp.OpWrite, smp.GroupOS, smp.CmdOSReset, &mgmt.ResetRequest{}, nil)
	if errors.Is(err, smp.ErrTimeout) {
		c.logger.Debug("no reset response, device likely rebooting")
		return nil
	}
	return err
}

// TaskStats reads per task runtime statistics
func (c *Client) TaskStats() (map[string]mgmt.TaskStat, error) {
	var rsp mgmt.TaskStatsResponse
	err := c.transport.SendDecode(smp.OpRead, smp.GroupOS, smp.CmdOSTaskStats, nil, &rsp)
	if err != nil {
		return nil, err
	}
	return rsp.Tasks, nil
}

// McuMgrParams reads the device side transport limits
func (c *Client) McuMgrParams() (*mgmt.McuMgrParamsResponse, error) {
	var rsp mgmt.McuMgrParamsResponse
	err := c.transport.SendDecode(smp.OpRead, smp.GroupOS, smp.CmdOSMcuMgrParams, nil, &rsp)
	if err != nil {
		return nil, err
	}
	return &rsp, nil
}

// Info queries os / application / bootloader info by format string
func (c *Client) Info(format string) (string, error) {
	var rsp mgmt.InfoResponse
	err := c.transport.SendDecode(smp.OpRead, smp.GroupOS, smp.CmdOSInfo, &mgmt.InfoRequest{Format: format}, &rsp)
	if err != nil {
		return "", err
	}
	return rsp.Output, nil
}

// DatetimeGet reads the device clock
func (c *Client) DatetimeGet() (string, error) {
	var rsp mgmt.DatetimeResponse
	err := c.transport.SendDecode(smp.OpRead, smp.GroupOS, smp.CmdOSDatetime, nil, &rsp)
	if err != nil {
		return "", err
	}
	return rsp.Datetime, nil
}

// DatetimeSet sets the device clock
func (c *Client) DatetimeSet(datetime string) error {
	return c.transport.SendDecode(smp.OpWrite, smp.GroupOS, smp.CmdOSDatetime, &mgmt.DatetimeSetRequest{Datetime: datetime}, nil)
}

// ImageList reads the image slot states
func (c *Client) ImageList() ([]mgmt.ImageState, error) {
	var rsp mgmt.ImageStateResponse
	err := c.transport.SendDecode(smp.OpRead, smp.GroupImage, smp.CmdImageState, nil, &rsp)
	if err != nil {
		return nil, err
	}
	return rsp.Images, nil
}

// ImageTest marks the image with the given hash for one test boot
func (c *Client) ImageTest(hash []byte) ([]mgmt.ImageState, error) {
	return c.imageStateSet(&mgmt.ImageStateSetRequest{Hash: hash, Confirm: false})
}

// ImageConfirm makes the currently running image permanent. With a
// hash, confirms that specific image instead.
func (c *Client) ImageConfirm(hash []byte) ([]mgmt.ImageState, error) {
	return c.imageStateSet(&mgmt.ImageStateSetRequest{Hash: hash, Confirm: true})
}

func (c *Client) imageStateSet(req *mgmt.ImageStateSetRequest) ([]mgmt.ImageState, error) {
	var rsp mgmt.ImageStateResponse
	err := c.transport.SendDecode(smp.OpWrite, smp.GroupImage, smp.CmdImageState, req, &rsp)
	if err != nil {
		return nil, err
	}
	return rsp.Images, nil
}

// ImageErase erases the given image slot
func (c *Client) ImageErase(slot uint32) error {
	return c.transport.SendDecode(smp.OpWrite, smp.GroupImage, smp.CmdImageErase, &mgmt.ImageEraseRequest{Slot: slot}, nil)
}

// SlotInfo reads the slot layout of the device
func (c *Client) SlotInfo() ([]mgmt.SlotInfoImage, error) {
	var rsp mgmt.SlotInfoResponse
	err := c.transport.SendDecode(smp.OpRead, smp.GroupImage, smp.CmdImageSlotInfo, nil, &rsp)
	if err != nil {
		return nil, err
	}
	return rsp.Images, nil
}

// FsStatus returns the size of a file on the device
func (c *Client) FsStatus(name string) (uint32, error) {
	var rsp mgmt.FsStatusResponse
	err := c.transport.SendDecode(smp.OpRead, smp.GroupFS, smp.CmdFSStatus, &mgmt.FsStatusRequest{Name: name}, &rsp)
	if err != nil {
		return 0, err
	}
	return rsp.Len, nil
}

// FsHash computes a checksum of a file on the device. An empty type
// selects the device default.
func (c *Client) FsHash(name string, hashType string) (*mgmt.FsHashResponse, error) {
	var rsp mgmt.FsHashResponse
	req := &mgmt.FsHashRequest{Name: name, Type: hashType}
	err := c.transport.SendDecode(smp.OpRead, smp.GroupFS, smp.CmdFSHash, req, &rsp)
	if err != nil {
		return nil, err
	}
	return &rsp, nil
}

// FsSupportedHashes lists the checksum types the device supports
func (c *Client) FsSupportedHashes() (map[string]mgmt.FsHashType, error) {
	var rsp mgmt.FsSupportedResponse
	err := c.transport.SendDecode(smp.OpRead, smp.GroupFS, smp.CmdFSSupported, nil, &rsp)
	if err != nil {
		return nil, err
	}
	return rsp.Types, nil
}

// FsClose closes the file left open by an upload or download stream
func (c *Client) FsClose() error {
	var rsp mgmt.FsCloseResponse
	return c.transport.SendDecode(smp.OpWrite, smp.GroupFS, smp.CmdFSClose, nil, &rsp)
}

// StatShow reads one statistics group
func (c *Client) StatShow(name string) (*mgmt.StatShowResponse, error) {
	var rsp mgmt.StatShowResponse
	err := c.transport.SendDecode(smp.OpRead, smp.GroupStat, smp.CmdStatShow, &mgmt.StatShowRequest{Name: name}, &rsp)
	if err != nil {
		return nil, err
	}
	return &rsp, nil
}

// StatList lists the statistics groups on the device
func (c *Client) StatList() ([]string, error) {
	var rsp mgmt.StatListResponse
	err := c.transport.SendDecode(smp.OpRead, smp.GroupStat, smp.CmdStatList, nil, &rsp)
	if err != nil {
		return nil, err
	}
	return rsp.StatList, nil
}

// ShellExec runs a shell command on the device and returns its
// output. A negative return code is surfaced as a *ShellError naming
// the matching errno.
func (c *Client) ShellExec(argv []string) (string, error) {
	var rsp mgmt.ShellExecResponse
	err := c.transport.SendDecode(smp.OpWrite, smp.GroupShell, smp.CmdShellExec, &mgmt.ShellExecRequest{Argv: argv}, &rsp)
	if err != nil {
		return "", err
	}
	if rsp.Ret < 0 {
		return rsp.Output, &ShellError{Output: rsp.Output, Ret: rsp.Ret}
	}
	return rsp.Output, nil
}

// ZephyrEraseStorage wipes the storage partition
func (c *Client) ZephyrEraseStorage() error {
	return c.transport.SendDecode(smp.OpWrite, smp.GroupZephyr, smp.CmdZephyrEraseStorage, &mgmt.EraseStorageRequest{}, nil)
}

// RawCommand sends an arbitrary CBOR payload to any group / command,
// bypassing the typed schemas. Meant for debugging.
func (c *Client) RawCommand(group uint16, command uint8, op uint8, payload []byte) ([]byte, error) {
	msg, err := c.transport.SendPayload(op, group, command, payload)
	if err != nil {
		return nil, err
	}
	if devErr := mgmt.DecodeError(msg.Payload, group); devErr != nil {
		return nil, devErr
	}
	return msg.Payload, nil
}

// ShellError is a shell command that completed with a negative
// return code
type ShellError struct {
	Output string
	Ret    int
}

func (e *ShellError) Error() string {
	return fmt.Sprintf("shell command failed : %v (ret %v)", ErrnoName(-e.Ret), e.Ret)
}
