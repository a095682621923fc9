package client

import (
	"bytes"
	"fmt"

	smp "github.com/mcutools/gosmp"
	"github.com/mcutools/gosmp/pkg/mgmt"
)

// FsDownload streams a file from the device. Every request names the
// file and the current offset, the first response carries the total
// length. The chunk size is the device's choice.
func (c *Client) FsDownload(name string, progress ProgressFunc) ([]byte, error) {
	if name == "" {
		return nil, fmt.Errorf("%w : empty file name", smp.ErrProtocol)
	}
	var out bytes.Buffer
	off := 0
	total := 0
	for {
		req := &mgmt.FsDownloadRequest{Off: uint32(off), Name: name}
		var rsp mgmt.FsDownloadResponse
		if err := c.transport.SendDecode(smp.OpRead, smp.GroupFS, smp.CmdFSDownload, req, &rsp); err != nil {
			return nil, err
		}
		if int(rsp.Off) != off {
			return nil, fmt.Errorf("%w : offset mismatch, requested %v got %v",
				smp.ErrProtocol, off, rsp.Off)
		}
		if off == 0 {
			if rsp.Len == nil {
				return nil, fmt.Errorf("%w : first download response without total length", smp.ErrProtocol)
			}
			total = int(*rsp.Len)
			c.logger.Debug("[RX] file download", "name", name, "total", total)
		}
		out.Write(rsp.Data)
		off += len(rsp.Data)
		if progress != nil {
			progress(off, total)
		}
		if off >= total {
			break
		}
		if len(rsp.Data) == 0 {
			// A stalled stream would loop forever
			return nil, fmt.Errorf("%w : empty chunk at offset %v of %v", smp.ErrProtocol, off, total)
		}
	}
	return out.Bytes(), nil
}
