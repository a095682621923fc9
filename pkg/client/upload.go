package client

import (
	"crypto/sha256"
	"fmt"

	smp "github.com/mcutools/gosmp"
	"github.com/mcutools/gosmp/pkg/frame"
	"github.com/mcutools/gosmp/pkg/mgmt"
)

// maxChunkLen finds the largest data length whose encoded request
// still fits the configured frame size. build must return the request
// for a chunk of n bytes, shaped like the worst case of the stream.
// Returns ErrFrameSizeTooSmall when not even one byte fits.
func (c *Client) maxChunkLen(build func(n int) any) (int, error) {
	frameSize := c.transport.FrameSize()
	fits := func(n int) (bool, error) {
		payload, err := mgmt.Encode(build(n))
		if err != nil {
			return false, fmt.Errorf("%w : %v", smp.ErrCodec, err)
		}
		return frame.EncodedSize(smp.HeaderSize+len(payload)) <= frameSize, nil
	}
	ok, err := fits(1)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w : frame size %v", smp.ErrFrameSizeTooSmall, frameSize)
	}
	// Largest n with fits(n), encoded size grows with n
	lo, hi := 1, frameSize
	for lo < hi {
		mid := (lo + hi + 1) / 2
		ok, err := fits(mid)
		if err != nil {
			return 0, err
		}
		if ok {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, nil
}

// FsUpload streams data to a file on the device. The first request
// carries the file name and total length, every request carries the
// current offset and one chunk. The device acknowledges each chunk
// with the next expected offset, which must advance exactly by what
// was sent. Ends with an explicit file close.
func (c *Client) FsUpload(name string, data []byte, progress ProgressFunc) error {
	if name == "" {
		return fmt.Errorf("%w : empty file name", smp.ErrProtocol)
	}
	total := len(data)
	totalLen := uint32(total)
	// Worst case shape : first request fields with the largest offset
	chunkLen, err := c.maxChunkLen(func(n int) any {
		return &mgmt.FsUploadRequest{
			Off:  totalLen,
			Data: make([]byte, n),
			Name: name,
			Len:  &totalLen,
		}
	})
	if err != nil {
		return err
	}
	c.logger.Debug("[TX] file upload", "name", name, "total", total, "chunkLen", chunkLen)

	off := 0
	for {
		n := total - off
		if n > chunkLen {
			n = chunkLen
		}
		req := &mgmt.FsUploadRequest{Off: uint32(off), Data: data[off : off+n]}
		if off == 0 {
			req.Name = name
			req.Len = &totalLen
		}
		var rsp mgmt.FsUploadResponse
		if err := c.transport.SendDecode(smp.OpWrite, smp.GroupFS, smp.CmdFSUpload, req, &rsp); err != nil {
			return err
		}
		if rsp.Off == nil {
			return fmt.Errorf("%w : upload response without offset", smp.ErrProtocol)
		}
		if int(*rsp.Off) != off+n {
			return fmt.Errorf("%w : offset mismatch, sent %v expected %v got %v",
				smp.ErrProtocol, off, off+n, *rsp.Off)
		}
		off += n
		if progress != nil {
			progress(off, total)
		}
		if off >= total {
			break
		}
	}
	return c.FsClose()
}

// ImageUpload streams a firmware image into the given slot. Like a
// file upload, with the first chunk additionally carrying the image
// SHA256, target slot and total length.
func (c *Client) ImageUpload(image uint32, data []byte, upgrade bool, progress ProgressFunc) error {
	total := len(data)
	totalLen := uint32(total)
	sha := sha256.Sum256(data)
	chunkLen, err := c.maxChunkLen(func(n int) any {
		return &mgmt.ImageUploadRequest{
			Image:   image,
			Len:     &totalLen,
			Off:     totalLen,
			Sha:     sha[:],
			Data:    make([]byte, n),
			Upgrade: upgrade,
		}
	})
	if err != nil {
		return err
	}
	c.logger.Debug("[TX] image upload", "image", image, "total", total, "chunkLen", chunkLen)

	off := 0
	for {
		n := total - off
		if n > chunkLen {
			n = chunkLen
		}
		req := &mgmt.ImageUploadRequest{Off: uint32(off), Data: data[off : off+n]}
		if off == 0 {
			req.Image = image
			req.Len = &totalLen
			req.Sha = sha[:]
			req.Upgrade = upgrade
		}
		var rsp mgmt.ImageUploadResponse
		if err := c.transport.SendDecode(smp.OpWrite, smp.GroupImage, smp.CmdImageUpload, req, &rsp); err != nil {
			return err
		}
		if rsp.Off == nil {
			return fmt.Errorf("%w : upload response without offset", smp.ErrProtocol)
		}
		if int(*rsp.Off) != off+n {
			return fmt.Errorf("%w : offset mismatch, sent %v expected %v got %v",
				smp.ErrProtocol, off, off+n, *rsp.Off)
		}
		off += n
		if progress != nil {
			progress(off, total)
		}
		if off >= total {
			return nil
		}
	}
}
