package client

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	smp "github.com/mcutools/gosmp"
	"github.com/mcutools/gosmp/pkg/mgmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// downloadDevice serves a file in fixed size chunks
type downloadDevice struct {
	content   []byte
	chunkSize int
	offShift  int // added to reported offsets past the first chunk
}

func (d *downloadDevice) handle(req smp.Message) any {
	if req.Header.Group != smp.GroupFS || req.Header.Command != smp.CmdFSDownload {
		return nil
	}
	var in mgmt.FsDownloadRequest
	if err := cbor.Unmarshal(req.Payload, &in); err != nil {
		return nil
	}
	off := int(in.Off)
	if off > len(d.content) {
		return map[string]any{"rc": smp.RcInval}
	}
	end := off + d.chunkSize
	if end > len(d.content) {
		end = len(d.content)
	}
	reported := off
	if off > 0 {
		reported += d.offShift
	}
	rsp := map[string]any{
		"off":  reported,
		"data": d.content[off:end],
	}
	if off == 0 {
		rsp["len"] = len(d.content)
	}
	return rsp
}

func TestFsDownload(t *testing.T) {
	content := make([]byte, 250)
	for i := range content {
		content[i] = byte(i ^ 0x5A)
	}
	dev := &downloadDevice{content: content, chunkSize: 90}
	c := testClient(t, dev.handle)

	var progress [][2]int
	got, err := c.FsDownload("/lfs/data.bin", func(done, total int) {
		progress = append(progress, [2]int{done, total})
	})
	require.Nil(t, err)
	assert.Equal(t, content, got)
	assert.Equal(t, [][2]int{{90, 250}, {180, 250}, {250, 250}}, progress)
}

func TestFsDownloadEmptyFile(t *testing.T) {
	dev := &downloadDevice{content: nil, chunkSize: 64}
	c := testClient(t, dev.handle)
	got, err := c.FsDownload("/lfs/empty", nil)
	require.Nil(t, err)
	assert.Empty(t, got)
}

func TestFsDownloadOffsetMismatch(t *testing.T) {
	dev := &downloadDevice{content: make([]byte, 100), chunkSize: 40, offShift: -1}
	c := testClient(t, dev.handle)
	_, err := c.FsDownload("/lfs/data.bin", nil)
	assert.ErrorIs(t, err, smp.ErrProtocol)
}

func TestFsDownloadMissingLen(t *testing.T) {
	c := testClient(t, func(req smp.Message) any {
		return map[string]any{"off": 0, "data": []byte{1, 2, 3}}
	})
	_, err := c.FsDownload("/lfs/data.bin", nil)
	assert.ErrorIs(t, err, smp.ErrProtocol)
}

func TestFsDownloadDeviceError(t *testing.T) {
	c := testClient(t, func(req smp.Message) any {
		return map[string]any{
			"err": map[string]any{"group": 8, "rc": 5, "rsn": "file not found"},
		}
	})
	_, err := c.FsDownload("/lfs/missing", nil)
	var devErr *smp.DeviceError
	require.ErrorAs(t, err, &devErr)
	assert.Equal(t, "file not found", devErr.Rsn)
}

func TestFsDownloadStalledStream(t *testing.T) {
	c := testClient(t, func(req smp.Message) any {
		var in mgmt.FsDownloadRequest
		if err := cbor.Unmarshal(req.Payload, &in); err != nil {
			return nil
		}
		rsp := map[string]any{"off": in.Off, "data": []byte{}}
		if in.Off == 0 {
			rsp["len"] = 100
			rsp["data"] = []byte{1, 2}
		}
		return rsp
	})
	_, err := c.FsDownload("/lfs/stuck", nil)
	assert.ErrorIs(t, err, smp.ErrProtocol)
}
