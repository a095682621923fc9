package mcuboot

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// imageBuilder assembles a synthetic signed image file
type imageBuilder struct {
	version   Version
	body      []byte
	protected []tlv
	trailer   []tlv
}

type tlv struct {
	typ   uint16
	value []byte
}

func (b *imageBuilder) bytes() []byte {
	hdr := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(hdr[0:4], Magic)
	binary.LittleEndian.PutUint32(hdr[4:8], 0x20000000)
	binary.LittleEndian.PutUint16(hdr[8:10], headerSize)
	binary.LittleEndian.PutUint16(hdr[10:12], trailerSize(b.protected))
	binary.LittleEndian.PutUint32(hdr[12:16], uint32(len(b.body)))
	binary.LittleEndian.PutUint32(hdr[16:20], 0)
	hdr[20] = b.version.Major
	hdr[21] = b.version.Minor
	binary.LittleEndian.PutUint16(hdr[22:24], b.version.Revision)
	binary.LittleEndian.PutUint32(hdr[24:28], b.version.Build)

	img := append(hdr, b.body...)
	if len(b.protected) > 0 {
		img = append(img, trailerBytes(tlvProtMagic, b.protected)...)
	}
	if len(b.trailer) > 0 {
		img = append(img, trailerBytes(tlvInfoMagic, b.trailer)...)
	}
	return img
}

func trailerSize(tlvs []tlv) uint16 {
	if len(tlvs) == 0 {
		return 0
	}
	size := tlvInfoSize
	for _, e := range tlvs {
		size += 4 + len(e.value)
	}
	return uint16(size)
}

func trailerBytes(magic uint16, tlvs []tlv) []byte {
	out := make([]byte, tlvInfoSize)
	binary.LittleEndian.PutUint16(out[0:2], magic)
	binary.LittleEndian.PutUint16(out[2:4], trailerSize(tlvs))
	for _, e := range tlvs {
		hdr := make([]byte, 4)
		binary.LittleEndian.PutUint16(hdr[0:2], e.typ)
		binary.LittleEndian.PutUint16(hdr[2:4], uint16(len(e.value)))
		out = append(out, hdr...)
		out = append(out, e.value...)
	}
	return out
}

func TestParseVersionAndHash(t *testing.T) {
	body := []byte("firmware payload")
	hash := sha256.Sum256(body)
	b := imageBuilder{
		version: Version{Major: 1, Minor: 2, Revision: 3, Build: 4},
		body:    body,
		trailer: []tlv{
			{TlvSha256, hash[:]},
			{TlvEd25519, make([]byte, 64)},
		},
	}
	info, err := Parse(b.bytes())
	require.Nil(t, err)
	assert.Equal(t, Version{Major: 1, Minor: 2, Revision: 3, Build: 4}, info.Version)
	assert.Equal(t, hash[:], info.Hash)
	assert.Equal(t, "ED25519", info.SignatureAlgo)
	assert.EqualValues(t, 0x20000000, info.LoadAddr)
	assert.EqualValues(t, len(body), info.ImageSize)
	want := fmt.Sprintf("1.2.3-%x", hash[:4])
	assert.Equal(t, want, info.VersionString())
}

func TestParseProtectedTrailer(t *testing.T) {
	body := make([]byte, 100)
	hash := sha256.Sum256(body)
	b := imageBuilder{
		version:   Version{Major: 2},
		body:      body,
		protected: []tlv{{0x50, []byte("dependency")}},
		trailer: []tlv{
			{TlvSha256, hash[:]},
			{TlvKeyHash, make([]byte, 32)},
			{TlvRsa2048, make([]byte, 256)},
		},
	}
	info, err := Parse(b.bytes())
	require.Nil(t, err)
	assert.Equal(t, hash[:], info.Hash)
	assert.Len(t, info.KeyHash, 32)
	assert.Equal(t, "RSA2048", info.SignatureAlgo)
}

func TestParseUnknownTlvSkipped(t *testing.T) {
	hash := sha256.Sum256(nil)
	b := imageBuilder{
		body: []byte{1, 2, 3},
		trailer: []tlv{
			{0xA0, []byte{1, 2, 3, 4}},
			{TlvSha256, hash[:]},
		},
	}
	info, err := Parse(b.bytes())
	require.Nil(t, err)
	assert.Equal(t, hash[:], info.Hash)
}

func TestParseBadMagic(t *testing.T) {
	b := imageBuilder{body: []byte{1}}
	img := b.bytes()
	img[0] = 0xFF
	_, err := Parse(img)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, BadMagic, parseErr.Kind)
}

func TestParseTruncated(t *testing.T) {
	_, err := Parse(make([]byte, 10))
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, Truncated, parseErr.Kind)

	// Header declares a body longer than the file
	b := imageBuilder{body: make([]byte, 50)}
	img := b.bytes()
	_, err = Parse(img[:headerSize+10])
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, Truncated, parseErr.Kind)
}

func TestParseMalformedTlv(t *testing.T) {
	hash := sha256.Sum256(nil)
	b := imageBuilder{
		body:    []byte{1, 2, 3},
		trailer: []tlv{{TlvSha256, hash[:]}},
	}
	img := b.bytes()
	// Corrupt the TLV length so it runs past the declared trailer size
	tlvStart := headerSize + 3 + tlvInfoSize
	binary.LittleEndian.PutUint16(img[tlvStart+2:tlvStart+4], 0xFFFF)
	_, err := Parse(img)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, MalformedTlv, parseErr.Kind)
}

func TestParseNoTrailer(t *testing.T) {
	b := imageBuilder{version: Version{Major: 9}, body: []byte("bare")}
	info, err := Parse(b.bytes())
	require.Nil(t, err)
	assert.Empty(t, info.Hash)
	// No hash, no suffix
	assert.Equal(t, "9.0.0", info.VersionString())
}

func TestSpecExampleHeaderBytes(t *testing.T) {
	// Version field bytes 01 02 03 00 04 00 00 00 at offset 20 decode
	// to 1.2.3 build 4, magic stored little endian as 3D B8 F3 96
	b := imageBuilder{version: Version{Major: 1, Minor: 2, Revision: 3, Build: 4}}
	img := b.bytes()
	assert.Equal(t, []byte{0x3D, 0xB8, 0xF3, 0x96}, img[0:4])
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x00, 0x04, 0x00, 0x00, 0x00}, img[20:28])
}
