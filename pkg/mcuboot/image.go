// Package mcuboot parses signed MCUboot firmware image files : the
// fixed header, the protected and unprotected TLV trailers, version
// and hash. Pure value types, no I/O.
package mcuboot

import (
	"encoding/binary"
	"fmt"
)

// Image file constants, MCUboot 1.x/2.x stable ABI
const (
	Magic        uint32 = 0x96f3b83d
	tlvInfoMagic uint16 = 0x6907
	tlvProtMagic uint16 = 0x6908

	headerSize  = 32
	tlvInfoSize = 4
)

// TLV types recognized in the image trailer
const (
	TlvKeyHash  uint16 = 0x01
	TlvPubKey   uint16 = 0x02
	TlvSha256   uint16 = 0x10
	TlvSha384   uint16 = 0x11
	TlvSha512   uint16 = 0x12
	TlvRsa2048  uint16 = 0x20
	TlvEcdsa224 uint16 = 0x21
	TlvEcdsaSig uint16 = 0x22
	TlvRsa3072  uint16 = 0x23
	TlvEd25519  uint16 = 0x24
)

// Image header flags
const (
	FlagPic             uint32 = 0x01
	FlagEncryptedAes128 uint32 = 0x04
	FlagEncryptedAes256 uint32 = 0x08
	FlagNonBootable     uint32 = 0x10
	FlagRamLoad         uint32 = 0x20
)

// Version of an image as stored in its header
type Version struct {
	Major    uint8
	Minor    uint8
	Revision uint16
	Build    uint32
}

// ImageInfo is the parsed description of an image file
type ImageInfo struct {
	Version       Version
	Hash          []byte
	KeyHash       []byte
	LoadAddr      uint32
	HeaderSize    uint16
	ImageSize     uint32
	Flags         uint32
	SignatureAlgo string
}

// Encrypted reports whether the image payload is encrypted
func (i *ImageInfo) Encrypted() bool {
	return i.Flags&(FlagEncryptedAes128|FlagEncryptedAes256) != 0
}

// VersionString renders the canonical version, suffixed with the
// first 4 bytes of the image hash : "M.m.r-xxxxxxxx"
func (i *ImageInfo) VersionString() string {
	v := fmt.Sprintf("%d.%d.%d", i.Version.Major, i.Version.Minor, i.Version.Revision)
	if len(i.Hash) >= 4 {
		v += fmt.Sprintf("-%x", i.Hash[:4])
	}
	return v
}

// Parse failure kinds
type ParseErrorKind int

const (
	BadMagic ParseErrorKind = iota
	Truncated
	MalformedTlv
)

func (k ParseErrorKind) String() string {
	switch k {
	case BadMagic:
		return "bad magic"
	case Truncated:
		return "truncated image"
	case MalformedTlv:
		return "malformed TLV"
	default:
		return "parse error"
	}
}

type ParseError struct {
	Kind   ParseErrorKind
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%v : %v", e.Kind, e.Detail)
	}
	return e.Kind.String()
}

func parseError(kind ParseErrorKind, format string, args ...any) *ParseError {
	return &ParseError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Parse reads an MCUboot image file. Unknown TLV types are skipped.
func Parse(data []byte) (*ImageInfo, error) {
	if len(data) < headerSize {
		return nil, parseError(Truncated, "%v bytes, header needs %v", len(data), headerSize)
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != Magic {
		return nil, parseError(BadMagic, "0x%08x", magic)
	}
	info := &ImageInfo{
		LoadAddr:   binary.LittleEndian.Uint32(data[4:8]),
		HeaderSize: binary.LittleEndian.Uint16(data[8:10]),
		ImageSize:  binary.LittleEndian.Uint32(data[12:16]),
		Flags:      binary.LittleEndian.Uint32(data[16:20]),
		Version: Version{
			Major:    data[20],
			Minor:    data[21],
			Revision: binary.LittleEndian.Uint16(data[22:24]),
			Build:    binary.LittleEndian.Uint32(data[24:28]),
		},
	}
	protTlvSize := binary.LittleEndian.Uint16(data[10:12])

	off := int(info.HeaderSize) + int(info.ImageSize)
	if off > len(data) {
		return nil, parseError(Truncated, "image body ends at %v, file is %v", off, len(data))
	}
	if protTlvSize > 0 {
		end, err := info.parseTrailer(data, off, tlvProtMagic, int(protTlvSize))
		if err != nil {
			return nil, err
		}
		off = end
	}
	if off < len(data) {
		// Unprotected trailer, size taken from its own info header
		if _, err := info.parseTrailer(data, off, tlvInfoMagic, 0); err != nil {
			return nil, err
		}
	}
	return info, nil
}

// parseTrailer walks one TLV trailer starting at off. wantSize is the
// declared total for the protected trailer, 0 to trust the trailer's
// own info header. Returns the offset just past the trailer.
func (info *ImageInfo) parseTrailer(data []byte, off int, magic uint16, wantSize int) (int, error) {
	if off+tlvInfoSize > len(data) {
		return 0, parseError(Truncated, "TLV info header at %v past end", off)
	}
	gotMagic := binary.LittleEndian.Uint16(data[off : off+2])
	if gotMagic != magic {
		return 0, parseError(MalformedTlv, "TLV info magic 0x%04x, want 0x%04x", gotMagic, magic)
	}
	total := int(binary.LittleEndian.Uint16(data[off+2 : off+4]))
	if wantSize > 0 && total != wantSize {
		return 0, parseError(MalformedTlv, "trailer declares %v bytes, header says %v", total, wantSize)
	}
	end := off + total
	if end > len(data) {
		return 0, parseError(Truncated, "trailer ends at %v, file is %v", end, len(data))
	}
	pos := off + tlvInfoSize
	for pos < end {
		if pos+4 > end {
			return 0, parseError(MalformedTlv, "TLV header at %v past trailer end %v", pos, end)
		}
		typ := binary.LittleEndian.Uint16(data[pos : pos+2])
		length := int(binary.LittleEndian.Uint16(data[pos+2 : pos+4]))
		pos += 4
		if pos+length > end {
			return 0, parseError(MalformedTlv, "TLV 0x%02x runs past trailer end", typ)
		}
		value := data[pos : pos+length]
		pos += length
		switch typ {
		case TlvSha256, TlvSha384, TlvSha512:
			info.Hash = value
		case TlvKeyHash:
			info.KeyHash = value
		case TlvRsa2048:
			info.SignatureAlgo = "RSA2048"
		case TlvRsa3072:
			info.SignatureAlgo = "RSA3072"
		case TlvEcdsa224, TlvEcdsaSig:
			info.SignatureAlgo = "ECDSA"
		case TlvEd25519:
			info.SignatureAlgo = "ED25519"
		}
	}
	return end, nil
}
