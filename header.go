package smp

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the size of the SMP header on the wire
const HeaderSize = 8

// MaxPayloadSize bounds the CBOR payload of a single SMP message
const MaxPayloadSize = 0xFFFF

// An SMP message header. All multi byte fields are big endian on
// the wire. Version and Op share the first byte : version in bits 3..4,
// operation in bits 0..2.
type Header struct {
	Version uint8
	Op      uint8
	Flags   uint8
	Length  uint16
	Group   uint16
	Seq     uint8
	Command uint8
}

// A full SMP message, header plus CBOR payload
type Message struct {
	Header  Header
	Payload []byte
}

// Pack header into its 8 byte wire representation
func (h Header) Bytes() []byte {
	b := make([]byte, HeaderSize)
	b[0] = (h.Version&0x03)<<3 | h.Op&0x07
	b[1] = h.Flags
	binary.BigEndian.PutUint16(b[2:4], h.Length)
	binary.BigEndian.PutUint16(b[4:6], h.Group)
	b[6] = h.Seq
	b[7] = h.Command
	return b
}

// ParseHeader decodes the first 8 bytes of a raw SMP message
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("message too short for SMP header : %v bytes", len(b))
	}
	return Header{
		Version: (b[0] >> 3) & 0x03,
		Op:      b[0] & 0x07,
		Flags:   b[1],
		Length:  binary.BigEndian.Uint16(b[2:4]),
		Group:   binary.BigEndian.Uint16(b[4:6]),
		Seq:     b[6],
		Command: b[7],
	}, nil
}

// Encode serializes the message, fixing up the header length field
// to match the actual payload
func (m Message) Encode() []byte {
	m.Header.Length = uint16(len(m.Payload))
	return append(m.Header.Bytes(), m.Payload...)
}

// ParseMessage decodes a raw SMP message. The header length field must
// match the actual payload length.
func ParseMessage(raw []byte) (Message, error) {
	hdr, err := ParseHeader(raw)
	if err != nil {
		return Message{}, err
	}
	payload := raw[HeaderSize:]
	if int(hdr.Length) != len(payload) {
		return Message{}, fmt.Errorf("payload length mismatch : header %v, actual %v", hdr.Length, len(payload))
	}
	return Message{Header: hdr, Payload: payload}, nil
}

// IsResponseTo reports whether the message is a plausible response for
// the given request header, i.e. same sequence number
func (m Message) IsResponseTo(req Header) bool {
	return m.Header.Seq == req.Seq
}
