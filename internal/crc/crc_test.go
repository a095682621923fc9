package crc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecksumCheckValue(t *testing.T) {
	// Standard CRC16/XMODEM check value
	assert.EqualValues(t, 0x31C3, Checksum([]byte("123456789")))
}

func TestChecksumEmpty(t *testing.T) {
	assert.EqualValues(t, 0, Checksum(nil))
	assert.EqualValues(t, 0, Checksum([]byte{}))
}

func TestUpdateIncremental(t *testing.T) {
	data := []byte("incremental update should match one shot")
	whole := Checksum(data)
	c := CRC16(0)
	for _, b := range data {
		c.Update([]byte{b})
	}
	assert.Equal(t, whole, c)
}

func TestSingleBitSensitivity(t *testing.T) {
	data := []byte{0x06, 0x09, 0x12, 0x34}
	ref := Checksum(data)
	for i := range data {
		for bit := 0; bit < 8; bit++ {
			mutated := make([]byte, len(data))
			copy(mutated, data)
			mutated[i] ^= 1 << bit
			assert.NotEqual(t, ref, Checksum(mutated))
		}
	}
}
