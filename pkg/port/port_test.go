package port

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
)

func stubPorts(t *testing.T, details ...*enumerator.PortDetails) {
	prev := listPorts
	listPorts = func() ([]*enumerator.PortDetails, error) {
		return details, nil
	}
	t.Cleanup(func() { listPorts = prev })
}

func TestListUSBLineFormat(t *testing.T) {
	stubPorts(t, &enumerator.PortDetails{
		Name:    "/dev/ttyACM0",
		IsUSB:   true,
		VID:     "2fe3",
		PID:     "0004",
		Product: "Zephyr Project CDC ACM",
	})
	ports, err := ListUSB()
	require.Nil(t, err)
	require.Len(t, ports, 1)
	assert.Equal(t, "2fe3:0004:0 (/dev/ttyACM0) - Zephyr Project CDC ACM", ports[0].String())
}

func TestListUSBSkipsNonUSBAndIndexes(t *testing.T) {
	stubPorts(t,
		&enumerator.PortDetails{Name: "/dev/ttyS0", IsUSB: false},
		&enumerator.PortDetails{Name: "/dev/ttyACM0", IsUSB: true, VID: "2FE3", PID: "0004", Product: "board A"},
		&enumerator.PortDetails{Name: "/dev/ttyACM1", IsUSB: true, VID: "2fe3", PID: "0004", Product: "board B"},
		&enumerator.PortDetails{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001", Product: "FT232R"},
	)
	ports, err := ListUSB()
	require.Nil(t, err)
	require.Len(t, ports, 3)
	// VID normalized to lower case, index per VID:PID pair
	assert.Equal(t, "2fe3", ports[0].VID)
	assert.Equal(t, 0, ports[0].Index)
	assert.Equal(t, 1, ports[1].Index)
	assert.Equal(t, 0, ports[2].Index)
}

func TestFindUSBSelector(t *testing.T) {
	stubPorts(t,
		&enumerator.PortDetails{Name: "/dev/ttyACM0", IsUSB: true, VID: "2fe3", PID: "0004", Product: "board A"},
		&enumerator.PortDetails{Name: "/dev/ttyACM1", IsUSB: true, VID: "2fe3", PID: "0004", Product: "board B"},
	)
	p, err := FindUSB("2fe3:0004")
	require.Nil(t, err)
	assert.Equal(t, "/dev/ttyACM0", p.Device)

	p, err = FindUSB("2fe3:0004:1")
	require.Nil(t, err)
	assert.Equal(t, "/dev/ttyACM1", p.Device)

	_, err = FindUSB("2fe3:0004:2")
	assert.ErrorIs(t, err, ErrNoMatchingPort)

	_, err = FindUSB("dead:beef")
	assert.ErrorIs(t, err, ErrNoMatchingPort)
}

func TestFindUSBRegex(t *testing.T) {
	stubPorts(t,
		&enumerator.PortDetails{Name: "/dev/ttyACM0", IsUSB: true, VID: "2fe3", PID: "0004", Product: "Zephyr Project CDC ACM"},
		&enumerator.PortDetails{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001", Product: "FT232R"},
	)
	p, err := FindUSB("Zephyr.*ACM")
	require.Nil(t, err)
	assert.Equal(t, "/dev/ttyACM0", p.Device)

	_, err = FindUSB("(unclosed")
	assert.NotNil(t, err)
}

func TestLoopbackReadWrite(t *testing.T) {
	a, b := NewLoopback()
	defer a.Close()
	_, err := a.Write([]byte("hello"))
	require.Nil(t, err)
	buf := make([]byte, 2)
	n, err := b.Read(buf)
	require.Nil(t, err)
	assert.Equal(t, "he", string(buf[:n]))
	buf = make([]byte, 16)
	n, err = b.Read(buf)
	require.Nil(t, err)
	assert.Equal(t, "llo", string(buf[:n]))
}

func TestLoopbackReadTimeout(t *testing.T) {
	a, b := NewLoopback()
	defer a.Close()
	require.Nil(t, b.SetReadTimeout(20 * time.Millisecond))
	start := time.Now()
	n, err := b.Read(make([]byte, 8))
	assert.Equal(t, 0, n)
	assert.Nil(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestLoopbackEOFOnClose(t *testing.T) {
	a, b := NewLoopback()
	a.Close()
	_, err := b.Read(make([]byte, 8))
	assert.Equal(t, io.EOF, err)
	// Writing towards the dead end is absorbed, writing from it fails
	_, err = b.Write([]byte{1})
	assert.Nil(t, err)
	_, err = a.Write([]byte{1})
	assert.NotNil(t, err)
}

func TestLoopbackCloseDeliversBufferedData(t *testing.T) {
	a, b := NewLoopback()
	_, err := a.Write([]byte("tail"))
	assert.Nil(t, err)
	a.Close()
	buf := make([]byte, 8)
	n, err := b.Read(buf)
	assert.Nil(t, err)
	assert.Equal(t, "tail", string(buf[:n]))
	_, err = b.Read(buf)
	assert.Equal(t, io.EOF, err)
}
