package smp

import (
	"errors"
	"fmt"
)

var (
	ErrTimeout           = errors.New("no response within deadline")
	ErrDisconnected      = errors.New("serial port closed")
	ErrFrameSizeTooSmall = errors.New("frame size too small for a minimal chunk")
	ErrProtocol          = errors.New("protocol violation")
	ErrCodec             = errors.New("malformed response payload")
	ErrFrameTooLarge     = errors.New("frame exceeds maximum size")
)

// DeviceError is a non zero return code reported by the device itself,
// either as a legacy "rc" field or as a version 1 "err" envelope.
type DeviceError struct {
	Group uint16
	Rc    int
	// Human readable reason, only present in version 1 envelopes
	Rsn string
}

func (e *DeviceError) Error() string {
	if e.Rsn != "" {
		return fmt.Sprintf("device error : group %v rc %v : %v", e.Group, e.Rc, e.Rsn)
	}
	return fmt.Sprintf("device error : group %v rc %v : %v", e.Group, e.Rc, RcString(e.Rc))
}

// NewDeviceError creates a device error for the given group and
// return code
func NewDeviceError(group uint16, rc int, rsn string) *DeviceError {
	return &DeviceError{Group: group, Rc: rc, Rsn: rsn}
}
