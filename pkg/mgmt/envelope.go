// Package mgmt defines the CBOR request and response schemas for every
// MCUmgr command group, plus the error envelopes shared by all of them.
package mgmt

import (
	"github.com/fxamacker/cbor/v2"
	smp "github.com/mcutools/gosmp"
)

// Version 1 error envelope : {"err": {"group": g, "rc": rc, "rsn": "..."}}
type ErrorV1 struct {
	Group uint16 `cbor:"group"`
	Rc    int    `cbor:"rc"`
	Rsn   string `cbor:"rsn,omitempty"`
}

// Every response may carry one of the two error shapes. Legacy (v0)
// responses also carry rc = 0 on success, which is not an error.
type errorProbe struct {
	Rc  *int     `cbor:"rc"`
	Err *ErrorV1 `cbor:"err"`
}

// DecodeError inspects a response payload for a device error envelope.
// Returns nil when the payload reports success. The fallback group is
// used for legacy envelopes, which do not name one.
func DecodeError(payload []byte, group uint16) *smp.DeviceError {
	if len(payload) == 0 {
		return nil
	}
	var probe errorProbe
	if err := cbor.Unmarshal(payload, &probe); err != nil {
		// Not a map shaped payload, let the schema decode complain
		return nil
	}
	if probe.Err != nil && probe.Err.Rc != smp.RcOk {
		return smp.NewDeviceError(probe.Err.Group, probe.Err.Rc, probe.Err.Rsn)
	}
	if probe.Rc != nil && *probe.Rc != smp.RcOk {
		return smp.NewDeviceError(group, *probe.Rc, "")
	}
	return nil
}

// Encode marshals a request payload. A nil request stands for the
// empty map, which always encodes as 0xA0 and never as null.
func Encode(req any) ([]byte, error) {
	if req == nil {
		req = struct{}{}
	}
	return cbor.Marshal(req)
}

// Decode unmarshals a response payload into rsp. An empty payload is
// accepted and treated like the empty map.
func Decode(payload []byte, rsp any) error {
	if rsp == nil || len(payload) == 0 {
		return nil
	}
	return cbor.Unmarshal(payload, rsp)
}
