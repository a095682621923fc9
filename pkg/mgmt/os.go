package mgmt

// OS group (0)

type EchoRequest struct {
	D string `cbor:"d"`
}

type EchoResponse struct {
	R string `cbor:"r"`
}

// Task runtime statistics, one entry per task. Large responses :
// reading them needs a large netbuf on the device side.
type TaskStat struct {
	Priority    uint32 `cbor:"prio"`
	TaskId      uint32 `cbor:"tid"`
	State       uint32 `cbor:"state"`
	StackUse    uint32 `cbor:"stkuse"`
	StackSize   uint32 `cbor:"stksiz"`
	Switches    uint32 `cbor:"cswcnt"`
	Runtime     uint64 `cbor:"runtime"`
	LastCheckin uint32 `cbor:"last_checkin"`
	NextCheckin uint32 `cbor:"next_checkin"`
}

type TaskStatsResponse struct {
	Tasks map[string]TaskStat `cbor:"tasks"`
}

// Reset takes one optional argument, force; the empty request is a
// plain reset. The device may reboot before answering.
type ResetRequest struct {
	Force bool `cbor:"force,omitempty"`
}

// McuMgrParamsResponse carries the device side transport limits. The
// buffer size bounds the usable frame size.
type McuMgrParamsResponse struct {
	BufSize  uint32 `cbor:"buf_size"`
	BufCount uint32 `cbor:"buf_count"`
}

// InfoRequest queries os/application/bootloader info depending on the
// format string, mirroring the zephyr os info command
type InfoRequest struct {
	Format string `cbor:"format,omitempty"`
}

type InfoResponse struct {
	Output string `cbor:"output"`
}

type DatetimeResponse struct {
	Datetime string `cbor:"datetime"`
}

type DatetimeSetRequest struct {
	Datetime string `cbor:"datetime"`
}
