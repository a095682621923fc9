package mgmt

// Shell group (9)

type ShellExecRequest struct {
	Argv []string `cbor:"argv"`
}

// ShellExecResponse carries the command output and its return code.
// Negative return codes are errno values reported by the device.
type ShellExecResponse struct {
	Output string `cbor:"o"`
	Ret    int    `cbor:"ret"`
}
