package mgmt

// Stat group (2)

type StatShowRequest struct {
	Name string `cbor:"name"`
}

type StatShowResponse struct {
	Name   string            `cbor:"name"`
	Fields map[string]uint64 `cbor:"fields"`
}

type StatListResponse struct {
	StatList []string `cbor:"stat_list"`
}
