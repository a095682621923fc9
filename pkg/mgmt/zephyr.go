package mgmt

// Zephyr basic group (63)

// EraseStorageRequest wipes the storage partition. Takes no arguments.
type EraseStorageRequest struct{}
