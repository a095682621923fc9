package mgmt

// Image group (1)

// One slot entry of the image state response
type ImageState struct {
	Image     *uint32 `cbor:"image,omitempty"`
	Slot      uint32  `cbor:"slot"`
	Version   string  `cbor:"version"`
	Hash      []byte  `cbor:"hash,omitempty"`
	Bootable  bool    `cbor:"bootable,omitempty"`
	Pending   bool    `cbor:"pending,omitempty"`
	Confirmed bool    `cbor:"confirmed,omitempty"`
	Active    bool    `cbor:"active,omitempty"`
	Permanent bool    `cbor:"permanent,omitempty"`
}

type ImageStateResponse struct {
	Images      []ImageState `cbor:"images"`
	SplitStatus *int         `cbor:"splitStatus,omitempty"`
}

// ImageStateSetRequest marks the image with the given hash for test or
// permanent boot
type ImageStateSetRequest struct {
	Hash    []byte `cbor:"hash,omitempty"`
	Confirm bool   `cbor:"confirm"`
}

// ImageUploadRequest is one chunk of a firmware upload. Only the first
// chunk (off = 0) carries the total length, target image and sha.
type ImageUploadRequest struct {
	Image   uint32  `cbor:"image,omitempty"`
	Len     *uint32 `cbor:"len,omitempty"`
	Off     uint32  `cbor:"off"`
	Sha     []byte  `cbor:"sha,omitempty"`
	Data    []byte  `cbor:"data"`
	Upgrade bool    `cbor:"upgrade,omitempty"`
}

type ImageUploadResponse struct {
	Off   *uint32 `cbor:"off"`
	Match *bool   `cbor:"match,omitempty"`
}

type ImageEraseRequest struct {
	Slot uint32 `cbor:"slot,omitempty"`
}

type SlotInfoSlot struct {
	Slot uint32 `cbor:"slot"`
	Size uint32 `cbor:"size,omitempty"`
}

type SlotInfoImage struct {
	Image    uint32         `cbor:"image"`
	Slots    []SlotInfoSlot `cbor:"slots"`
	MaxImage uint32         `cbor:"max_image_size,omitempty"`
}

type SlotInfoResponse struct {
	Images []SlotInfoImage `cbor:"images"`
}
