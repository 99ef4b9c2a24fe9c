package recast

// Memory is a bounded linear memory that coercions can take checked views
// into. wazero's api.Memory satisfies it, so verified reinterpretations work
// directly over wasm guest memory.
type Memory interface {
	// Read returns a view of length byteCount starting at offset, or false
	// if the range is out of bounds. The view aliases the underlying
	// memory; it is not a copy.
	Read(offset, byteCount uint32) ([]byte, bool)

	// Size returns the current size of the memory in bytes.
	Size() uint32
}

// SliceMemory adapts an in-process byte slice to the Memory interface.
type SliceMemory []byte

func (m SliceMemory) Read(offset, byteCount uint32) ([]byte, bool) {
	if uint64(offset)+uint64(byteCount) > uint64(len(m)) {
		return nil, false
	}
	return m[offset : offset+byteCount], true
}

func (m SliceMemory) Size() uint32 {
	return uint32(len(m))
}
