package codec

// DecodeKeysBulk parses the common "key sizes then packed keys" layout
// shared by erase_bulk, exists_bulk, and length_bulk (spec.md §4.1).
func DecodeKeysBulk(r Region, count int) ([][]byte, error) {
	if count == 0 {
		return nil, nil
	}
	if err := checkContiguous(r); err != nil {
		return nil, err
	}
	buf := r.Bytes()

	ksizes, off, err := readUint64Vec(buf, 0, count)
	if err != nil {
		return nil, err
	}
	keys, err := splitPacked(buf, off, ksizes)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if len(k) == 0 {
			return nil, ErrInvalidArgs
		}
	}
	return keys, nil
}

// EncodeKeysBulk serializes keys using the erase_bulk layout (no trailer).
func EncodeKeysBulk(buf []byte, keys [][]byte) (int, error) {
	ksizes := make([]uint64, len(keys))
	for i, k := range keys {
		ksizes[i] = uint64(len(k))
	}
	off, err := writeUint64Vec(buf, 0, ksizes)
	if err != nil {
		return 0, err
	}
	for _, k := range keys {
		off += copy(buf[off:], k)
	}
	return off, nil
}

// KeysBulkSize returns the buffer size EncodeKeysBulk needs.
func KeysBulkSize(keys [][]byte) int {
	size := len(keys) * sizeOfUint64
	for _, k := range keys {
		size += len(k)
	}
	return size
}
