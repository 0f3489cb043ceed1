package codec

// PutBulk is the decoded form of a put_bulk payload: spec.md §4.1
// "[ksize0…ksize_{n-1}][vsize0…vsize_{n-1}][keys packed][values packed]".
type PutBulk struct {
	Keys   [][]byte
	Values [][]byte
}

// DecodePutBulk parses a put_bulk region holding count items.
func DecodePutBulk(r Region, count int) (*PutBulk, error) {
	if count == 0 {
		return &PutBulk{}, nil
	}
	if err := checkContiguous(r); err != nil {
		return nil, err
	}
	buf := r.Bytes()

	ksizes, off, err := readUint64Vec(buf, 0, count)
	if err != nil {
		return nil, err
	}
	vsizes, off, err := readUint64Vec(buf, off, count)
	if err != nil {
		return nil, err
	}
	keys, err := splitPacked(buf, off, ksizes)
	if err != nil {
		return nil, err
	}
	off += int(sumSizes(ksizes))
	values, err := splitPacked(buf, off, vsizes)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if len(k) == 0 {
			return nil, ErrInvalidArgs
		}
	}
	return &PutBulk{Keys: keys, Values: values}, nil
}

// EncodePutBulk serializes keys/values into buf using the put_bulk layout,
// returning the number of bytes written. buf must be at least
// PutBulkSize(keys, values) bytes.
func EncodePutBulk(buf []byte, keys, values [][]byte) (int, error) {
	n := len(keys)
	ksizes := make([]uint64, n)
	vsizes := make([]uint64, n)
	for i := range keys {
		ksizes[i] = uint64(len(keys[i]))
		vsizes[i] = uint64(len(values[i]))
	}
	off, err := writeUint64Vec(buf, 0, ksizes)
	if err != nil {
		return 0, err
	}
	off, err = writeUint64Vec(buf, off, vsizes)
	if err != nil {
		return 0, err
	}
	for _, k := range keys {
		off += copy(buf[off:], k)
	}
	for _, v := range values {
		off += copy(buf[off:], v)
	}
	return off, nil
}

// PutBulkSize returns the number of bytes EncodePutBulk needs.
func PutBulkSize(keys, values [][]byte) int {
	size := 2 * len(keys) * sizeOfUint64
	for _, k := range keys {
		size += len(k)
	}
	for _, v := range values {
		size += len(v)
	}
	return size
}
