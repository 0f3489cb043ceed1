package codec

// LengthBulk is the decoded form of a length_bulk payload: key sizes,
// packed keys, then a writable value-sizes vector (spec.md §4.1).
type LengthBulk struct {
	Keys [][]byte

	vsizesOff int
}

// DecodeLengthBulk parses a length_bulk region holding count items.
func DecodeLengthBulk(r Region, count int) (*LengthBulk, error) {
	if count == 0 {
		return &LengthBulk{}, nil
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
	off += int(sumSizes(ksizes))
	if off+len(ksizes)*sizeOfUint64 > len(buf) {
		return nil, ErrTooSmall
	}
	return &LengthBulk{Keys: keys, vsizesOff: off}, nil
}

// WriteResultSizes writes the resolved lengths (or sentinels) into the
// trailing vsizes vector.
func (l *LengthBulk) WriteResultSizes(r Region, sizes []uint64) error {
	_, err := writeUint64Vec(r.Bytes(), l.vsizesOff, sizes)
	return err
}
