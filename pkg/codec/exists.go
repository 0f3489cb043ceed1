package codec

// ExistsBulk is the decoded form of an exists_bulk payload: key sizes,
// packed keys, then a writable bitfield trailer (spec.md §4.1).
type ExistsBulk struct {
	Keys [][]byte

	bitfieldOff int
	bitfieldLen int
}

// DecodeExistsBulk parses an exists_bulk region holding count items.
func DecodeExistsBulk(r Region, count int) (*ExistsBulk, error) {
	if count == 0 {
		return &ExistsBulk{}, nil
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
	bfLen := BitfieldLen(count)
	if off+bfLen > len(buf) {
		return nil, ErrTooSmall
	}
	return &ExistsBulk{Keys: keys, bitfieldOff: off, bitfieldLen: bfLen}, nil
}

// WriteBit sets or clears bit i of the trailing bitfield directly in the
// original region's backing buffer.
func (e *ExistsBulk) WriteBit(r Region, i int, present bool) {
	field := r.Bytes()[e.bitfieldOff : e.bitfieldOff+e.bitfieldLen]
	if present {
		SetBit(field, i)
	} else {
		field[i/8] &^= 1 << uint(i%8)
	}
}
