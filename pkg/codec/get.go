package codec

import "github.com/mochi-hpc/yokan-go/pkg/wire"

// GetBulk is the decoded form of a get_bult payload: spec.md §4.1
// "same as put, but the value region is the destination; a packed flag
// selects whether value sizes are an input ... or only an output".
type GetBulk struct {
	Keys [][]byte

	// SlotSizes are the original (input) value sizes. When Packed is
	// false they describe fixed destination slots the caller
	// pre-allocated; when Packed is true their values are irrelevant
	// (the region is filled back-to-back instead).
	SlotSizes []uint64

	Packed bool

	// vsizesOff is where the vsizes vector lives in the buffer, so
	// WriteResultSizes can overwrite it in place (the vsizes region is
	// both an input and an output of this RPC).
	vsizesOff int
	valueArea []byte
}

// DecodeGetBulk parses a get_bulk region holding count items.
func DecodeGetBulk(r Region, count int, packed bool) (*GetBulk, error) {
	if count == 0 {
		return &GetBulk{}, nil
	}
	if err := checkContiguous(r); err != nil {
		return nil, err
	}
	buf := r.Bytes()

	ksizes, off, err := readUint64Vec(buf, 0, count)
	if err != nil {
		return nil, err
	}
	vsizesOff := off
	vsizes, off, err := readUint64Vec(buf, off, count)
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
	if off > len(buf) {
		return nil, ErrTooSmall
	}
	return &GetBulk{
		Keys:      keys,
		SlotSizes: vsizes,
		Packed:    packed,
		vsizesOff: vsizesOff,
		valueArea: buf[off:],
	}, nil
}

// EncodeGetBulk serializes a get_bulk request region: key sizes, the
// caller's chosen value-area vsizes (fixed slot sizes for scatter mode;
// ignored but still present for packed mode, per spec.md §4.1), and the
// packed keys. The value area itself is left to the caller — buf must
// already be sized via GetBulkSize.
func EncodeGetBulk(buf []byte, keys [][]byte, vsizes []uint64) (int, error) {
	ksizes := make([]uint64, len(keys))
	for i, k := range keys {
		ksizes[i] = uint64(len(k))
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
	return off, nil
}

// GetBulkSize returns the buffer size EncodeGetBulk needs given a
// trailing value-area capacity of valueAreaSize bytes.
func GetBulkSize(keys [][]byte, valueAreaSize int) int {
	size := 2 * len(keys) * sizeOfUint64
	for _, k := range keys {
		size += len(k)
	}
	return size + valueAreaSize
}

// ValueArea returns the destination region for values, after keys.
func (g *GetBulk) ValueArea() []byte { return g.valueArea }

// SlotOffsets returns the cumulative start offset of each fixed slot in
// ValueArea(), used when Packed is false.
func (g *GetBulk) SlotOffsets() []int {
	offs := make([]int, len(g.SlotSizes))
	pos := 0
	for i, s := range g.SlotSizes {
		offs[i] = pos
		if !wire.IsSentinel(s) {
			pos += int(s)
		}
	}
	return offs
}

// WriteResultSizes overwrites the vsizes vector in the original buffer
// with the actual/sentinel sizes produced while filling ValueArea().
func (g *GetBulk) WriteResultSizes(r Region, sizes []uint64) error {
	buf := r.Bytes()
	_, err := writeUint64Vec(buf, g.vsizesOff, sizes)
	return err
}
