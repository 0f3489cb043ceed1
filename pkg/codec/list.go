package codec

import "github.com/mochi-hpc/yokan-go/pkg/wire"

// ListBulk is the decoded form of a list_keys_bulk / list_keyvals_bulk
// payload: `[from_key][filter][ksizes][vsizes?][keys buf][vals buf?]`
// (spec.md §4.1). count is the maximum number of entries the caller
// will accept; the provider may return fewer, marking unused ksizes
// slots with wire.NoMoreKeys.
type ListBulk struct {
	FromKey []byte
	Filter  []byte
	KeyArea []byte
	// ValArea is nil for list_keys_bulk (WithValues == false).
	ValArea    []byte
	WithValues bool

	ksizesOff int
	vsizesOff int
	count     int
}

// DecodeListBulk parses a list_keys_bulk/list_keyvals_bulk region.
// fromKeySize and filterSize come from the RPC's scalar fields;
// keyBufSize/valBufSize bound the trailing key/value destination areas.
func DecodeListBulk(r Region, count, fromKeySize, filterSize, keyBufSize, valBufSize int, withValues bool) (*ListBulk, error) {
	if err := checkContiguous(r); err != nil {
		return nil, err
	}
	buf := r.Bytes()
	off := 0

	if off+fromKeySize > len(buf) {
		return nil, ErrTooSmall
	}
	fromKey := buf[off : off+fromKeySize]
	off += fromKeySize

	if off+filterSize > len(buf) {
		return nil, ErrTooSmall
	}
	filter := buf[off : off+filterSize]
	off += filterSize

	ksizesOff := off
	off += count * sizeOfUint64
	if off > len(buf) {
		return nil, ErrTooSmall
	}

	vsizesOff := -1
	if withValues {
		vsizesOff = off
		off += count * sizeOfUint64
		if off > len(buf) {
			return nil, ErrTooSmall
		}
	}

	if off+keyBufSize > len(buf) {
		return nil, ErrTooSmall
	}
	keyArea := buf[off : off+keyBufSize]
	off += keyBufSize

	var valArea []byte
	if withValues {
		if off+valBufSize > len(buf) {
			return nil, ErrTooSmall
		}
		valArea = buf[off : off+valBufSize]
	}

	return &ListBulk{
		FromKey:    fromKey,
		Filter:     filter,
		KeyArea:    keyArea,
		ValArea:    valArea,
		WithValues: withValues,
		ksizesOff:  ksizesOff,
		vsizesOff:  vsizesOff,
		count:      count,
	}, nil
}

// WriteResultSizes writes the resolved key sizes (and, when WithValues,
// value sizes) back into the ksizes/vsizes vectors. Slots beyond the
// given sizes, up to the decoded count, are filled with wire.NoMoreKeys.
func (l *ListBulk) WriteResultSizes(r Region, ksizes, vsizes []uint64) error {
	buf := r.Bytes()
	if _, err := writeUint64Vec(buf, l.ksizesOff, pad(ksizes, l.count)); err != nil {
		return err
	}
	if l.WithValues {
		if _, err := writeUint64Vec(buf, l.vsizesOff, pad(vsizes, l.count)); err != nil {
			return err
		}
	}
	return nil
}

func pad(sizes []uint64, n int) []uint64 {
	if len(sizes) == n {
		return sizes
	}
	out := make([]uint64, n)
	copy(out, sizes)
	for i := len(sizes); i < n; i++ {
		out[i] = wire.NoMoreKeys
	}
	return out
}
