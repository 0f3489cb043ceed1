// Package codec implements the bulk-transfer wire layouts of spec.md §4.1:
// the packed byte layout every batch RPC (put/get/erase/exists/length/
// list/doc_*) uses to describe its keys, values, sizes, and filters over
// a single staging buffer.
//
// Every Decode function takes the already-pulled contents of a staging
// buffer (see pkg/buffer) plus a Region describing how many contiguous
// RDMA segments backed it; a region with more than one segment fails with
// ErrNonContig, matching spec.md's "bulk-access segment count equals 1 for
// every region it reads directly" rule. Decode functions never copy more
// than once: returned key/value slices alias the input buffer.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/mochi-hpc/yokan-go/pkg/wire"
)

// Region describes a chunk of a staging buffer pulled from (or to be
// pushed to) a bulk handle. Implementations live in pkg/transport;
// pkg/codec only needs this much of the shape.
type Region interface {
	Bytes() []byte
	Segments() int
}

var (
	ErrNonContig   = fmt.Errorf("codec: bulk region is not contiguous")
	ErrTooSmall    = fmt.Errorf("codec: payload smaller than header requires")
	ErrBadPackedSize = fmt.Errorf("codec: advertised packed buffer size does not match descriptor sum")
	ErrInvalidArgs = fmt.Errorf("codec: invalid arguments")
)

const sizeOfUint64 = 8

// SizeOfUint64 is the wire width of every size/id field these layouts
// use (spec.md §4.1: "64-bit little-endian"), exported for callers that
// need to compute a region offset without duplicating the constant.
const SizeOfUint64 = sizeOfUint64

// checkContiguous enforces the single-segment rule for a region this
// codec is about to read directly.
func checkContiguous(r Region) error {
	if r.Segments() != 1 {
		return ErrNonContig
	}
	return nil
}

// readUint64Vec reads n little-endian uint64s starting at offset off.
func readUint64Vec(buf []byte, off int, n int) ([]uint64, int, error) {
	need := n * sizeOfUint64
	if off+need > len(buf) {
		return nil, 0, ErrTooSmall
	}
	out := make([]uint64, n)
	for i := 0; i < n; i++ {
		out[i] = binary.LittleEndian.Uint64(buf[off+i*sizeOfUint64:])
	}
	return out, off + need, nil
}

// writeUint64Vec writes vals as little-endian uint64s starting at offset
// off and returns the new offset, failing with ErrTooSmall if buf is too
// short to hold them.
func writeUint64Vec(buf []byte, off int, vals []uint64) (int, error) {
	need := len(vals) * sizeOfUint64
	if off+need > len(buf) {
		return 0, ErrTooSmall
	}
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[off+i*sizeOfUint64:], v)
	}
	return off + need, nil
}

// sumSizes adds up a vector of sizes, treating sentinels as zero-width
// (a sentinel never contributes bytes to a packed region).
func sumSizes(sizes []uint64) uint64 {
	var total uint64
	for _, s := range sizes {
		if wire.IsSentinel(s) {
			continue
		}
		total += s
	}
	return total
}

// splitPacked slices buf[off:] into count consecutive pieces whose
// lengths are given by sizes, failing if buf is too short.
func splitPacked(buf []byte, off int, sizes []uint64) ([][]byte, error) {
	out := make([][]byte, len(sizes))
	pos := off
	for i, s := range sizes {
		if wire.IsSentinel(s) {
			out[i] = nil
			continue
		}
		end := pos + int(s)
		if end > len(buf) {
			return nil, ErrTooSmall
		}
		out[i] = buf[pos:end]
		pos = end
	}
	return out, nil
}

// ReadUint64VecAt reads n little-endian uint64s at offset off, for
// callers on the other end of a round trip (pkg/rpc's client side) that
// already know a region's layout and only need to read a trailer back.
func ReadUint64VecAt(buf []byte, off, n int) ([]uint64, error) {
	vals, _, err := readUint64Vec(buf, off, n)
	return vals, err
}

// SplitPacked slices buf[off:] into len(sizes) consecutive pieces sized
// by sizes, treating sentinels as zero-width — the client-side half of
// unpacking a packed get_bulk/doc_load_bulk value area.
func SplitPacked(buf []byte, off int, sizes []uint64) ([][]byte, error) {
	return splitPacked(buf, off, sizes)
}

// exists bitfield helpers (spec.md §4.1: "LSB-first within each byte").

// BitfieldLen returns the number of bytes needed to hold n bits.
func BitfieldLen(n int) int { return (n + 7) / 8 }

// SetBit sets bit i (0-indexed) in an LSB-first bitfield.
func SetBit(field []byte, i int) { field[i/8] |= 1 << uint(i%8) }

// GetBit reads bit i (0-indexed) from an LSB-first bitfield.
func GetBit(field []byte, i int) bool { return field[i/8]&(1<<uint(i%8)) != 0 }
