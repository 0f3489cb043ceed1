package codec

// DocStoreBulk is the decoded form of a doc_store_bulk payload: packed
// value sizes and packed document bytes, analogous to put_bulk but
// without keys — the collection assigns ids (spec.md §4.1, §4.5).
type DocStoreBulk struct {
	Docs [][]byte

	idsOff int
}

// DecodeDocStoreBulk parses a doc_store_bulk region holding count docs,
// with a trailing id vector the provider fills in with assigned ids.
func DecodeDocStoreBulk(r Region, count int) (*DocStoreBulk, error) {
	if count == 0 {
		return &DocStoreBulk{}, nil
	}
	if err := checkContiguous(r); err != nil {
		return nil, err
	}
	buf := r.Bytes()

	vsizes, off, err := readUint64Vec(buf, 0, count)
	if err != nil {
		return nil, err
	}
	docs, err := splitPacked(buf, off, vsizes)
	if err != nil {
		return nil, err
	}
	off += int(sumSizes(vsizes))
	idsOff := off
	if idsOff+count*sizeOfUint64 > len(buf) {
		return nil, ErrTooSmall
	}
	return &DocStoreBulk{Docs: docs, idsOff: idsOff}, nil
}

// WriteAssignedIDs writes the ids the collection assigned to each
// stored document, in request order.
func (d *DocStoreBulk) WriteAssignedIDs(r Region, ids []uint64) error {
	_, err := writeUint64Vec(r.Bytes(), d.idsOff, ids)
	return err
}

// EncodeDocStoreBulk serializes docs into buf using the doc_store_bulk
// layout (vsizes, packed docs, and a zeroed id trailer for the provider
// to fill in). buf must be at least DocStoreBulkSize(docs) bytes.
func EncodeDocStoreBulk(buf []byte, docs [][]byte) (int, error) {
	vsizes := make([]uint64, len(docs))
	for i, d := range docs {
		vsizes[i] = uint64(len(d))
	}
	off, err := writeUint64Vec(buf, 0, vsizes)
	if err != nil {
		return 0, err
	}
	for _, d := range docs {
		off += copy(buf[off:], d)
	}
	return off, nil
}

// DocStoreBulkSize returns the buffer size EncodeDocStoreBulk needs,
// including the trailing id vector the provider writes the assigned
// ids into.
func DocStoreBulkSize(docs [][]byte) int {
	size := 2 * len(docs) * sizeOfUint64
	for _, d := range docs {
		size += len(d)
	}
	return size
}

// DocIDsBulk is the decoded form of the id-vector-then-trailer layout
// shared by doc_erase_bulk/doc_length_bulk (doc_load_bulk has its own
// DocLoadBulk): a
// vector of 64-bit ids takes the place put_bulk/erase_bulk give to key
// sizes (spec.md §4.1 "doc_*: analogous, with 64-bit id vectors taking
// the place of key-size vectors where appropriate").
type DocIDsBulk struct {
	IDs []uint64

	// trailerOff is where a writable trailer (vsizes for doc_length,
	// or nothing for doc_erase) starts, right after the id vector.
	trailerOff int
}

// DecodeDocIDsBulk parses the id-vector-only prefix shared by
// doc_erase_bulk and doc_length_bulk.
func DecodeDocIDsBulk(r Region, count int) (*DocIDsBulk, error) {
	if count == 0 {
		return &DocIDsBulk{}, nil
	}
	if err := checkContiguous(r); err != nil {
		return nil, err
	}
	buf := r.Bytes()
	ids, off, err := readUint64Vec(buf, 0, count)
	if err != nil {
		return nil, err
	}
	return &DocIDsBulk{IDs: ids, trailerOff: off}, nil
}

// WriteResultSizes writes resolved lengths (or wire.KeyNotFound-style
// sentinels, reused for documents as wire.IsSentinel treats them
// uniformly) into the trailing vsizes vector of a doc_length_bulk call.
func (d *DocIDsBulk) WriteResultSizes(r Region, sizes []uint64) error {
	buf := r.Bytes()
	if d.trailerOff+len(sizes)*sizeOfUint64 > len(buf) {
		return ErrTooSmall
	}
	_, err := writeUint64Vec(buf, d.trailerOff, sizes)
	return err
}

// EncodeDocIDsBulk serializes ids using the doc_erase_bulk layout (no
// trailer).
func EncodeDocIDsBulk(buf []byte, ids []uint64) (int, error) {
	return writeUint64Vec(buf, 0, ids)
}

// DocIDsBulkSize returns the buffer size EncodeDocIDsBulk needs;
// withTrailer reserves room for a result vsizes vector
// (doc_length_bulk; doc_erase_bulk passes false).
func DocIDsBulkSize(ids []uint64, withTrailer bool) int {
	size := len(ids) * sizeOfUint64
	if withTrailer {
		size += len(ids) * sizeOfUint64
	}
	return size
}

// DocLoadBulk is the decoded form of a doc_load_bulk payload: an id
// vector, a packed flag, and a destination byte area the provider
// fills with the requested documents (mirrors GetBulk).
type DocLoadBulk struct {
	IDs    []uint64
	Packed bool

	vsizesOff int
	docArea   []byte
}

// DecodeDocLoadBulk parses a doc_load_bulk region holding count ids.
func DecodeDocLoadBulk(r Region, count int, packed bool) (*DocLoadBulk, error) {
	if count == 0 {
		return &DocLoadBulk{}, nil
	}
	if err := checkContiguous(r); err != nil {
		return nil, err
	}
	buf := r.Bytes()

	ids, off, err := readUint64Vec(buf, 0, count)
	if err != nil {
		return nil, err
	}
	vsizesOff := off
	_, off, err = readUint64Vec(buf, off, count)
	if err != nil {
		return nil, err
	}
	return &DocLoadBulk{IDs: ids, Packed: packed, vsizesOff: vsizesOff, docArea: buf[off:]}, nil
}

// DocArea returns the destination region documents are copied into.
func (d *DocLoadBulk) DocArea() []byte { return d.docArea }

// WriteResultSizes overwrites the vsizes vector with the actual sizes
// (or wire.KeyNotFound/wire.SizeTooSmall) produced while filling DocArea.
func (d *DocLoadBulk) WriteResultSizes(r Region, sizes []uint64) error {
	_, err := writeUint64Vec(r.Bytes(), d.vsizesOff, sizes)
	return err
}

// EncodeDocLoadBulk serializes a doc_load_bulk request region: an id
// vector followed by a zeroed vsizes trailer (unused as input, present
// for decode symmetry with DecodeDocLoadBulk). The destination doc
// area is left to the caller — buf must be at least
// DocLoadBulkSize(ids, docAreaSize) bytes.
func EncodeDocLoadBulk(buf []byte, ids []uint64) (int, error) {
	off, err := writeUint64Vec(buf, 0, ids)
	if err != nil {
		return 0, err
	}
	return writeUint64Vec(buf, off, make([]uint64, len(ids)))
}

// DocLoadBulkSize returns the buffer size EncodeDocLoadBulk needs given
// a trailing doc-area capacity of docAreaSize bytes.
func DocLoadBulkSize(ids []uint64, docAreaSize int) int {
	return 2*len(ids)*sizeOfUint64 + docAreaSize
}
