package mzgzip

import (
	"bufio"
	"compress/flate"
	"io"
	"os"
	"time"
)

// Reader opens an MZGF file: it locates the terminal EOF member, chases
// the BI chain into a BlockIndex, and then supports forward Read, virtual
// VSeek (compressed-offset + in-block offset), and USeek (pure
// uncompressed offset, resolved via the index).
//
// A Reader moves through states Fresh (zero value, unusable) -> Open
// (after Open/NewReader) -> Closed (after Close); Close is idempotent.
type Reader struct {
	f   io.ReadSeeker
	closer io.Closer

	version   byte
	mtime     uint32
	ufilesize uint64
	zfilesize int64
	dataStart uint64

	bindex *BlockIndex

	fr          io.ReadCloser // active flate decompressor
	uoffset     uint64        // uncompressed bytes produced so far, globally
	pendingSkip uint64        // bytes still to discard before returning data
	isEOF       bool
	closed      bool
}

// Open opens path and parses its MZGF structure, leaving the Reader
// positioned at the start of the uncompressed stream.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapError(FERROR, "opening file", err)
	}
	r := &Reader{f: f, closer: f}
	if err := r.init(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// NewReader adapts an already-open random-access source (for callers who
// don't have a filesystem path, e.g. an in-memory buffer under test).
func NewReader(rs io.ReadSeeker) (*Reader, error) {
	r := &Reader{f: rs}
	if c, ok := rs.(io.Closer); ok {
		r.closer = c
	}
	if err := r.init(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reader) init() error {
	// Seeking to the end to measure the file's size works for any
	// io.Seeker, not just *os.File: an in-memory bytes.Reader needs the
	// same truncated-tail check an on-disk file does.
	if end, err := r.f.Seek(0, io.SeekEnd); err == nil {
		r.zfilesize = end
		if _, err := r.f.Seek(0, io.SeekStart); err != nil {
			return wrapError(FERROR, "seeking back to start", err)
		}
	} else {
		r.zfilesize = -1
	}

	mtime, version, err := r.readFirstMember()
	if err != nil {
		return err
	}
	if version != Version {
		return newError(BAD_VERSION, "unrecognized MZGF version")
	}
	r.version = version
	r.mtime = mtime
	r.dataStart = uint64(gzipHeaderSize) + 2 + 5

	if r.zfilesize >= 0 && r.zfilesize < eofMemberSize {
		return newError(BAD_FORMAT, "file too short to contain an EOF member")
	}
	if _, err := r.f.Seek(-eofMemberSize, io.SeekEnd); err != nil {
		return wrapError(FERROR, "seeking to EOF member", err)
	}
	_, eofExtras, err := readMemberHeader(r.f, 20)
	if err != nil {
		return err
	}
	ufilesize, firstBI, ok := parseBOSubfield(eofExtras)
	if !ok {
		return newError(BAD_FORMAT, "missing BO subfield in EOF member")
	}
	r.ufilesize = ufilesize

	bindex, err := r.loadBIndexChain(firstBI)
	if err != nil {
		return err
	}
	r.bindex = bindex

	return r.seekTo(r.dataStart, 0)
}

// readFirstMember reads the combined MZ-announcement/data member's fixed
// header and extras, distinguishing "not gzip at all" (NOT_GZIP) from
// "valid gzip, but not MZGF" (NOT_MZGZIP): a plain gzip file -- one with
// no FEXTRA subfield, or an FEXTRA region that isn't the 5-byte MZ tag --
// is the latter, not a structural defect in an MZGF file.
func (r *Reader) readFirstMember() (mtime uint32, version byte, err error) {
	var hdr [gzipHeaderSize]byte
	if _, err := io.ReadFull(r.f, hdr[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, 0, wrapError(ERR_HEADER, "truncated gzip header", err)
		}
		return 0, 0, wrapError(FERROR, "reading gzip header", err)
	}
	if hdr[0] != gzipID1 || hdr[1] != gzipID2 || hdr[2] != gzipCM {
		return 0, 0, newError(NOT_GZIP, "bad magic number")
	}
	mtime = unpack32(hdr[4:8])

	if hdr[3]&gzipFlg == 0 {
		return 0, 0, newError(NOT_MZGZIP, "first member carries no extra field")
	}

	var xlenBuf [2]byte
	if _, err := io.ReadFull(r.f, xlenBuf[:]); err != nil {
		return 0, 0, wrapError(ERR_HEADER, "truncated XLEN", err)
	}
	xlen := int(unpack16(xlenBuf[:]))

	if xlen != 5 {
		if xlen > 0 {
			if _, err := io.CopyN(io.Discard, r.f, int64(xlen)); err != nil {
				return 0, 0, wrapError(ERR_HEADER, "truncated gzip extras", err)
			}
		}
		return 0, 0, newError(NOT_MZGZIP, "first member does not carry an MZ subfield")
	}

	var extras [5]byte
	if _, err := io.ReadFull(r.f, extras[:]); err != nil {
		return 0, 0, wrapError(ERR_HEADER, "truncated gzip extras", err)
	}
	version, perr := parseMZSubfield(extras[:])
	if perr != nil {
		return 0, 0, newError(NOT_MZGZIP, "first member does not carry an MZ subfield")
	}
	return mtime, version, nil
}

func (r *Reader) loadBIndexChain(first uint64) (*BlockIndex, error) {
	bi := &BlockIndex{}
	offset := first
	for {
		if _, err := r.f.Seek(int64(offset), io.SeekStart); err != nil {
			return nil, wrapError(FERROR, "seeking to BI member", err)
		}
		_, extras, err := readMemberHeader(r.f, 0xFFFF)
		if err != nil {
			return nil, err
		}
		next, pairs, perr := parseBISubfield(extras)
		if perr != nil {
			return nil, perr
		}
		for _, p := range pairs {
			bi.append(p.ZOffset, p.UOffset)
		}
		if next == 0 {
			break
		}
		offset = next
	}
	return bi, nil
}

// seekTo positions the reader at zoffset (a block start), discards
// inblock bytes of uncompressed output before the next Read returns data,
// and reinitializes the INFLATE context: raw-deflate blocks carry no
// history, so every seek needs a fresh decompressor.
func (r *Reader) seekTo(zoffset, inblock uint64) error {
	if _, err := r.f.Seek(int64(zoffset), io.SeekStart); err != nil {
		return wrapError(FERROR, "seeking", err)
	}
	r.fr = flate.NewReader(bufio.NewReader(r.f))
	r.isEOF = false

	base := uint64(0)
	if idx, ok := r.bindex.findByZOffset(zoffset); ok {
		base = r.bindex.entries[idx].UOffset
	}
	r.uoffset = base + inblock
	r.pendingSkip = inblock
	return nil
}

// Read implements io.Reader, delivering decompressed bytes from the
// current position.
func (r *Reader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, newError(BAD_FORMAT, "read on closed reader")
	}
	if r.pendingSkip > 0 {
		n, err := io.CopyN(io.Discard, r.fr, int64(r.pendingSkip))
		r.pendingSkip -= uint64(n)
		if err != nil {
			if err == io.EOF {
				r.isEOF = true
				r.pendingSkip = 0
			} else {
				return 0, wrapError(FERROR, "skipping to in-block offset", err)
			}
		}
		if r.pendingSkip > 0 {
			return 0, io.EOF
		}
	}
	if r.isEOF {
		return 0, io.EOF
	}
	n, err := r.fr.Read(p)
	r.uoffset += uint64(n)
	if err == io.EOF {
		r.isEOF = true
		return n, io.EOF
	}
	if err != nil {
		return n, wrapError(FERROR, "inflating", err)
	}
	return n, nil
}

// VTell returns the current compressed byte position as an opaque virtual
// offset: callers should not interpret it beyond passing it to VSeek.
func (r *Reader) VTell() uint64 {
	if r.bindex.Len() == 0 {
		return r.dataStart << 16
	}
	i := r.bindex.lookup(r.uoffset)
	voffset, uoffset := r.bindex.Entry(i)
	return voffset | (r.uoffset - uoffset)
}

// VSeek splits voffset into a high-48-bit block start and a low-16-bit
// in-block offset, seeks there, and reinitializes decompression.
func (r *Reader) VSeek(voffset uint64) error {
	return r.seekTo(voffset>>16, voffset&0xFFFF)
}

// USeek positions the reader at a pure uncompressed-stream offset,
// resolved through a binary search of the BlockIndex.
func (r *Reader) USeek(uofs uint64) error {
	if r.bindex.Len() == 0 {
		return newError(BAD_FORMAT, "empty block index")
	}
	i := r.bindex.lookup(uofs)
	e := r.bindex.entries[i]
	return r.seekTo(e.ZOffset, uofs-e.UOffset)
}

// Close releases the INFLATE context and file handle. Idempotent.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.fr != nil {
		r.fr.Close()
	}
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// BIndex exposes the parsed BlockIndex for read-only listing.
func (r *Reader) BIndex() *BlockIndex { return r.bindex }

// Version returns the MZGF format version declared by the file.
func (r *Reader) Version() byte { return r.version }

// MTime returns the wall-clock time recorded at write time.
func (r *Reader) MTime() time.Time { return time.Unix(int64(r.mtime), 0) }

// UFileSize returns the uncompressed size recorded in the EOF member.
func (r *Reader) UFileSize() uint64 { return r.ufilesize }

// ZFileSize returns the size of the compressed stream, or -1 if the
// source did not support seeking to measure it.
func (r *Reader) ZFileSize() int64 { return r.zfilesize }

// --- subfield decoding ---

func parseMZSubfield(extras []byte) (byte, error) {
	if len(extras) != 5 || extras[0] != 'M' || extras[1] != 'Z' {
		return 0, newError(BAD_FORMAT, "malformed MZ subfield")
	}
	if unpack16(extras[2:4]) != 1 {
		return 0, newError(BAD_FORMAT, "malformed MZ subfield length")
	}
	return extras[4], nil
}

func parseBOSubfield(extras []byte) (ufilesize, firstBIOffset uint64, ok bool) {
	if len(extras) != 20 || extras[0] != 'B' || extras[1] != 'O' {
		return 0, 0, false
	}
	if unpack16(extras[2:4]) != 16 {
		return 0, 0, false
	}
	return unpack64(extras[4:12]), unpack64(extras[12:20]), true
}

// parseBISubfield decodes a BI subfield's next pointer and pairs. The tag
// check requires both bytes to match; using || instead of && would wrongly
// accept a mismatched tag as a BI subfield.
func parseBISubfield(extras []byte) (next uint64, pairs []bindexEntry, err error) {
	if len(extras) < 12 {
		return 0, nil, newError(BAD_FORMAT, "truncated BI subfield")
	}
	if !(extras[0] == 'B' && extras[1] == 'I') {
		return 0, nil, newError(BAD_FORMAT, "missing MZGF block index tag")
	}
	length := int(unpack16(extras[2:4]))
	if length < 8 || 4+length > len(extras) {
		return 0, nil, newError(BAD_FORMAT, "truncated BI subfield payload")
	}
	next = unpack64(extras[4:12])
	payload := extras[12 : 4+length]
	if len(payload)%16 != 0 {
		return 0, nil, newError(BAD_FORMAT, "malformed BI pair payload")
	}
	n := len(payload) / 16
	pairs = make([]bindexEntry, n)
	for i := 0; i < n; i++ {
		off := i * 16
		pairs[i].ZOffset = unpack64(payload[off : off+8])
		pairs[i].UOffset = unpack64(payload[off+8 : off+16])
	}
	return next, pairs, nil
}
