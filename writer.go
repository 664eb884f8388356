package mzgzip

import (
	"bytes"
	"compress/flate"
	"hash/crc32"
	"io"
	"time"
)

const (
	// Version is the MZGF format version this package writes and accepts.
	Version = 1

	// BlockSize is the size of each uncompressed block the Writer reads
	// and flushes as an independently inflatable DEFLATE block.
	BlockSize = 0xFF00

	// MaxBlockSize bounds the compressed output of a single block: the
	// ceiling compressBound(BlockSize) must not exceed, checked here as a
	// sanity check rather than a hard zlib-style assert.
	MaxBlockSize = 0x10000

	// maxPairsPerBI is the largest number of (zoffset, uoffset) pairs
	// that fit in one BI member's extras region without exceeding the
	// 65535-byte XLEN limit: length = 8 + 16*n <= 65531.
	maxPairsPerBI = 4095
)

func biMemberSize(npairs int) int64 {
	// 10 (fixed header) + 2 (XLEN) + 4 (tag+len) + 8 (next) + 16*n (pairs)
	// + 2 (empty deflate body) + 8 (trailer)
	return 34 + 16*int64(npairs)
}

const eofMemberSize = 42 // 10 + 2 + 4 + 16 + 2 + 8; see DESIGN.md

// Writer produces an MZGF file from a raw byte source. A Writer is valid
// for exactly one Deflate call; it holds no state across invocations
// beyond the construction-time mtime.
type Writer struct {
	mtime uint32
}

// NewWriter returns a Writer stamped with the current wall-clock time, the
// MTIME value recorded in every emitted gzip member.
func NewWriter() *Writer {
	return &Writer{mtime: uint32(time.Now().Unix())}
}

// Deflate reads all of src, compresses it into dst as an MZGF file, and
// returns the BlockIndex it built (useful to callers who want to keep it
// around instead of re-opening the file with a Reader).
func (w *Writer) Deflate(src io.Reader, dst io.Writer) (*BlockIndex, error) {
	bi := &BlockIndex{}

	extras := buildMZSubfield(Version)
	headerSize, err := writeMemberHeader(dst, w.mtime, extras)
	if err != nil {
		return nil, err
	}
	zoffset := uint64(headerSize)

	crc := crc32.NewIEEE()
	var usize uint64

	buf := make([]byte, BlockSize)
	eof := false
	for !eof {
		n, rerr := fillBuffer(src, buf)
		if rerr != nil {
			if rerr == io.EOF {
				eof = true
			} else {
				return nil, wrapError(FERROR, "reading source block", rerr)
			}
		}
		data := buf[:n]

		bi.append(zoffset, usize)
		crc.Write(data)
		usize += uint64(n)

		written, cerr := compressBlock(dst, data, eof)
		if cerr != nil {
			return nil, cerr
		}
		zoffset += uint64(written)
	}

	if _, err := writeMemberTrailer(dst, crc.Sum32(), uint32(usize)); err != nil {
		return nil, err
	}
	zoffset += gzipTrailerSize

	firstBIOffset, nextZoffset, err := writeBIndexChain(dst, zoffset, w.mtime, bi)
	if err != nil {
		return nil, err
	}
	zoffset = nextZoffset

	if err := writeEOFMember(dst, w.mtime, usize, firstBIOffset); err != nil {
		return nil, err
	}

	return bi, nil
}

// fillBuffer reads from r until buf is full or r is exhausted. It returns
// the number of bytes read and io.EOF if fewer than len(buf) bytes were
// available (signaling no more data follows), or nil if buf was filled
// completely (more data may still remain).
func fillBuffer(r io.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			if err == io.EOF {
				return n, io.EOF
			}
			return n, err
		}
	}
	return n, nil
}

// compressBlock deflates data into a fresh raw-DEFLATE stream (no shared
// dictionary with any prior block, reproducing zlib's Z_FULL_FLUSH
// history-clearing effect) and writes the result to dst. final selects
// FINISH (a terminal block) over FULL_FLUSH (a byte-aligned, restartable,
// non-terminal block).
func compressBlock(dst io.Writer, data []byte, final bool) (int64, error) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return 0, wrapError(FERROR, "initializing deflate", err)
	}
	if _, err := fw.Write(data); err != nil {
		return 0, wrapError(FERROR, "deflating block", err)
	}
	if final {
		if err := fw.Close(); err != nil {
			return 0, wrapError(FERROR, "finalizing deflate stream", err)
		}
	} else {
		if err := fw.Flush(); err != nil {
			return 0, wrapError(FERROR, "flushing deflate block", err)
		}
	}
	if buf.Len() > MaxBlockSize {
		return 0, newError(BAD_FORMAT, "compressed block exceeds MAX_BLOCK_SIZE")
	}
	n, err := dst.Write(buf.Bytes())
	if err != nil {
		return int64(n), wrapError(FERROR, "writing compressed block", err)
	}
	return int64(n), nil
}

// writeBIndexChain emits one or more BI-tagged members carrying the block
// index, chained by absolute file offset, and returns the offset of the
// first one (for the EOF member's BO subfield) plus the zoffset after the
// last one.
func writeBIndexChain(dst io.Writer, zoffset uint64, mtime uint32, bi *BlockIndex) (firstOffset, nextZoffset uint64, err error) {
	firstOffset = zoffset
	entries := bi.entries
	if len(entries) == 0 {
		return 0, zoffset, nil
	}

	for start := 0; start < len(entries); start += maxPairsPerBI {
		end := start + maxPairsPerBI
		if end > len(entries) {
			end = len(entries)
		}
		group := entries[start:end]

		var next uint64
		if end < len(entries) {
			next = zoffset + uint64(biMemberSize(len(group)))
		}

		extras := buildBISubfield(next, group)
		n, werr := writeMemberHeader(dst, mtime, extras)
		if werr != nil {
			return 0, 0, werr
		}
		zoffset += uint64(n)

		eb, werr := writeEmptyBody(dst)
		if werr != nil {
			return 0, 0, werr
		}
		zoffset += uint64(eb)

		tn, werr := writeMemberTrailer(dst, 0, 0)
		if werr != nil {
			return 0, 0, werr
		}
		zoffset += uint64(tn)
	}

	return firstOffset, zoffset, nil
}

// writeEOFMember emits the terminal 42-byte EOF member carrying the BO
// subfield that locates the uncompressed file size and the first BI
// member's offset.
func writeEOFMember(dst io.Writer, mtime uint32, ufilesize, firstBIOffset uint64) error {
	extras := buildBOSubfield(ufilesize, firstBIOffset)
	if _, err := writeMemberHeader(dst, mtime, extras); err != nil {
		return err
	}
	if _, err := writeEmptyBody(dst); err != nil {
		return err
	}
	if _, err := writeMemberTrailer(dst, 0, 0); err != nil {
		return err
	}
	return nil
}

// --- subfield encoding ---

func buildMZSubfield(version byte) []byte {
	buf := make([]byte, 5)
	buf[0], buf[1] = 'M', 'Z'
	pack16(buf[2:4], 1)
	buf[4] = version
	return buf
}

func buildBOSubfield(ufilesize, firstBIOffset uint64) []byte {
	buf := make([]byte, 20)
	buf[0], buf[1] = 'B', 'O'
	pack16(buf[2:4], 16)
	pack64(buf[4:12], ufilesize)
	pack64(buf[12:20], firstBIOffset)
	return buf
}

func buildBISubfield(next uint64, group []bindexEntry) []byte {
	length := 8 + 16*len(group)
	buf := make([]byte, 4+length)
	buf[0], buf[1] = 'B', 'I'
	pack16(buf[2:4], uint16(length))
	pack64(buf[4:12], next)
	off := 12
	for _, e := range group {
		pack64(buf[off:off+8], e.ZOffset)
		pack64(buf[off+8:off+16], e.UOffset)
		off += 16
	}
	return buf
}
