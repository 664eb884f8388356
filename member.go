package mzgzip

import (
	"io"
)

// This file constructs and parses a single RFC 1952 gzip member: a fixed
// 10-byte header, an optional FEXTRA subfield region, a raw DEFLATE
// payload, and an 8-byte trailer. It has no notion of the MZGF-specific
// subfield tags layered on top; those are built/parsed by writer.go and
// reader.go using the helpers below.

const (
	gzipID1   = 0x1f
	gzipID2   = 0x8b
	gzipCM    = 8    // CM = 8 (DEFLATE)
	gzipFlg   = 0x04 // FEXTRA set, no FNAME/FCOMMENT/FHCRC/FTEXT
	gzipXFL   = 0
	gzipOSUnk = 255

	gzipHeaderSize  = 10
	gzipTrailerSize = 8

	// emptyDeflateBlock is the raw-deflate encoding of a single, final,
	// fixed-Huffman block holding only the end-of-block code: used for the
	// index-carrier and EOF members,
	// which carry no uncompressed bytes.
	emptyDeflateBlockByte0 = 0x03
	emptyDeflateBlockByte1 = 0x00
)

// writeMemberHeader writes the fixed 10-byte gzip header followed by the
// extras verbatim, and returns the number of bytes written.
func writeMemberHeader(w io.Writer, mtime uint32, extras []byte) (int64, error) {
	if len(extras) > 0xFFFF {
		return 0, newError(BAD_FORMAT, "extras region exceeds XLEN limit")
	}
	var hdr [gzipHeaderSize]byte
	hdr[0] = gzipID1
	hdr[1] = gzipID2
	hdr[2] = gzipCM
	hdr[3] = gzipFlg
	pack32(hdr[4:8], mtime)
	hdr[8] = gzipXFL
	hdr[9] = gzipOSUnk
	// XLEN lives at offset 10, but our fixed array stops at 10; encode it
	// into its own 2-byte buffer, written right after the fixed header.
	var xlen [2]byte
	pack16(xlen[:], uint16(len(extras)))

	n, err := w.Write(hdr[:])
	if err != nil {
		return int64(n), wrapError(FERROR, "writing gzip header", err)
	}
	total := int64(n)

	n, err = w.Write(xlen[:])
	if err != nil {
		return total + int64(n), wrapError(FERROR, "writing gzip XLEN", err)
	}
	total += int64(n)

	if len(extras) > 0 {
		n, err = w.Write(extras)
		if err != nil {
			return total + int64(n), wrapError(FERROR, "writing gzip extras", err)
		}
		total += int64(n)
	}
	return total, nil
}

// readMemberHeader reads the fixed 10-byte gzip header and its extras
// region. maxExtra bounds the accepted XLEN; an XLEN larger than maxExtra
// is rejected as BAD_FORMAT so a caller with a fixed-size extras buffer
// cannot be made to allocate unboundedly.
func readMemberHeader(r io.Reader, maxExtra int) (mtime uint32, extras []byte, err error) {
	var hdr [gzipHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, nil, wrapError(ERR_HEADER, "truncated gzip header", err)
		}
		return 0, nil, wrapError(FERROR, "reading gzip header", err)
	}

	if hdr[0] != gzipID1 || hdr[1] != gzipID2 {
		return 0, nil, newError(NOT_GZIP, "bad magic number")
	}
	if hdr[2] != gzipCM {
		return 0, nil, newError(NOT_GZIP, "unsupported compression method")
	}
	if hdr[3]&gzipFlg == 0 {
		return 0, nil, newError(BAD_FORMAT, "FEXTRA flag not set")
	}
	mtime = unpack32(hdr[4:8])

	var xlenBuf [2]byte
	if _, err := io.ReadFull(r, xlenBuf[:]); err != nil {
		return 0, nil, wrapError(ERR_HEADER, "truncated XLEN", err)
	}
	xlen := int(unpack16(xlenBuf[:]))
	if xlen > maxExtra {
		return 0, nil, newError(BAD_FORMAT, "XLEN exceeds expected maximum")
	}

	extras = make([]byte, xlen)
	if xlen > 0 {
		if _, err := io.ReadFull(r, extras); err != nil {
			return 0, nil, wrapError(ERR_HEADER, "truncated gzip extras", err)
		}
	}
	return mtime, extras, nil
}

// writeEmptyBody writes the two-byte raw-deflate literal for an empty,
// final, fixed-Huffman block -- used by members that carry no uncompressed data
// (index carriers and the EOF member).
func writeEmptyBody(w io.Writer) (int64, error) {
	buf := [2]byte{emptyDeflateBlockByte0, emptyDeflateBlockByte1}
	n, err := w.Write(buf[:])
	if err != nil {
		return int64(n), wrapError(FERROR, "writing empty deflate body", err)
	}
	return int64(n), nil
}

// writeMemberTrailer writes the 8-byte CRC32/ISIZE trailer.
func writeMemberTrailer(w io.Writer, crc, isize uint32) (int64, error) {
	var buf [gzipTrailerSize]byte
	pack32(buf[0:4], crc)
	pack32(buf[4:8], isize)
	n, err := w.Write(buf[:])
	if err != nil {
		return int64(n), wrapError(FERROR, "writing gzip trailer", err)
	}
	return int64(n), nil
}

// readMemberTrailer reads the 8-byte CRC32/ISIZE trailer.
func readMemberTrailer(r io.Reader) (crc, isize uint32, err error) {
	var buf [gzipTrailerSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, 0, wrapError(ERR_HEADER, "truncated gzip trailer", err)
	}
	return unpack32(buf[0:4]), unpack32(buf[4:8]), nil
}
