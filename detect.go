package mzgzip

import (
	"bufio"
	"io"
)

// DefaultDetectPeekSize is how many bytes IsMZGF inspects: the fixed
// 10-byte gzip header, the 2-byte XLEN, and the 5-byte MZ subfield.
const DefaultDetectPeekSize = gzipHeaderSize + 2 + 5

// IsMZGF reports whether r begins with a well-formed gzip member whose
// extras carry the MZ tag. Unlike plain multi-gzip, which must be sniffed
// by decompressing and looking for a sync boundary (see the teacher's
// IsProbablyMultiGzip), MZGF self-announces in its very first header, so
// this only needs to peek the first few bytes -- no decompression
// required.
//
// IsMZGF buffers ahead of what it inspects, so it wraps r in its own
// bufio.Reader; it does not consume bytes from r beyond what that
// buffering reads ahead, but the caller should not assume r's position is
// unchanged afterwards.
func IsMZGF(r io.Reader) bool {
	br := bufio.NewReaderSize(r, DefaultDetectPeekSize)
	header, err := br.Peek(DefaultDetectPeekSize)
	if err != nil {
		return false
	}
	if header[0] != gzipID1 || header[1] != gzipID2 || header[2] != gzipCM {
		return false
	}
	if header[3]&gzipFlg == 0 {
		return false
	}
	xlen := int(unpack16(header[10:12]))
	if xlen < 5 {
		return false
	}
	extras := header[12:17]
	return extras[0] == 'M' && extras[1] == 'Z'
}
