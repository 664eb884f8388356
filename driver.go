package mzgzip

import (
	"io"
	"time"
)

// This file holds the small set of operations exported to the CLI: the
// CLI itself does the flag parsing and file handling, and calls through
// to Compress/Decompress/List here. Grounded on cmd/multigz/multigz.go's
// compressFile, lifted out of main into reusable functions.

// Compress reads all of src and writes an MZGF file to dst, returning the
// BlockIndex it built.
func Compress(src io.Reader, dst io.Writer) (*BlockIndex, error) {
	return NewWriter().Deflate(src, dst)
}

// Decompress copies decompressed bytes from r to dst in BlockSize-sized
// chunks, until EOF or limit bytes have been written. A non-positive
// limit means "no limit".
func Decompress(r *Reader, dst io.Writer, limit int64) error {
	buf := make([]byte, BlockSize)
	var written int64
	for limit <= 0 || written < limit {
		want := len(buf)
		if limit > 0 {
			if remaining := limit - written; remaining < int64(want) {
				want = int(remaining)
			}
		}
		n, err := r.Read(buf[:want])
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return wrapError(FERROR, "writing decompressed output", werr)
			}
			written += int64(n)
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
	return nil
}

// ListEntry is one row of a block-index listing: VOffset is the
// zoffset<<16 virtual offset a caller can hand to VSeek, UOffset is the
// corresponding uncompressed offset.
type ListEntry struct {
	VOffset uint64
	UOffset uint64
}

// Listing is the summary List returns: format metadata plus the full
// block index.
type Listing struct {
	Version   byte
	MTime     time.Time
	UFileSize uint64
	ZFileSize int64
	Entries   []ListEntry
}

// List collects the format metadata and the full block index of an already
// opened Reader, for a CLI's -l/--list mode.
func List(r *Reader) Listing {
	bi := r.BIndex()
	entries := make([]ListEntry, bi.Len())
	for i := range entries {
		v, u := bi.Entry(i)
		entries[i] = ListEntry{VOffset: v, UOffset: u}
	}
	return Listing{
		Version:   r.Version(),
		MTime:     r.MTime(),
		UFileSize: r.UFileSize(),
		ZFileSize: r.ZFileSize(),
		Entries:   entries,
	}
}
