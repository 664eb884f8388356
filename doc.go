// Package mzgzip implements MZGF, a strict superset of gzip (RFC 1952)
// that supports efficient random access by uncompressed offset.
//
// Abstract
//
// An MZGF file is a concatenation of ordinary gzip members: a first member
// whose payload is the whole input, compressed as a series of
// independently inflatable DEFLATE blocks, plus a trailing chain of
// members that carry a block index and an EOF locator in their FEXTRA
// header fields. Any gzip-compatible decompressor can read an MZGF file
// start to finish and produce exactly the original bytes; this package
// additionally understands the extra members well enough to seek.
//
// How to use
//
// Use Writer to produce an MZGF file from a source of uncompressed bytes;
// Deflate returns the BlockIndex it built, in case the caller wants to
// keep it instead of re-deriving it by reopening the file. Use Open or
// NewReader to read one back: Read behaves like any other io.Reader, and
// VSeek/USeek reposition the stream either by the opaque virtual offset
// VTell returns, or by a plain uncompressed byte offset resolved through
// the block index.
//
// IsMZGF peeks a reader's first few bytes to tell an MZGF file apart from
// plain gzip, without having to decompress anything.
//
// Command line tool
//
// This package contains a command line tool called "mzgzip", which can be
// installed with:
//
//	$ go get github.com/slagelwa/mzgzip/cmd/mzgzip
//
// The tool is mostly compatible with "gzip", supporting its main options,
// plus a -l/--list mode that dumps the block index of an MZGF file and a
// -u/-v pair of seek flags for extracting from an arbitrary offset.
//
// Description of the format
//
// Ordinary gzip offers no way to seek at an arbitrary offset within the
// compressed stream without decompressing everything before it. MZGF
// works around this much as BGZF does: the DEFLATE compressor is
// flushed (not just closed) at fixed uncompressed-size boundaries, and
// each resulting block is self-contained enough that a reader can jump
// straight to its start and begin inflating with no prior history. A
// trailing index chain records where each of those boundaries falls, and
// a fixed-size final member anchors where that chain begins, so opening
// a file for random access costs one seek to the end plus a short read,
// not a scan from the front.
package mzgzip
