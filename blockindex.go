package mzgzip

import "sort"

// bindexEntry marks the start of one independently inflatable DEFLATE
// block in both the compressed and uncompressed streams.
type bindexEntry struct {
	ZOffset uint64 // offset of the block's start within the compressed stream
	UOffset uint64 // offset of the block's start within the uncompressed stream
}

// BlockIndex is the ordered sequence of (compressed-offset,
// uncompressed-offset) pairs produced by the Writer and consumed by the
// Reader to support random access by uncompressed byte offset. Entries are
// strictly increasing in both coordinates.
type BlockIndex struct {
	entries []bindexEntry
}

// Len reports the number of entries in the index.
func (bi *BlockIndex) Len() int { return len(bi.entries) }

// Entry returns the i'th (virtual offset, uncompressed offset) pair, for
// listing purposes. VOffset is the entry's zoffset shifted into the
// virtual-offset encoding (zoffset<<16).
func (bi *BlockIndex) Entry(i int) (voffset, uoffset uint64) {
	e := bi.entries[i]
	return e.ZOffset << 16, e.UOffset
}

func (bi *BlockIndex) append(zoffset, uoffset uint64) {
	bi.entries = append(bi.entries, bindexEntry{ZOffset: zoffset, UOffset: uoffset})
}

// findByZOffset returns the index of the entry whose ZOffset exactly
// equals z, via binary search (entries are strictly increasing in
// ZOffset too).
func (bi *BlockIndex) findByZOffset(z uint64) (int, bool) {
	i := sort.Search(len(bi.entries), func(i int) bool {
		return bi.entries[i].ZOffset >= z
	})
	if i < len(bi.entries) && bi.entries[i].ZOffset == z {
		return i, true
	}
	return 0, false
}

// lookup returns the index of the greatest entry whose UOffset <= u. The
// BlockIndex is never empty for a file produced by this package's Writer
// (there is always at least the first block's entry), so a caller must
// not call lookup on an empty index.
func (bi *BlockIndex) lookup(u uint64) int {
	// sort.Search finds the first index for which the predicate holds;
	// we want the last index whose UOffset <= u, i.e. one before the
	// first index whose UOffset > u.
	i := sort.Search(len(bi.entries), func(i int) bool {
		return bi.entries[i].UOffset > u
	})
	if i == 0 {
		return 0
	}
	return i - 1
}
