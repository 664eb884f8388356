package mzgzip

import (
	"bytes"
	"compress/gzip"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"math/rand"
	"testing"
	"time"
)

func makeMZGF(t *testing.T, data []byte) []byte {
	t.Helper()
	var out bytes.Buffer
	if _, err := NewWriter().Deflate(bytes.NewReader(data), &out); err != nil {
		t.Fatal(err)
	}
	return out.Bytes()
}

func hashAll(t *testing.T, r io.Reader) string {
	t.Helper()
	h := sha1.New()
	if _, err := io.Copy(h, r); err != nil {
		t.Fatal(err)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func TestBasicReader(t *testing.T) {
	seed := time.Now().UnixNano()
	t.Log("using seed:", seed)
	data := genText(seed, 3*BlockSize+521)
	want := hashAll(t, bytes.NewReader(data))

	raw := makeMZGF(t, data)
	r, err := NewReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if got := hashAll(t, r); got != want {
		t.Error("round-tripped hash mismatch")
	}
	if r.UFileSize() != uint64(len(data)) {
		t.Errorf("UFileSize: got %d, want %d", r.UFileSize(), len(data))
	}
}

func TestUSeekAndVSeek(t *testing.T) {
	seed := time.Now().UnixNano()
	t.Log("using seed:", seed)
	data := genText(seed, 6*BlockSize)
	raw := makeMZGF(t, data)

	r, err := NewReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	type mark struct {
		voffset uint64
		uoffset uint64
		sum     string
	}
	var marks []mark

	rr := rand.New(rand.NewSource(seed))
	for {
		skip := int64(rr.Intn(10000) + 1)
		if _, err := io.CopyN(io.Discard, r, skip); err != nil {
			if err == io.EOF {
				break
			}
			t.Fatal(err)
		}

		v := r.VTell()
		u := r.uoffset
		h := sha1.New()
		n, _ := io.CopyN(h, r, 64)
		if n == 0 {
			break
		}
		marks = append(marks, mark{voffset: v, uoffset: u, sum: hex.EncodeToString(h.Sum(nil))})
	}

	if len(marks) == 0 {
		t.Fatal("no marks recorded; input too small for this test")
	}

	perm := rr.Perm(len(marks))
	for _, idx := range perm {
		m := marks[idx]
		if err := r.VSeek(m.voffset); err != nil {
			t.Fatal(err)
		}
		h := sha1.New()
		io.CopyN(h, r, 64)
		if got := hex.EncodeToString(h.Sum(nil)); got != m.sum {
			t.Errorf("VSeek(0x%x): hash mismatch, got %s want %s", m.voffset, got, m.sum)
		}

		if err := r.USeek(m.uoffset); err != nil {
			t.Fatal(err)
		}
		h = sha1.New()
		io.CopyN(h, r, 64)
		if got := hex.EncodeToString(h.Sum(nil)); got != m.sum {
			t.Errorf("USeek(%d): hash mismatch, got %s want %s", m.uoffset, got, m.sum)
		}
	}
}

func TestUSeekMatchesSequentialRead(t *testing.T) {
	seed := time.Now().UnixNano()
	t.Log("using seed:", seed)
	data := genText(seed, 4*BlockSize+99)
	raw := makeMZGF(t, data)

	r, err := NewReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	offsets := []uint64{0, 1, uint64(BlockSize - 1), uint64(BlockSize), uint64(BlockSize + 1), uint64(len(data) - 10)}
	for _, off := range offsets {
		if err := r.USeek(off); err != nil {
			t.Fatalf("USeek(%d): %v", off, err)
		}
		buf := make([]byte, 10)
		n, rerr := io.ReadFull(r, buf)
		if rerr != nil && rerr != io.ErrUnexpectedEOF {
			t.Fatalf("USeek(%d) read: %v", off, rerr)
		}
		want := data[off : off+uint64(n)]
		if !bytes.Equal(buf[:n], want) {
			t.Errorf("USeek(%d): got %q, want %q", off, buf[:n], want)
		}
	}
}

func TestOpenRejectsPlainGzip(t *testing.T) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write([]byte("hello, world")); err != nil {
		t.Fatal(err)
	}
	w.Close()

	_, err := NewReader(bytes.NewReader(buf.Bytes()))
	if err == nil {
		t.Fatal("expected an error opening a plain gzip stream as MZGF")
	}
	if KindOf(err) != NOT_MZGZIP {
		t.Errorf("expected NOT_MZGZIP, got %v (%v)", KindOf(err), err)
	}
}

func TestOpenRejectsVersionMismatch(t *testing.T) {
	seed := time.Now().UnixNano()
	t.Log("using seed:", seed)
	data := genText(seed, 1024)
	raw := makeMZGF(t, data)

	// the MZ subfield's version byte sits right after the fixed 10-byte
	// header, the 2-byte XLEN, and the 4-byte "MZ"+length prefix.
	versionOffset := gzipHeaderSize + 2 + 4
	raw[versionOffset] = Version + 1

	_, err := NewReader(bytes.NewReader(raw))
	if err == nil {
		t.Fatal("expected an error opening an MZGF file with an unrecognized version")
	}
	if KindOf(err) != BAD_VERSION {
		t.Errorf("expected BAD_VERSION, got %v (%v)", KindOf(err), err)
	}
}

func TestOpenRejectsTruncatedTail(t *testing.T) {
	seed := time.Now().UnixNano()
	t.Log("using seed:", seed)
	data := genText(seed, 1024)
	raw := makeMZGF(t, data)

	// valid header, but far short of a complete EOF member at the tail.
	short := raw[:gzipHeaderSize+7]
	_, err := NewReader(bytes.NewReader(short))
	if err == nil {
		t.Fatal("expected an error opening a truncated MZGF file")
	}
	switch KindOf(err) {
	case BAD_FORMAT, ERR_HEADER:
	default:
		t.Errorf("expected BAD_FORMAT or ERR_HEADER, got %v (%v)", KindOf(err), err)
	}

	// a handful of bytes, far too short even for the fixed header.
	if _, err := NewReader(bytes.NewReader([]byte{0x1f, 0x8b, 8})); err == nil {
		t.Fatal("expected an error opening a handful of bytes as MZGF")
	}
}

func TestBIndexChainSplitsAcrossMembers(t *testing.T) {
	n := maxPairsPerBI + 10
	bi := &BlockIndex{}
	for i := 0; i < n; i++ {
		bi.append(uint64(i)*100, uint64(i)*1000)
	}

	var buf bytes.Buffer
	firstOffset, _, err := writeBIndexChain(&buf, 0, 0, bi)
	if err != nil {
		t.Fatal(err)
	}
	if firstOffset != 0 {
		t.Fatalf("expected the chain to start at offset 0, got %d", firstOffset)
	}

	r := &Reader{f: bytes.NewReader(buf.Bytes())}
	loaded, err := r.loadBIndexChain(firstOffset)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Len() != n {
		t.Fatalf("got %d block index entries, want %d (the chain should have split across 2 BI members)", loaded.Len(), n)
	}
	for i := 0; i < n; i++ {
		wantV, wantU := bi.Entry(i)
		gotV, gotU := loaded.Entry(i)
		if gotV != wantV || gotU != wantU {
			t.Errorf("entry %d: got (%d,%d), want (%d,%d)", i, gotV, gotU, wantV, wantU)
		}
	}
}
