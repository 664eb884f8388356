package mzgzip

import (
	"bytes"
	"compress/gzip"
	"io"
	"math/rand"
	"testing"
	"time"
)

// genText fills n bytes with pseudo-English text, compressible enough to
// exercise multiple deflate blocks without taking forever on plain random
// bytes.
func genText(seed int64, n int) []byte {
	r := rand.New(rand.NewSource(seed))
	words := []string{"the", "quick", "brown", "fox", "jumps", "over",
		"a", "lazy", "dog", "while", "block", "index", "seeks", "gzip"}
	buf := make([]byte, 0, n)
	for len(buf) < n {
		buf = append(buf, words[r.Intn(len(words))]...)
		if r.Intn(10) == 0 {
			buf = append(buf, '\n')
		} else {
			buf = append(buf, ' ')
		}
	}
	return buf[:n]
}

func TestDeflateIsPlainGzipCompatible(t *testing.T) {
	seed := time.Now().UnixNano()
	t.Log("using seed:", seed)
	data := genText(seed, 3*BlockSize+137)

	var out bytes.Buffer
	if _, err := NewWriter().Deflate(bytes.NewReader(data), &out); err != nil {
		t.Fatal(err)
	}

	gz, err := gzip.NewReader(bytes.NewReader(out.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	gz.Multistream(true)
	got, err := io.ReadAll(gz)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Error("plain gzip decompression of an MZGF file did not reproduce the source bytes")
	}
}

func TestDeflateBlockIndex(t *testing.T) {
	seed := time.Now().UnixNano()
	t.Log("using seed:", seed)
	data := genText(seed, 5*BlockSize)

	var out bytes.Buffer
	bi, err := NewWriter().Deflate(bytes.NewReader(data), &out)
	if err != nil {
		t.Fatal(err)
	}
	if bi.Len() == 0 {
		t.Fatal("expected a non-empty block index for multi-block input")
	}
	for i := 1; i < bi.Len(); i++ {
		prevV, prevU := bi.Entry(i - 1)
		v, u := bi.Entry(i)
		if v <= prevV || u <= prevU {
			t.Errorf("block index entries not strictly increasing at %d: (%d,%d) -> (%d,%d)", i, prevV, prevU, v, u)
		}
	}
}

func TestDeflateEmptyInput(t *testing.T) {
	var out bytes.Buffer
	if _, err := NewWriter().Deflate(bytes.NewReader(nil), &out); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(bytes.NewReader(out.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Error("expected no decompressed bytes from an empty source")
	}
	if r.UFileSize() != 0 {
		t.Error("expected UFileSize 0 for an empty source")
	}
}

func TestDeflateExactBlockMultiple(t *testing.T) {
	seed := time.Now().UnixNano()
	t.Log("using seed:", seed)
	data := genText(seed, 2*BlockSize)

	var out bytes.Buffer
	bi, err := NewWriter().Deflate(bytes.NewReader(data), &out)
	if err != nil {
		t.Fatal(err)
	}
	// an input that is an exact multiple of BlockSize still produces a
	// final empty block, matching the reference writer's do-while loop.
	if bi.Len() != 3 {
		t.Errorf("expected 3 block index entries for a 2*BlockSize input, got %d", bi.Len())
	}
}
