package mzgzip

import (
	"bytes"
	"compress/gzip"
	"testing"
	"time"
)

func TestIsMZGF(t *testing.T) {
	seed := time.Now().UnixNano()
	t.Log("using seed:", seed)
	data := genText(seed, 4096)

	raw := makeMZGF(t, data)
	if !IsMZGF(bytes.NewReader(raw)) {
		t.Error("MZGF-produced file not detected as MZGF")
	}
}

func TestIsMZGFRejectsPlainGzip(t *testing.T) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	w.Write([]byte("not an mzgf file"))
	w.Close()

	if IsMZGF(bytes.NewReader(buf.Bytes())) {
		t.Error("plain gzip data wrongly detected as MZGF")
	}
}

func TestIsMZGFRejectsGarbage(t *testing.T) {
	if IsMZGF(bytes.NewReader([]byte("not even gzip"))) {
		t.Error("garbage input wrongly detected as MZGF")
	}
	if IsMZGF(bytes.NewReader(nil)) {
		t.Error("empty input wrongly detected as MZGF")
	}
}
