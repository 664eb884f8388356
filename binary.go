package mzgzip

import "encoding/binary"

// Fixed-size little-endian pack/unpack helpers used throughout the
// container format. Callers guarantee buffer length; there are no error
// paths.

func pack16(buf []byte, v uint16) {
	binary.LittleEndian.PutUint16(buf, v)
}

func pack32(buf []byte, v uint32) {
	binary.LittleEndian.PutUint32(buf, v)
}

func pack64(buf []byte, v uint64) {
	binary.LittleEndian.PutUint64(buf, v)
}

func unpack16(buf []byte) uint16 {
	return binary.LittleEndian.Uint16(buf)
}

// unpack32 reads exactly 4 bytes. (The original MZGFile.cpp's unpackInt32
// read 5 bytes, an off-by-one this implementation does not reproduce.)
func unpack32(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf)
}

func unpack64(buf []byte) uint64 {
	return binary.LittleEndian.Uint64(buf)
}
