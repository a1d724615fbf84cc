package glb

import "encoding/binary"

func encodeHeader(dst []byte, h Header) bool {
	if len(dst) < HeaderSize {
		return false
	}
	binary.LittleEndian.PutUint32(dst[0:4], h.Magic)
	binary.LittleEndian.PutUint32(dst[4:8], h.Version)
	binary.LittleEndian.PutUint32(dst[8:12], h.Length)
	return true
}

func decodeHeader(src []byte) (Header, bool) {
	if len(src) < HeaderSize {
		return Header{}, false
	}
	return Header{
		Magic:   binary.LittleEndian.Uint32(src[0:4]),
		Version: binary.LittleEndian.Uint32(src[4:8]),
		Length:  binary.LittleEndian.Uint32(src[8:12]),
	}, true
}

func encodeChunkHeader(dst []byte, c ChunkHeader) bool {
	if len(dst) < ChunkHeaderSize {
		return false
	}
	binary.LittleEndian.PutUint32(dst[0:4], c.Length)
	binary.LittleEndian.PutUint32(dst[4:8], c.Type)
	return true
}

func decodeChunkHeader(src []byte) (ChunkHeader, bool) {
	if len(src) < ChunkHeaderSize {
		return ChunkHeader{}, false
	}
	return ChunkHeader{
		Length: binary.LittleEndian.Uint32(src[0:4]),
		Type:   binary.LittleEndian.Uint32(src[4:8]),
	}, true
}

// PadLen returns the number of bytes needed to bring n up to a multiple of Align.
func PadLen(n int) int {
	return (Align - n%Align) % Align
}

// AlignUp rounds n up to the next multiple of Align.
func AlignUp(n int) int {
	return n + PadLen(n)
}

// ChunkName renders a chunk type marker for diagnostics.
func ChunkName(t uint32) string {
	switch t {
	case ChunkJSON:
		return "JSON"
	case ChunkBIN:
		return "BIN"
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], t)
	for i := range b {
		if b[i] < 0x20 || b[i] > 0x7e {
			b[i] = '.'
		}
	}
	return string(b[:])
}
