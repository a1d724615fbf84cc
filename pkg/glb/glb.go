// Package glb implements reading and writing of the binary glTF container.
//
// A GLB file is a 12-byte header followed by a JSON chunk and at most one BIN
// chunk. Every chunk starts on a 4-byte boundary and every length field is
// little-endian.
package glb

// GLB constants are fixed by the glTF 2.0 binary container format.
const (
	// Magic is "glTF" read as a little-endian uint32.
	Magic uint32 = 0x46546C67

	// Version is the only container version this package reads or writes.
	Version uint32 = 2

	// ChunkJSON is "JSON" read as a little-endian uint32.
	ChunkJSON uint32 = 0x4E4F534A

	// ChunkBIN is "BIN\0" read as a little-endian uint32.
	ChunkBIN uint32 = 0x004E4942

	HeaderSize      = 12
	ChunkHeaderSize = 8

	// Align is the required alignment of chunk payloads and buffer views.
	Align = 4
)

type Header struct {
	Magic   uint32
	Version uint32
	Length  uint32
}

func (h *Header) Valid() bool {
	return h.Magic == Magic
}

func (h *Header) Compatible() bool {
	return h.Version == Version
}

type ChunkHeader struct {
	Length uint32
	Type   uint32
}

// Chunk locates a chunk payload inside a container.
type Chunk struct {
	ChunkHeader
	Offset int
}

func (c *Chunk) End() int {
	return c.Offset + int(c.Length)
}

// Layout describes where the chunks of a container live.
// BIN is nil when the container carries no binary payload.
type Layout struct {
	Header Header
	JSON   Chunk
	BIN    *Chunk
}
