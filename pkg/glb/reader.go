package glb

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// ReadLayout validates the container framing and locates its chunks.
// It does not decode the JSON payload.
func ReadLayout(data []byte) (Layout, error) {
	if len(data) < HeaderSize {
		return Layout{}, fmt.Errorf("%w: truncated header (%d bytes)", ErrContainerFormat, len(data))
	}
	hdr, ok := decodeHeader(data[:HeaderSize])
	if !ok {
		return Layout{}, fmt.Errorf("%w: truncated header", ErrContainerFormat)
	}
	if !hdr.Valid() {
		return Layout{}, fmt.Errorf("%w: bad magic %#08x", ErrContainerFormat, hdr.Magic)
	}
	if !hdr.Compatible() {
		return Layout{}, fmt.Errorf("%w: unsupported version %d", ErrContainerFormat, hdr.Version)
	}
	if uint64(hdr.Length) != uint64(len(data)) {
		return Layout{}, fmt.Errorf("%w: header length %d, stream length %d", ErrContainerFormat, hdr.Length, len(data))
	}

	layout := Layout{Header: hdr}

	jsonChunk, err := readChunk(data, HeaderSize)
	if err != nil {
		return Layout{}, err
	}
	if jsonChunk.Type != ChunkJSON {
		return Layout{}, fmt.Errorf("%w: first chunk is %s, want JSON", ErrContainerFormat, ChunkName(jsonChunk.Type))
	}
	layout.JSON = jsonChunk

	// Anything beyond the BIN chunk is ignored; a remainder that cannot hold a
	// chunk header (or holds only an empty one) means there is no binary payload.
	off := jsonChunk.End()
	if len(data)-off > ChunkHeaderSize {
		binChunk, err := readChunk(data, off)
		if err != nil {
			return Layout{}, err
		}
		if binChunk.Type != ChunkBIN {
			return Layout{}, fmt.Errorf("%w: second chunk is %s, want BIN", ErrContainerFormat, ChunkName(binChunk.Type))
		}
		layout.BIN = &binChunk
	}
	return layout, nil
}

func readChunk(data []byte, off int) (Chunk, error) {
	if off+ChunkHeaderSize > len(data) {
		return Chunk{}, fmt.Errorf("%w: truncated chunk header at offset %d", ErrContainerFormat, off)
	}
	ch, ok := decodeChunkHeader(data[off : off+ChunkHeaderSize])
	if !ok {
		return Chunk{}, fmt.Errorf("%w: truncated chunk header at offset %d", ErrContainerFormat, off)
	}
	c := Chunk{ChunkHeader: ch, Offset: off + ChunkHeaderSize}
	if uint64(c.Offset)+uint64(ch.Length) > uint64(len(data)) {
		return Chunk{}, fmt.Errorf("%w: %s chunk length %d exceeds stream", ErrContainerFormat, ChunkName(ch.Type), ch.Length)
	}
	return c, nil
}

// Parse decodes a container into its document and binary payload.
// The returned blob aliases data; it is empty when there is no BIN chunk.
func Parse(data []byte) (*Document, []byte, error) {
	layout, err := ReadLayout(data)
	if err != nil {
		return nil, nil, err
	}

	// Some writers pad the JSON chunk with NULs instead of spaces.
	payload := bytes.TrimRight(data[layout.JSON.Offset:layout.JSON.End()], " \x00")
	doc, err := DecodeDocument(bytes.Clone(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: decode JSON chunk: %v", ErrContainerFormat, err)
	}

	blob := []byte{}
	if layout.BIN != nil {
		blob = data[layout.BIN.Offset:layout.BIN.End()]
	}
	return doc, blob, nil
}

// Read parses a container from r.
func Read(r io.Reader) (*Document, []byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	return Parse(data)
}

// Open reads and parses the container at path. It maps the file read-only
// where possible and falls back to ReadAt-based loading; the returned blob
// never references the mapping.
func Open(path string) (*Document, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	size64 := stat.Size()
	if size64 < HeaderSize {
		return nil, nil, fmt.Errorf("%w: truncated header (%d bytes)", ErrContainerFormat, size64)
	}
	if size64 > int64(int(^uint(0)>>1)) {
		return nil, nil, fmt.Errorf("%w: file too large", ErrContainerFormat)
	}
	size := int(size64)

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		defer func() { _ = unix.Munmap(data) }()
		doc, blob, perr := Parse(data)
		if perr != nil {
			return nil, nil, perr
		}
		return doc, bytes.Clone(blob), nil
	}

	data, err = readAllAt(f, size)
	if err != nil {
		return nil, nil, err
	}
	return Parse(data)
}

func readAllAt(r io.ReaderAt, size int) ([]byte, error) {
	out := make([]byte, size)
	var off int64
	for off < int64(size) {
		n, err := r.ReadAt(out[off:], off)
		off += int64(n)
		if err == nil {
			continue
		}
		if err == io.EOF && off == int64(size) {
			break
		}
		return nil, err
	}
	return out, nil
}
