package glb

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Serialize encodes doc and blob as a complete container.
//
// Every length field is derived from the data being written. The JSON chunk
// is padded with spaces and the BIN chunk with zeros, both to Align. The BIN
// chunk is always present, with length 0 when blob is empty.
func Serialize(doc *Document, blob []byte) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := Write(&buf, doc, blob); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write streams the encoded container to w and returns the number of bytes written.
func Write(w io.Writer, doc *Document, blob []byte) (int64, error) {
	if doc == nil {
		return 0, errors.New("glb: nil document")
	}
	jsonBytes, err := doc.Encode()
	if err != nil {
		return 0, fmt.Errorf("glb: encode JSON chunk: %w", err)
	}
	jsonPad := PadLen(len(jsonBytes))
	binPad := PadLen(len(blob))

	jsonLen := uint64(len(jsonBytes) + jsonPad)
	binLen := uint64(len(blob) + binPad)
	total := uint64(HeaderSize) + ChunkHeaderSize + jsonLen + ChunkHeaderSize + binLen
	if total > uint64(^uint32(0)) {
		return 0, fmt.Errorf("glb: container length %d exceeds 4 GiB", total)
	}

	var head [HeaderSize + ChunkHeaderSize]byte
	if !encodeHeader(head[:HeaderSize], Header{Magic: Magic, Version: Version, Length: uint32(total)}) {
		return 0, errors.New("glb: encode header failed")
	}
	if !encodeChunkHeader(head[HeaderSize:], ChunkHeader{Length: uint32(jsonLen), Type: ChunkJSON}) {
		return 0, errors.New("glb: encode chunk header failed")
	}

	var binHead [ChunkHeaderSize]byte
	if !encodeChunkHeader(binHead[:], ChunkHeader{Length: uint32(binLen), Type: ChunkBIN}) {
		return 0, errors.New("glb: encode chunk header failed")
	}

	var spaces = [Align]byte{' ', ' ', ' ', ' '}
	var zeros [Align]byte

	parts := [][]byte{
		head[:],
		jsonBytes,
		spaces[:jsonPad],
		binHead[:],
		blob,
		zeros[:binPad],
	}
	var written int64
	for _, p := range parts {
		if len(p) == 0 {
			continue
		}
		n, err := w.Write(p)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// WriteFile writes the container to path via a temporary file in the same
// directory, so a failed write never leaves a partial container behind.
func WriteFile(path string, doc *Document, blob []byte) (int64, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	cleanup := func(err error) (int64, error) {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return 0, err
	}

	n, err := Write(tmp, doc, blob)
	if err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return 0, err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return 0, err
	}
	return n, nil
}
