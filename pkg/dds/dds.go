// Package dds reads and writes DirectDraw Surface containers holding
// block-compressed (BC1/DXT1 and BC3/DXT5) textures.
//
// Only the top mip level of 2D textures is supported.
package dds

import "errors"

const (
	// Magic is the 4-byte file signature "DDS ".
	Magic = "DDS "

	// HeaderSize covers the magic and the 124-byte DDS_HEADER.
	HeaderSize = 128

	// MimeType is the glTF media type for DDS images (MSFT_texture_dds).
	MimeType = "image/vnd-ms.dds"

	headerStructSize      = 124
	pixelFormatStructSize = 32

	flagCaps        = 0x1
	flagHeight      = 0x2
	flagWidth       = 0x4
	flagPixelFormat = 0x1000
	flagLinearSize  = 0x80000

	pfFourCC = 0x4

	capsTexture = 0x1000

	blockSizeBC1 = 8
	blockSizeBC3 = 16

	// MaxDimension bounds the width and height accepted by DecodeConfig.
	MaxDimension = 16384
)

var (
	ErrInvalidMagic      = errors.New("dds: invalid magic")
	ErrUnsupportedFormat = errors.New("dds: unsupported pixel format")
	ErrCorrupt           = errors.New("dds: corrupt file")
	fourCCDXT1           = [4]byte{'D', 'X', 'T', '1'}
	fourCCDXT5           = [4]byte{'D', 'X', 'T', '5'}
	errEmptyImage        = errors.New("dds: empty image")
)

// Header holds the fields of DDS_HEADER this package reads or writes.
type Header struct {
	Flags      uint32
	Height     uint32
	Width      uint32
	LinearSize uint32
	MipCount   uint32
	PFFlags    uint32
	FourCC     [4]byte
	Caps       uint32
}

// BlockSize returns the compressed block size for the header's FourCC, or 0.
func (h *Header) BlockSize() int {
	switch h.FourCC {
	case fourCCDXT1:
		return blockSizeBC1
	case fourCCDXT5:
		return blockSizeBC3
	}
	return 0
}

// PayloadSize returns the size of the top mip level in bytes.
func (h *Header) PayloadSize() uint64 {
	bw := (uint64(h.Width) + 3) / 4
	bh := (uint64(h.Height) + 3) / 4
	return bw * bh * uint64(h.BlockSize())
}

func blocks(n int) int {
	return (n + 3) / 4
}
