package dds

import (
	"fmt"
	"image"

	"github.com/mauserzjeh/dxt"
)

// DecodeConfig returns the dimensions and pixel format of a DDS file.
func DecodeConfig(data []byte) (Header, error) {
	if !IsDDS(data) {
		return Header{}, ErrInvalidMagic
	}
	h, ok := decodeHeader(data)
	if !ok {
		return Header{}, fmt.Errorf("%w: bad header", ErrCorrupt)
	}
	if h.PFFlags&pfFourCC == 0 || h.BlockSize() == 0 {
		return Header{}, fmt.Errorf("%w: fourcc %q", ErrUnsupportedFormat, h.FourCC[:])
	}
	if h.Width == 0 || h.Height == 0 {
		return Header{}, fmt.Errorf("%w: zero dimension", ErrCorrupt)
	}
	if h.Width > MaxDimension || h.Height > MaxDimension {
		return Header{}, fmt.Errorf("%w: %dx%d exceeds %d", ErrCorrupt, h.Width, h.Height, MaxDimension)
	}
	return h, nil
}

// Decode decodes the top mip level of a DXT1 or DXT5 surface.
func Decode(data []byte) (*image.NRGBA, error) {
	h, err := DecodeConfig(data)
	if err != nil {
		return nil, err
	}
	payload := data[HeaderSize:]
	need := h.PayloadSize()
	if uint64(len(payload)) < need {
		return nil, fmt.Errorf("%w: payload %d bytes, want %d", ErrCorrupt, len(payload), need)
	}
	payload = payload[:need]

	w, ht := uint(h.Width), uint(h.Height)
	var pix []byte
	switch h.FourCC {
	case fourCCDXT1:
		pix, err = dxt.DecodeDXT1(payload, w, ht)
	case fourCCDXT5:
		pix, err = dxt.DecodeDXT5(payload, w, ht)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	stride := int(h.Width) * 4
	if len(pix) < stride*int(h.Height) {
		return nil, fmt.Errorf("%w: decoded %d bytes, want %d", ErrCorrupt, len(pix), stride*int(h.Height))
	}
	img := image.NewNRGBA(image.Rect(0, 0, int(h.Width), int(h.Height)))
	copy(img.Pix, pix[:stride*int(h.Height)])
	if h.FourCC == fourCCDXT5 {
		// dxt reads the alpha index bits from the wrong block offset.
		decodeAlpha(img, payload)
	}
	return img, nil
}

// decodeAlpha fills the alpha channel of img from the BC4-style halves of
// the BC3 blocks in payload.
func decodeAlpha(img *image.NRGBA, payload []byte) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	bw := blocks(w)
	var palette [8]uint8
	for by := range blocks(h) {
		for bx := range bw {
			block := payload[(by*bw+bx)*blockSizeBC3:]
			alphaPalette(&palette, block[0], block[1])
			var bits uint64
			for i := range 6 {
				bits |= uint64(block[2+i]) << (8 * i)
			}
			for i := range 16 {
				x, y := bx*4+i%4, by*4+i/4
				if x >= w || y >= h {
					continue
				}
				img.Pix[y*img.Stride+x*4+3] = palette[(bits>>(3*i))&7]
			}
		}
	}
}

func alphaPalette(p *[8]uint8, a0, a1 uint8) {
	p[0], p[1] = a0, a1
	hi, lo := int(a0), int(a1)
	if a0 > a1 {
		for i := 1; i <= 6; i++ {
			p[i+1] = uint8(((7-i)*hi + i*lo) / 7)
		}
		return
	}
	for i := 1; i <= 4; i++ {
		p[i+1] = uint8(((5-i)*hi + i*lo) / 5)
	}
	p[6], p[7] = 0, 255
}
