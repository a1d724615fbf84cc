package dds

import (
	"encoding/binary"
	"image"
)

// EncodeBC3 compresses img as a single-level DXT5 surface and returns the
// complete DDS file. Edge blocks of images whose dimensions are not a
// multiple of 4 repeat the last row and column.
func EncodeBC3(img *image.NRGBA) ([]byte, error) {
	if img == nil {
		return nil, errEmptyImage
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, errEmptyImage
	}

	bw, bh := blocks(w), blocks(h)
	payload := bw * bh * blockSizeBC3
	out := make([]byte, HeaderSize+payload)
	hdr := Header{
		Flags:      flagCaps | flagHeight | flagWidth | flagPixelFormat | flagLinearSize,
		Height:     uint32(h),
		Width:      uint32(w),
		LinearSize: uint32(payload),
		PFFlags:    pfFourCC,
		FourCC:     fourCCDXT5,
		Caps:       capsTexture,
	}
	encodeHeader(out, hdr)

	var texels [16][4]uint8
	dst := out[HeaderSize:]
	for by := range bh {
		for bx := range bw {
			for i := range 16 {
				x := min(bx*4+i%4, w-1)
				y := min(by*4+i/4, h-1)
				off := img.PixOffset(b.Min.X+x, b.Min.Y+y)
				copy(texels[i][:], img.Pix[off:off+4])
			}
			encodeAlphaBlock(dst[:8], &texels)
			encodeColorBlock(dst[8:16], &texels)
			dst = dst[blockSizeBC3:]
		}
	}
	return out, nil
}

// encodeAlphaBlock writes the BC4-style alpha half of a BC3 block using the
// 8-value interpolation mode between the block's alpha extremes.
func encodeAlphaBlock(dst []byte, texels *[16][4]uint8) {
	lo, hi := uint8(255), uint8(0)
	for i := range texels {
		a := texels[i][3]
		lo = min(lo, a)
		hi = max(hi, a)
	}
	dst[0], dst[1] = hi, lo
	if hi == lo {
		clear(dst[2:8])
		return
	}

	var palette [8]int
	palette[0], palette[1] = int(hi), int(lo)
	for i := 1; i <= 6; i++ {
		palette[i+1] = ((7-i)*int(hi) + i*int(lo)) / 7
	}

	var bits uint64
	for i := range texels {
		a := int(texels[i][3])
		best, bestDist := 0, 1<<30
		for j, p := range palette {
			d := abs(a - p)
			if d < bestDist {
				best, bestDist = j, d
			}
		}
		bits |= uint64(best) << (3 * i)
	}
	for i := range 6 {
		dst[2+i] = byte(bits >> (8 * i))
	}
}

// encodeColorBlock writes the BC1 color half of a BC3 block with the
// bounding-box endpoints of the block's colors. BC3 color blocks always use
// the four-color palette.
func encodeColorBlock(dst []byte, texels *[16][4]uint8) {
	minC := [3]uint8{255, 255, 255}
	maxC := [3]uint8{0, 0, 0}
	for i := range texels {
		for c := range 3 {
			minC[c] = min(minC[c], texels[i][c])
			maxC[c] = max(maxC[c], texels[i][c])
		}
	}

	c0 := pack565(maxC)
	c1 := pack565(minC)
	if c0 < c1 {
		c0, c1 = c1, c0
	}
	binary.LittleEndian.PutUint16(dst[0:2], c0)
	binary.LittleEndian.PutUint16(dst[2:4], c1)
	if c0 == c1 {
		clear(dst[4:8])
		return
	}

	e0, e1 := unpack565(c0), unpack565(c1)
	var palette [4][3]int
	for c := range 3 {
		palette[0][c] = e0[c]
		palette[1][c] = e1[c]
		palette[2][c] = (2*e0[c] + e1[c]) / 3
		palette[3][c] = (e0[c] + 2*e1[c]) / 3
	}

	var bits uint32
	for i := range texels {
		best, bestDist := 0, 1<<30
		for j := range palette {
			d := 0
			for c := range 3 {
				diff := int(texels[i][c]) - palette[j][c]
				d += diff * diff
			}
			if d < bestDist {
				best, bestDist = j, d
			}
		}
		bits |= uint32(best) << (2 * i)
	}
	binary.LittleEndian.PutUint32(dst[4:8], bits)
}

func pack565(c [3]uint8) uint16 {
	r := (uint16(c[0])*31 + 127) / 255
	g := (uint16(c[1])*63 + 127) / 255
	b := (uint16(c[2])*31 + 127) / 255
	return r<<11 | g<<5 | b
}

func unpack565(v uint16) [3]int {
	r := int(v>>11) & 0x1f
	g := int(v>>5) & 0x3f
	b := int(v) & 0x1f
	return [3]int{r<<3 | r>>2, g<<2 | g>>4, b<<3 | b>>2}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
