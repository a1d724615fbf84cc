package texture

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/samcharles93/glbopt/pkg/dds"
)

// Codec decodes, resamples and encodes texture pixels. The pipeline depends
// only on this interface so the rebuild logic can run against fakes.
type Codec interface {
	// Decode returns a 4-channel image with straight alpha.
	Decode(data []byte) (*image.NRGBA, error)
	Resize(img *image.NRGBA, w, h int) *image.NRGBA
	Encode(img *image.NRGBA, f Format) ([]byte, error)
}

// DefaultCodec reads PNG, JPEG, WebP and DDS (DXT1/DXT5), resamples with a
// Catmull-Rom kernel, and writes PNG or DDS/BC3.
type DefaultCodec struct {
	// CompressionLevel applies to PNG output; zero means png.BestCompression.
	CompressionLevel png.CompressionLevel
}

var _ Codec = DefaultCodec{}

func (c DefaultCodec) Decode(data []byte) (*image.NRGBA, error) {
	if dds.IsDDS(data) {
		return dds.Decode(data)
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return toNRGBA(src), nil
}

func (c DefaultCodec) Resize(img *image.NRGBA, w, h int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

func (c DefaultCodec) Encode(img *image.NRGBA, f Format) ([]byte, error) {
	switch f {
	case FormatDDS:
		return dds.EncodeBC3(img)
	case FormatPNG:
		level := c.CompressionLevel
		if level == png.DefaultCompression {
			level = png.BestCompression
		}
		enc := png.Encoder{CompressionLevel: level}
		var buf bytes.Buffer
		if err := enc.Encode(&buf, img); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unknown format %q", f)
}

func toNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// DecodeConfig reports the dimensions and format name of an encoded image
// without decoding its pixels.
func DecodeConfig(data []byte) (image.Config, string, error) {
	if dds.IsDDS(data) {
		h, err := dds.DecodeConfig(data)
		if err != nil {
			return image.Config{}, "", err
		}
		return image.Config{Width: int(h.Width), Height: int(h.Height)}, "dds", nil
	}
	return image.DecodeConfig(bytes.NewReader(data))
}
