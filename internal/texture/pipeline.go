package texture

import (
	"errors"
	"fmt"
	"image"
)

// Pipeline turns one embedded image into its re-encoded replacement.
type Pipeline struct {
	Codec      Codec
	TargetSize int
	Format     Format
	// Standalone also produces a DDS/BC3 encoding for writing to its own file.
	Standalone bool
}

// Result is the output of one Transform call.
type Result struct {
	Data       []byte
	MimeType   string
	Standalone []byte

	OriginalWidth  int
	OriginalHeight int
	Width          int
	Height         int
	Resized        bool
}

// Transform decodes data, downscales it when either side exceeds the target
// size, and re-encodes it in the pipeline's format.
func (p *Pipeline) Transform(data []byte) (*Result, error) {
	codec := p.Codec
	if codec == nil {
		codec = DefaultCodec{}
	}
	format := p.Format
	if format == "" {
		format = FormatPNG
	}

	img, err := codec.Decode(data)
	if err != nil {
		if errors.Is(err, ErrUnsupportedImage) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrUnsupportedImage)
	}

	b := img.Bounds()
	res := &Result{
		MimeType:       format.MimeType(),
		OriginalWidth:  b.Dx(),
		OriginalHeight: b.Dy(),
	}
	w, h, resized := TargetDims(b.Dx(), b.Dy(), p.TargetSize)
	if resized {
		img = codec.Resize(img, w, h)
	}
	res.Width, res.Height, res.Resized = w, h, resized

	res.Data, err = encode(codec, img, format)
	if err != nil {
		return nil, err
	}
	if p.Standalone {
		if format == FormatDDS {
			res.Standalone = res.Data
		} else if res.Standalone, err = encode(codec, img, FormatDDS); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func encode(codec Codec, img *image.NRGBA, f Format) ([]byte, error) {
	out, err := codec.Encode(img, f)
	if err != nil {
		if errors.Is(err, ErrEncode) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrEncode, f, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s: empty output", ErrEncode, f)
	}
	return out, nil
}
