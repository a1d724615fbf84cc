package texture

import "errors"

var (
	// ErrUnsupportedImage reports embedded image bytes that cannot be decoded.
	ErrUnsupportedImage = errors.New("texture: unsupported image")

	// ErrEncode reports a failure to re-encode a decoded image.
	ErrEncode = errors.New("texture: encode failed")
)
