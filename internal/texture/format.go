package texture

import (
	"fmt"
	"strings"

	"github.com/samcharles93/glbopt/pkg/dds"
)

// Format is the encoding written back into the container.
type Format string

const (
	FormatPNG Format = "png"
	FormatDDS Format = "dds"
)

const MimePNG = "image/png"

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPNG, FormatDDS:
		return f, nil
	}
	return "", fmt.Errorf("unknown texture format %q (want png or dds)", s)
}

// MimeType returns the glTF image media type for f.
func (f Format) MimeType() string {
	if f == FormatDDS {
		return dds.MimeType
	}
	return MimePNG
}

// Ext returns the file extension used for standalone exports.
func (f Format) Ext() string {
	return "." + string(f)
}
