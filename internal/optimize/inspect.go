package optimize

import (
	"github.com/samcharles93/glbopt/internal/texture"
	"github.com/samcharles93/glbopt/pkg/glb"
)

type ChunkInfo struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length uint32 `json:"length"`
}

type ImageInfo struct {
	Index      int    `json:"index"`
	Role       string `json:"role"`
	Name       string `json:"name,omitempty"`
	MimeType   string `json:"mime_type,omitempty"`
	BufferView *int   `json:"buffer_view,omitempty"`
	URI        string `json:"uri,omitempty"`
	Bytes      int    `json:"bytes"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	// Format is the sniffed encoding, which may disagree with MimeType.
	Format string `json:"format,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Inspection is a read-only summary of a container.
type Inspection struct {
	Version     uint32      `json:"version"`
	Length      uint32      `json:"length"`
	Chunks      []ChunkInfo `json:"chunks"`
	Buffers     int         `json:"buffers"`
	BufferViews int         `json:"buffer_views"`
	Materials   int         `json:"materials"`
	Textures    int         `json:"textures"`
	Images      []ImageInfo `json:"images"`
}

// Inspect summarizes data. Images that cannot be sniffed carry the error
// instead of failing the whole inspection.
func Inspect(data []byte) (*Inspection, error) {
	layout, err := glb.ReadLayout(data)
	if err != nil {
		return nil, err
	}
	doc, blob, err := glb.Parse(data)
	if err != nil {
		return nil, err
	}

	ins := &Inspection{
		Version:     layout.Header.Version,
		Length:      layout.Header.Length,
		Chunks:      []ChunkInfo{{Type: glb.ChunkName(layout.JSON.Type), Offset: layout.JSON.Offset, Length: layout.JSON.Length}},
		Buffers:     len(doc.Buffers),
		BufferViews: len(doc.BufferViews),
		Materials:   len(doc.Materials),
		Textures:    len(doc.Textures),
		Images:      make([]ImageInfo, len(doc.Images)),
	}
	if layout.BIN != nil {
		ins.Chunks = append(ins.Chunks, ChunkInfo{Type: glb.ChunkName(layout.BIN.Type), Offset: layout.BIN.Offset, Length: layout.BIN.Length})
	}

	labels := texture.Classify(doc)
	for i, img := range doc.Images {
		info := ImageInfo{
			Index:      i,
			Role:       labels.Label(i),
			Name:       img.Name,
			MimeType:   img.MimeType,
			BufferView: img.BufferView,
			URI:        img.URI,
		}
		if img.BufferView != nil {
			info.Error = "buffer view out of range"
			if v := *img.BufferView; v >= 0 && v < len(doc.BufferViews) {
				bv := doc.BufferViews[v]
				info.Error = "not in binary chunk"
				if bv.Buffer == 0 && bv.Fits(len(blob)) {
					info.Error = ""
					src := blob[bv.ByteOffset : bv.ByteOffset+bv.ByteLength]
					info.Bytes = len(src)
					if cfg, format, err := texture.DecodeConfig(src); err != nil {
						info.Error = err.Error()
					} else {
						info.Width, info.Height, info.Format = cfg.Width, cfg.Height, format
					}
				}
			}
		}
		ins.Images[i] = info
	}
	return ins, nil
}
