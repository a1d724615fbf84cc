// Package rebuild rewrites the binary payload of a GLB container with
// re-encoded textures.
//
// Rebuild runs two ordered passes over the original blob. The preserve pass
// copies every buffer view that no image owns, verbatim, in ascending index
// order. The transform pass then appends each image's re-encoded bytes in
// ascending image order. Every region starts on a 4-byte boundary, so two
// runs over the same input produce the same layout.
package rebuild

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/zeebo/blake3"

	"github.com/samcharles93/glbopt/internal/logger"
	"github.com/samcharles93/glbopt/internal/texture"
	"github.com/samcharles93/glbopt/pkg/glb"
)

// Params controls the image transform applied during the rebuild.
type Params struct {
	TargetSize int
	Format     texture.Format
	// Standalone requests a DDS/BC3 copy of every image for export.
	Standalone bool
	// Dedup shares one output region between images whose source bytes are
	// identical instead of encoding each of them.
	Dedup bool
	Codec texture.Codec
}

// ImageResult describes what happened to one image.
type ImageResult struct {
	Index      int
	Label      string
	BufferView int

	OriginalWidth  int
	OriginalHeight int
	Width          int
	Height         int
	OriginalBytes  int
	NewBytes       int

	// Standalone holds the DDS/BC3 export when Params.Standalone is set.
	Standalone []byte

	// SharedWith is the index of the image whose region this image reuses,
	// or -1.
	SharedWith int
	// Skipped is set for images that do not live in the binary chunk.
	Skipped bool
}

// Result is the rebuilt document and blob. The input document is not modified.
type Result struct {
	Document *glb.Document
	Blob     []byte
	Images   []ImageResult
}

type region struct {
	offset int
	length int
}

type dedupKey [32]byte

// Rebuild produces a new document and blob in which every embedded image has
// been passed through the texture pipeline. On error nothing is returned.
// ctx supplies the logger; a rebuild that has started always runs to
// completion.
func Rebuild(ctx context.Context, doc *glb.Document, blob []byte, labels texture.RoleLabels, p Params) (*Result, error) {
	if doc == nil {
		return nil, fmt.Errorf("rebuild: nil document")
	}
	if err := validate(doc, blob); err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx)

	out := doc.Clone()
	owned := imageViews(doc)
	remap := make(map[int]region, len(doc.BufferViews))
	newBlob := make([]byte, 0, len(blob))

	// Preserve pass.
	for i, bv := range doc.BufferViews {
		if _, ok := owned[i]; ok || bv.Buffer != 0 {
			continue
		}
		newBlob = pad(newBlob)
		off := len(newBlob)
		newBlob = append(newBlob, blob[bv.ByteOffset:bv.ByteOffset+bv.ByteLength]...)
		remap[i] = region{offset: off, length: bv.ByteLength}
	}

	// Transform pass.
	pipe := texture.Pipeline{
		Codec:      p.Codec,
		TargetSize: p.TargetSize,
		Format:     p.Format,
		Standalone: p.Standalone,
	}
	type shared struct {
		image  int
		region region
		result ImageResult
	}
	var seen map[dedupKey]shared
	if p.Dedup {
		seen = make(map[dedupKey]shared)
	}

	results := make([]ImageResult, 0, len(doc.Images))
	for i, img := range doc.Images {
		res := ImageResult{Index: i, Label: labels.Label(i), BufferView: -1, SharedWith: -1}
		if img.BufferView == nil || doc.BufferViews[*img.BufferView].Buffer != 0 {
			res.Skipped = true
			results = append(results, res)
			log.Debug("image not embedded, skipping", "image", i, "label", res.Label)
			continue
		}
		viewIdx := *img.BufferView
		bv := doc.BufferViews[viewIdx]
		src := blob[bv.ByteOffset : bv.ByteOffset+bv.ByteLength]
		res.BufferView = viewIdx
		res.OriginalBytes = len(src)

		var key dedupKey
		if seen != nil {
			key = blake3.Sum256(src)
			if prev, ok := seen[key]; ok {
				res.OriginalWidth, res.OriginalHeight = prev.result.OriginalWidth, prev.result.OriginalHeight
				res.Width, res.Height = prev.result.Width, prev.result.Height
				res.NewBytes = prev.region.length
				res.Standalone = prev.result.Standalone
				res.SharedWith = prev.image
				res.BufferView = place(out, remap, viewIdx, prev.region)
				out.Images[i].BufferView = intPtr(res.BufferView)
				out.Images[i].MimeType = out.Images[prev.image].MimeType
				results = append(results, res)
				log.Debug("image shares region", "image", i, "with", prev.image)
				continue
			}
		}

		tr, err := pipe.Transform(src)
		if err != nil {
			return nil, fmt.Errorf("image %d (%s): %w", i, res.Label, err)
		}

		newBlob = pad(newBlob)
		reg := region{offset: len(newBlob), length: len(tr.Data)}
		newBlob = append(newBlob, tr.Data...)

		res.OriginalWidth, res.OriginalHeight = tr.OriginalWidth, tr.OriginalHeight
		res.Width, res.Height = tr.Width, tr.Height
		res.NewBytes = len(tr.Data)
		res.Standalone = tr.Standalone
		res.BufferView = place(out, remap, viewIdx, reg)
		out.Images[i].BufferView = intPtr(res.BufferView)
		out.Images[i].MimeType = tr.MimeType

		if seen != nil {
			seen[key] = shared{image: i, region: reg, result: res}
		}
		results = append(results, res)
		log.Debug("image transformed",
			"image", i,
			"label", res.Label,
			"from", fmt.Sprintf("%dx%d", res.OriginalWidth, res.OriginalHeight),
			"to", fmt.Sprintf("%dx%d", res.Width, res.Height),
			"bytes", res.NewBytes,
		)
	}

	for idx, r := range remap {
		out.BufferViews[idx].ByteOffset = r.offset
		out.BufferViews[idx].ByteLength = r.length
	}
	if len(out.Buffers) > 0 {
		out.Buffers[0].ByteLength = len(newBlob)
	}

	return &Result{Document: out, Blob: newBlob, Images: results}, nil
}

// place records reg for buffer view idx and returns the view index the image
// should reference. A view already claimed by an earlier image is not
// rewritten; a copy of it is appended to out instead, so images that shared a
// source view each keep their own region.
func place(out *glb.Document, remap map[int]region, idx int, reg region) int {
	if prev, ok := remap[idx]; !ok || prev == reg {
		remap[idx] = reg
		return idx
	}
	bv := out.BufferViews[idx]
	bv.ByteOffset = reg.offset
	bv.ByteLength = reg.length
	out.BufferViews = append(out.BufferViews, bv)
	n := len(out.BufferViews) - 1
	remap[n] = reg
	return n
}

func intPtr(v int) *int { return &v }

func pad(b []byte) []byte {
	for range glb.PadLen(len(b)) {
		b = append(b, 0)
	}
	return b
}

func imageViews(doc *glb.Document) map[int]struct{} {
	owned := make(map[int]struct{})
	for _, img := range doc.Images {
		if img.BufferView != nil {
			owned[*img.BufferView] = struct{}{}
		}
	}
	return owned
}

// validate checks every reference the rebuild will follow before any work
// is done.
func validate(doc *glb.Document, blob []byte) error {
	for i, bv := range doc.BufferViews {
		if bv.ByteOffset < 0 || bv.ByteLength < 0 {
			return fmt.Errorf("%w: buffer view %d has negative range", glb.ErrMissingBuffer, i)
		}
		if bv.Buffer != 0 {
			if bv.Buffer < 0 || bv.Buffer >= len(doc.Buffers) {
				return fmt.Errorf("%w: buffer view %d references buffer %d", glb.ErrMissingBuffer, i, bv.Buffer)
			}
			continue
		}
		if !bv.Fits(len(blob)) {
			return fmt.Errorf("%w: buffer view %d range (offset %d, length %d) exceeds binary chunk of %d bytes",
				glb.ErrMissingBuffer, i, bv.ByteOffset, bv.ByteLength, len(blob))
		}
	}
	for i, img := range doc.Images {
		if img.BufferView == nil {
			continue
		}
		if idx := *img.BufferView; idx < 0 || idx >= len(doc.BufferViews) {
			return fmt.Errorf("%w: image %d references buffer view %d of %d", glb.ErrMissingBuffer, i, idx, len(doc.BufferViews))
		}
	}
	if raw, ok := doc.Property("accessors"); ok {
		var accessors []struct {
			BufferView *int `json:"bufferView"`
		}
		if err := json.Unmarshal(raw, &accessors); err != nil {
			return fmt.Errorf("%w: decode accessors: %v", glb.ErrContainerFormat, err)
		}
		for i, a := range accessors {
			if a.BufferView != nil && (*a.BufferView < 0 || *a.BufferView >= len(doc.BufferViews)) {
				return fmt.Errorf("%w: accessor %d references buffer view %d of %d", glb.ErrMissingBuffer, i, *a.BufferView, len(doc.BufferViews))
			}
		}
	}
	return nil
}
