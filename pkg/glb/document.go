package glb

import (
	"fmt"
	"maps"

	"github.com/goccy/go-json"
)

// Document is the decoded JSON chunk.
//
// Only the properties the texture pipeline reads or rewrites are typed. Every
// other top-level property, and every unknown property of a typed element, is
// kept as raw JSON so that re-encoding never drops scene data.
type Document struct {
	Images      []Image
	BufferViews []BufferView
	Textures    []Texture
	Materials   []Material
	Buffers     []Buffer

	rest map[string]json.RawMessage
}

type BufferView struct {
	Buffer     int `json:"buffer"`
	ByteOffset int `json:"byteOffset"`
	ByteLength int `json:"byteLength"`

	extra map[string]json.RawMessage
}

// Fits reports whether the view's byte range lies inside a buffer of size
// bytes.
func (bv BufferView) Fits(size int) bool {
	if bv.ByteOffset < 0 || bv.ByteLength < 0 || bv.ByteOffset > size {
		return false
	}
	return bv.ByteLength <= size-bv.ByteOffset
}

type Image struct {
	BufferView *int   `json:"bufferView,omitempty"`
	MimeType   string `json:"mimeType,omitempty"`
	Name       string `json:"name,omitempty"`
	URI        string `json:"uri,omitempty"`

	extra map[string]json.RawMessage
}

type Buffer struct {
	ByteLength int    `json:"byteLength"`
	URI        string `json:"uri,omitempty"`

	extra map[string]json.RawMessage
}

// Texture is a read-only view of a texture; it re-encodes exactly as decoded.
type Texture struct {
	Source     *int `json:"source,omitempty"`
	Extensions struct {
		DDS  *textureSource `json:"MSFT_texture_dds,omitempty"`
		WebP *textureSource `json:"EXT_texture_webp,omitempty"`
	} `json:"extensions,omitempty"`

	raw json.RawMessage
}

type textureSource struct {
	Source *int `json:"source,omitempty"`
}

// Sources returns every image index the texture can sample from: the core
// source first, then the extension sources.
func (t *Texture) Sources() []int {
	var out []int
	if t.Source != nil {
		out = append(out, *t.Source)
	}
	for _, ext := range []*textureSource{t.Extensions.DDS, t.Extensions.WebP} {
		if ext != nil && ext.Source != nil {
			out = append(out, *ext.Source)
		}
	}
	return out
}

type TextureInfo struct {
	Index int `json:"index"`
}

// Material is a read-only view of a material's texture slots; it re-encodes
// exactly as decoded.
type Material struct {
	Name                 string `json:"name,omitempty"`
	PBRMetallicRoughness *struct {
		BaseColorTexture         *TextureInfo `json:"baseColorTexture,omitempty"`
		MetallicRoughnessTexture *TextureInfo `json:"metallicRoughnessTexture,omitempty"`
	} `json:"pbrMetallicRoughness,omitempty"`
	NormalTexture    *TextureInfo `json:"normalTexture,omitempty"`
	OcclusionTexture *TextureInfo `json:"occlusionTexture,omitempty"`
	EmissiveTexture  *TextureInfo `json:"emissiveTexture,omitempty"`

	raw json.RawMessage
}

// BaseColor and MetallicRoughness flatten the nested PBR block.
func (m *Material) BaseColor() *TextureInfo {
	if m.PBRMetallicRoughness == nil {
		return nil
	}
	return m.PBRMetallicRoughness.BaseColorTexture
}

func (m *Material) MetallicRoughness() *TextureInfo {
	if m.PBRMetallicRoughness == nil {
		return nil
	}
	return m.PBRMetallicRoughness.MetallicRoughnessTexture
}

// DecodeDocument decodes a JSON chunk payload.
func DecodeDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Encode returns the compact JSON encoding of the document.
func (d *Document) Encode() ([]byte, error) {
	return json.Marshal(d)
}

const (
	keyImages      = "images"
	keyBufferViews = "bufferViews"
	keyTextures    = "textures"
	keyMaterials   = "materials"
	keyBuffers     = "buffers"
)

func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("document is not a JSON object")
	}

	fields := []struct {
		key string
		dst any
	}{
		{keyImages, &d.Images},
		{keyBufferViews, &d.BufferViews},
		{keyTextures, &d.Textures},
		{keyMaterials, &d.Materials},
		{keyBuffers, &d.Buffers},
	}
	for _, f := range fields {
		msg, ok := raw[f.key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(msg, f.dst); err != nil {
			return fmt.Errorf("decode %s: %w", f.key, err)
		}
		delete(raw, f.key)
	}
	d.rest = raw
	return nil
}

func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.rest)+5)
	for k, v := range d.rest {
		out[k] = v
	}
	// glTF forbids empty top-level arrays, so absent and empty both encode as absent.
	if len(d.Images) > 0 {
		out[keyImages] = d.Images
	}
	if len(d.BufferViews) > 0 {
		out[keyBufferViews] = d.BufferViews
	}
	if len(d.Textures) > 0 {
		out[keyTextures] = d.Textures
	}
	if len(d.Materials) > 0 {
		out[keyMaterials] = d.Materials
	}
	if len(d.Buffers) > 0 {
		out[keyBuffers] = d.Buffers
	}
	return json.Marshal(out)
}

// Property returns a raw top-level property that is not one of the typed lists.
func (d *Document) Property(key string) (json.RawMessage, bool) {
	v, ok := d.rest[key]
	return v, ok
}

// Clone returns a deep copy of the typed lists. Raw JSON values are shared
// because they are never modified in place.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{
		Images:      make([]Image, len(d.Images)),
		BufferViews: make([]BufferView, len(d.BufferViews)),
		Textures:    make([]Texture, len(d.Textures)),
		Materials:   make([]Material, len(d.Materials)),
		Buffers:     make([]Buffer, len(d.Buffers)),
		rest:        maps.Clone(d.rest),
	}
	for i, img := range d.Images {
		if img.BufferView != nil {
			bv := *img.BufferView
			img.BufferView = &bv
		}
		img.extra = maps.Clone(img.extra)
		out.Images[i] = img
	}
	for i, bv := range d.BufferViews {
		bv.extra = maps.Clone(bv.extra)
		out.BufferViews[i] = bv
	}
	for i, b := range d.Buffers {
		b.extra = maps.Clone(b.extra)
		out.Buffers[i] = b
	}
	copy(out.Textures, d.Textures)
	copy(out.Materials, d.Materials)
	return out
}

// Typed elements with write access keep unknown properties in extra.

type bufferViewFields BufferView
type imageFields Image
type bufferFields Buffer

func (bv *BufferView) UnmarshalJSON(data []byte) error {
	var f bufferViewFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	extra, err := splitExtra(data, "buffer", "byteOffset", "byteLength")
	if err != nil {
		return err
	}
	*bv = BufferView(f)
	bv.extra = extra
	return nil
}

func (bv BufferView) MarshalJSON() ([]byte, error) {
	return joinExtra(bufferViewFields(bv), bv.extra)
}

func (img *Image) UnmarshalJSON(data []byte) error {
	var f imageFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	extra, err := splitExtra(data, "bufferView", "mimeType", "name", "uri")
	if err != nil {
		return err
	}
	*img = Image(f)
	img.extra = extra
	return nil
}

func (img Image) MarshalJSON() ([]byte, error) {
	return joinExtra(imageFields(img), img.extra)
}

func (b *Buffer) UnmarshalJSON(data []byte) error {
	var f bufferFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	extra, err := splitExtra(data, "byteLength", "uri")
	if err != nil {
		return err
	}
	*b = Buffer(f)
	b.extra = extra
	return nil
}

func (b Buffer) MarshalJSON() ([]byte, error) {
	return joinExtra(bufferFields(b), b.extra)
}

type textureFields Texture
type materialFields Material

func (t *Texture) UnmarshalJSON(data []byte) error {
	var f textureFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*t = Texture(f)
	t.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (t Texture) MarshalJSON() ([]byte, error) {
	if t.raw == nil {
		return json.Marshal(textureFields(t))
	}
	return t.raw, nil
}

func (m *Material) UnmarshalJSON(data []byte) error {
	var f materialFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*m = Material(f)
	m.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (m Material) MarshalJSON() ([]byte, error) {
	if m.raw == nil {
		return json.Marshal(materialFields(m))
	}
	return m.raw, nil
}

// splitExtra returns the properties of a JSON object that are not in known.
func splitExtra(data []byte, known ...string) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(raw, k)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return raw, nil
}

// joinExtra encodes the typed fields of v and merges extra into the object.
func joinExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	typed, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return typed, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(typed, &merged); err != nil {
		return nil, err
	}
	for k, val := range extra {
		if _, ok := merged[k]; !ok {
			merged[k] = val
		}
	}
	return json.Marshal(merged)
}
