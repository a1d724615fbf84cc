package texture

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/samcharles93/glbopt/pkg/dds"
	"github.com/samcharles93/glbopt/pkg/glb"
)

func TestTargetDims(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		w, h, target int
		wantW, wantH int
		wantResized  bool
	}{
		{"square halves", 2048, 2048, 1024, 1024, 1024, true},
		{"landscape", 1000, 700, 512, 512, 356, true},
		{"portrait", 700, 1000, 512, 356, 512, true},
		{"within target", 512, 300, 512, 512, 300, false},
		{"exactly target", 1024, 1024, 1024, 1024, 1024, false},
		{"odd small kept", 33, 17, 64, 33, 17, false},
		{"thin floors at 4", 4096, 2, 256, 256, 4, true},
		{"zero target disables", 4096, 4096, 0, 4096, 4096, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w, h, resized := TargetDims(tt.w, tt.h, tt.target)
			if w != tt.wantW || h != tt.wantH || resized != tt.wantResized {
				t.Fatalf("TargetDims(%d,%d,%d) = %d,%d,%v want %d,%d,%v",
					tt.w, tt.h, tt.target, w, h, resized, tt.wantW, tt.wantH, tt.wantResized)
			}
		})
	}
}

func TestTargetDimsProperties(t *testing.T) {
	t.Parallel()

	for _, target := range []int{64, 256, 512, 1000, 1024} {
		for w := 100; w <= 5000; w += 437 {
			for h := 100; h <= 5000; h += 391 {
				nw, nh, resized := TargetDims(w, h, target)
				if !resized {
					if nw != w || nh != h {
						t.Fatalf("unresized %dx%d changed to %dx%d", w, h, nw, nh)
					}
					continue
				}
				if nw > target || nh > target {
					t.Fatalf("%dx%d@%d: %dx%d exceeds target", w, h, target, nw, nh)
				}
				if nw%4 != 0 || nh%4 != 0 || nw < MinDim || nh < MinDim {
					t.Fatalf("%dx%d@%d: %dx%d not snapped", w, h, target, nw, nh)
				}
				// Snapping moves each side by less than 4 (plus 1 for truncation).
				scale := math.Min(float64(target)/float64(w), float64(target)/float64(h))
				if math.Abs(float64(nw)-float64(w)*scale) > 5 && nw != MinDim {
					t.Fatalf("%dx%d@%d: width %d too far from %.2f", w, h, target, nw, float64(w)*scale)
				}
				if math.Abs(float64(nh)-float64(h)*scale) > 5 && nh != MinDim {
					t.Fatalf("%dx%d@%d: height %d too far from %.2f", w, h, target, nh, float64(h)*scale)
				}
				// A second pass must not resize again.
				if rw, rh, again := TargetDims(nw, nh, target); again || rw != nw || rh != nh {
					t.Fatalf("%dx%d@%d: second pass resized %dx%d to %dx%d", w, h, target, nw, nh, rw, rh)
				}
			}
		}
	}
}

func mustDoc(t *testing.T, js string) *glb.Document {
	t.Helper()
	doc, err := glb.DecodeDocument([]byte(js))
	if err != nil {
		t.Fatalf("DecodeDocument: %v", err)
	}
	return doc
}

func TestClassifyLastSlotWins(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `{
		"images":[{"name":"a"},{"name":"b"},{"name":"c"},{},{"name":"  "}],
		"textures":[{"source":0},{"source":1},{"source":2},{"source":0}],
		"materials":[
			{"pbrMetallicRoughness":{"baseColorTexture":{"index":0},"metallicRoughnessTexture":{"index":1}},
			 "normalTexture":{"index":3}},
			{"emissiveTexture":{"index":1},"occlusionTexture":{"index":9}}
		]}`)

	labels := Classify(doc)

	want := map[int]string{
		// basecolor then normal (same image via texture 3) within material 0.
		0: RoleNormal,
		// metallic_roughness in material 0, then emissive in material 1.
		1: RoleEmissive,
		2: "c",
		3: "texture_3",
		4: "texture_4",
	}
	for i, w := range want {
		if got := labels.Label(i); got != w {
			t.Fatalf("Label(%d) = %q want %q", i, got, w)
		}
	}
	if _, ok := labels.Role(2); ok {
		t.Fatalf("image 2 is not referenced by any material")
	}
}

func TestClassifySlotOrderWithinMaterial(t *testing.T) {
	t.Parallel()

	// One texture in every slot: occlusion is visited last.
	doc := mustDoc(t, `{
		"images":[{}],
		"textures":[{"source":0}],
		"materials":[{"pbrMetallicRoughness":{"baseColorTexture":{"index":0},"metallicRoughnessTexture":{"index":0}},
			"normalTexture":{"index":0},"occlusionTexture":{"index":0},"emissiveTexture":{"index":0}}]}`)
	if got := Classify(doc).Label(0); got != RoleOcclusion {
		t.Fatalf("got %q want %q", got, RoleOcclusion)
	}
}

func TestClassifyExtensionSourcesAndDangling(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `{
		"images":[{},{}],
		"textures":[{"source":0,"extensions":{"MSFT_texture_dds":{"source":1}}},{"source":7}],
		"materials":[{"normalTexture":{"index":0}},{"pbrMetallicRoughness":{"baseColorTexture":{"index":1}}}]}`)
	labels := Classify(doc)
	if labels.Label(0) != RoleNormal || labels.Label(1) != RoleNormal {
		t.Fatalf("labels: %q %q", labels.Label(0), labels.Label(1))
	}
}

func TestClassifyNoMaterials(t *testing.T) {
	t.Parallel()

	labels := Classify(mustDoc(t, `{"images":[{},{"name":"roof"}]}`))
	if labels.Label(0) != "texture_0" || labels.Label(1) != "roof" {
		t.Fatalf("labels: %q %q", labels.Label(0), labels.Label(1))
	}
	if Classify(nil).Label(3) != "texture_3" {
		t.Fatalf("nil document must fall back to synthesized labels")
	}
}

func TestFileStem(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]string{
		"basecolor":       "basecolor",
		"Wood Floor/Diff": "Wood_Floor_Diff",
		"../etc":          "_etc",
		"":                "texture",
	} {
		if got := FileStem(in); got != want {
			t.Fatalf("FileStem(%q) = %q want %q", in, got, want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()
	if f, err := ParseFormat(" DDS "); err != nil || f != FormatDDS {
		t.Fatalf("got %q, %v", f, err)
	}
	if _, err := ParseFormat("ktx2"); err == nil {
		t.Fatalf("expected error")
	}
	if FormatDDS.MimeType() != dds.MimeType || FormatPNG.MimeType() != "image/png" {
		t.Fatalf("mime types")
	}
}

// fakeCodec produces deterministic bytes without touching pixels.
type fakeCodec struct {
	w, h      int
	decodeErr error
	encodeErr error
	resizes   int
}

func (f *fakeCodec) Decode(data []byte) (*image.NRGBA, error) {
	if f.decodeErr != nil {
		return nil, f.decodeErr
	}
	return image.NewNRGBA(image.Rect(0, 0, f.w, f.h)), nil
}

func (f *fakeCodec) Resize(img *image.NRGBA, w, h int) *image.NRGBA {
	f.resizes++
	return image.NewNRGBA(image.Rect(0, 0, w, h))
}

func (f *fakeCodec) Encode(img *image.NRGBA, format Format) ([]byte, error) {
	if f.encodeErr != nil {
		return nil, f.encodeErr
	}
	b := img.Bounds()
	return []byte{byte(b.Dx()), byte(b.Dy()), format[0]}, nil
}

func TestPipelineResizesAndEncodes(t *testing.T) {
	t.Parallel()

	codec := &fakeCodec{w: 200, h: 100}
	p := Pipeline{Codec: codec, TargetSize: 64, Format: FormatPNG, Standalone: true}
	res, err := p.Transform([]byte("x"))
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if res.Width != 64 || res.Height != 32 || !res.Resized || codec.resizes != 1 {
		t.Fatalf("dims: %+v resizes=%d", res, codec.resizes)
	}
	if res.OriginalWidth != 200 || res.OriginalHeight != 100 {
		t.Fatalf("original dims: %+v", res)
	}
	if res.MimeType != "image/png" || !bytes.Equal(res.Data, []byte{64, 32, 'p'}) {
		t.Fatalf("data: %v mime %q", res.Data, res.MimeType)
	}
	if !bytes.Equal(res.Standalone, []byte{64, 32, 'd'}) {
		t.Fatalf("standalone must always be DDS: %v", res.Standalone)
	}
}

func TestPipelineSmallImageNotResized(t *testing.T) {
	t.Parallel()

	codec := &fakeCodec{w: 48, h: 20}
	p := Pipeline{Codec: codec, TargetSize: 64, Format: FormatDDS}
	res, err := p.Transform([]byte("x"))
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if res.Resized || codec.resizes != 0 || res.Width != 48 || res.Height != 20 {
		t.Fatalf("small image resized: %+v", res)
	}
	if res.MimeType != dds.MimeType || res.Standalone != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestPipelineErrors(t *testing.T) {
	t.Parallel()

	p := Pipeline{Codec: &fakeCodec{decodeErr: errors.New("bad header")}, TargetSize: 64}
	if _, err := p.Transform(nil); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("decode failure: got %v", err)
	}

	p = Pipeline{Codec: &fakeCodec{w: 8, h: 8, encodeErr: errors.New("no")}, TargetSize: 64}
	if _, err := p.Transform(nil); !errors.Is(err, ErrEncode) {
		t.Fatalf("encode failure: got %v", err)
	}
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestDefaultCodecPreservesAlpha(t *testing.T) {
	t.Parallel()

	src := image.NewNRGBA(image.Rect(0, 0, 64, 32))
	for y := range 32 {
		for x := range 64 {
			src.SetNRGBA(x, y, color.NRGBA{R: 90, G: 160, B: 220, A: 100})
		}
	}
	p := Pipeline{Codec: DefaultCodec{}, TargetSize: 16, Format: FormatPNG, Standalone: true}
	res, err := p.Transform(encodePNG(t, src))
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if res.Width != 16 || res.Height != 8 {
		t.Fatalf("dims: %dx%d", res.Width, res.Height)
	}

	out, err := png.Decode(bytes.NewReader(res.Data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if b := out.Bounds(); b.Dx() != 16 || b.Dy() != 8 {
		t.Fatalf("output bounds: %v", b)
	}
	c := color.NRGBAModel.Convert(out.At(8, 4)).(color.NRGBA)
	if c.A < 98 || c.A > 102 {
		t.Fatalf("alpha not preserved: %+v", c)
	}

	dec, err := dds.Decode(res.Standalone)
	if err != nil {
		t.Fatalf("decode standalone: %v", err)
	}
	if got := dec.NRGBAAt(8, 4).A; got < 98 || got > 102 {
		t.Fatalf("standalone alpha: %d", got)
	}
}

func TestDefaultCodecDecodesDDS(t *testing.T) {
	t.Parallel()

	src := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	data, err := dds.EncodeBC3(src)
	if err != nil {
		t.Fatalf("EncodeBC3: %v", err)
	}
	img, err := DefaultCodec{}.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 8 {
		t.Fatalf("bounds: %v", img.Bounds())
	}
}

func TestDefaultCodecRejectsGarbage(t *testing.T) {
	t.Parallel()
	p := Pipeline{Codec: DefaultCodec{}, TargetSize: 16}
	if _, err := p.Transform([]byte("definitely not an image")); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("got %v", err)
	}
}

func TestDecodeConfig(t *testing.T) {
	t.Parallel()

	img := image.NewNRGBA(image.Rect(0, 0, 12, 8))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	cfg, name, err := DecodeConfig(buf.Bytes())
	if err != nil || name != "png" || cfg.Width != 12 || cfg.Height != 8 {
		t.Fatalf("png: %+v %q %v", cfg, name, err)
	}

	ddsData, err := dds.EncodeBC3(img)
	if err != nil {
		t.Fatalf("EncodeBC3: %v", err)
	}
	cfg, name, err = DecodeConfig(ddsData)
	if err != nil || name != "dds" || cfg.Width != 12 || cfg.Height != 8 {
		t.Fatalf("dds: %+v %q %v", cfg, name, err)
	}

	if _, _, err := DecodeConfig([]byte("garbage")); err == nil {
		t.Fatal("expected error for garbage")
	}
}
