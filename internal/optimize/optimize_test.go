package optimize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samcharles93/glbopt/internal/texture"
	"github.com/samcharles93/glbopt/pkg/dds"
	"github.com/samcharles93/glbopt/pkg/glb"
)

func gradientPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: uint8(255 - (x+y)%64)})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

// container builds a GLB with one 12-byte vertex view followed by one view per
// image. Entries of viewOf pick the view each image references; nil means
// image i uses view i+1.
func container(t *testing.T, images [][]byte, viewOf []int) []byte {
	t.Helper()
	blob := bytes.Repeat([]byte{0xAB}, 12)
	views := []string{`{"buffer":0,"byteOffset":0,"byteLength":12,"target":34962}`}
	for _, data := range images {
		for len(blob)%4 != 0 {
			blob = append(blob, 0)
		}
		views = append(views, fmt.Sprintf(`{"buffer":0,"byteOffset":%d,"byteLength":%d}`, len(blob), len(data)))
		blob = append(blob, data...)
	}

	var imgs, texs []string
	for i := range images {
		v := i + 1
		if viewOf != nil {
			v = viewOf[i]
		}
		imgs = append(imgs, fmt.Sprintf(`{"bufferView":%d,"mimeType":"image/png"}`, v))
		texs = append(texs, fmt.Sprintf(`{"source":%d}`, i))
	}
	js := fmt.Sprintf(`{"asset":{"version":"2.0"},"buffers":[{"byteLength":%d}],"bufferViews":[%s]`,
		len(blob), strings.Join(views, ","))
	if len(images) > 0 {
		mat := `{"name":"m","pbrMetallicRoughness":{"baseColorTexture":{"index":0}}`
		if len(images) > 1 {
			mat += `,"normalTexture":{"index":1}`
		}
		mat += `}`
		js += fmt.Sprintf(`,"images":[%s],"textures":[%s],"materials":[%s]`,
			strings.Join(imgs, ","), strings.Join(texs, ","), mat)
	}
	js += `}`

	doc, err := glb.DecodeDocument([]byte(js))
	if err != nil {
		t.Fatalf("DecodeDocument: %v", err)
	}
	out, err := glb.Serialize(doc, blob)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	return out
}

func writeInput(t *testing.T, data []byte) (string, string) {
	t.Helper()
	dir := t.TempDir()
	in := filepath.Join(dir, "scene.glb")
	if err := os.WriteFile(in, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return in, filepath.Join(dir, "scene_opt.glb")
}

func imageConfig(t *testing.T, doc *glb.Document, blob []byte, i int) image.Config {
	t.Helper()
	bv := doc.BufferViews[*doc.Images[i].BufferView]
	cfg, _, err := image.DecodeConfig(bytes.NewReader(blob[bv.ByteOffset : bv.ByteOffset+bv.ByteLength]))
	if err != nil {
		t.Fatalf("decode image %d: %v", i, err)
	}
	return cfg
}

func TestFileDownscalesLargeTexture(t *testing.T) {
	t.Parallel()

	data := container(t, [][]byte{gradientPNG(t, 2048, 2048)}, nil)
	in, out := writeInput(t, data)

	rep, err := File(context.Background(), in, out, Options{TargetSize: 1024, Format: texture.FormatPNG})
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if len(rep.Images) != 1 {
		t.Fatalf("images: %d", len(rep.Images))
	}
	ir := rep.Images[0]
	if ir.Role != texture.RoleBaseColor || ir.NewWidth != 1024 || ir.NewHeight != 1024 {
		t.Fatalf("report: %+v", ir)
	}
	if ir.OriginalWidth != 2048 || ir.OriginalHeight != 2048 {
		t.Fatalf("original dims: %+v", ir)
	}
	if rep.OutputBytes >= rep.InputBytes {
		t.Fatalf("output %d not smaller than input %d", rep.OutputBytes, rep.InputBytes)
	}

	doc, blob, err := glb.Open(out)
	if err != nil {
		t.Fatalf("Open output: %v", err)
	}
	if doc.Images[0].MimeType != "image/png" {
		t.Fatalf("mimeType: %q", doc.Images[0].MimeType)
	}
	cfg := imageConfig(t, doc, blob, 0)
	if cfg.Width != 1024 || cfg.Height != 1024 {
		t.Fatalf("embedded dims: %dx%d", cfg.Width, cfg.Height)
	}
	st, err := os.Stat(out)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if st.Size() != rep.OutputBytes {
		t.Fatalf("report bytes %d, file %d", rep.OutputBytes, st.Size())
	}
}

func TestFileSnapsToMultipleOfFour(t *testing.T) {
	t.Parallel()

	data := container(t, [][]byte{gradientPNG(t, 1000, 700)}, nil)
	in, out := writeInput(t, data)

	rep, err := File(context.Background(), in, out, Options{TargetSize: 512})
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if ir := rep.Images[0]; ir.NewWidth != 512 || ir.NewHeight != 356 {
		t.Fatalf("dims: %dx%d", ir.NewWidth, ir.NewHeight)
	}
	doc, blob, err := glb.Open(out)
	if err != nil {
		t.Fatalf("Open output: %v", err)
	}
	if cfg := imageConfig(t, doc, blob, 0); cfg.Width != 512 || cfg.Height != 356 {
		t.Fatalf("embedded dims: %dx%d", cfg.Width, cfg.Height)
	}
}

func TestFileWithoutImagesIsPassThrough(t *testing.T) {
	t.Parallel()

	data := container(t, nil, nil)
	in, out := writeInput(t, data)

	rep, err := File(context.Background(), in, out, Options{})
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if len(rep.Images) != 0 {
		t.Fatalf("images: %+v", rep.Images)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("pass-through changed the container (%d vs %d bytes)", len(got), len(data))
	}
}

func TestFileRejectsBadMagic(t *testing.T) {
	t.Parallel()

	data := container(t, [][]byte{gradientPNG(t, 8, 8)}, nil)
	copy(data, "glTX")
	in, out := writeInput(t, data)

	_, err := File(context.Background(), in, out, Options{Standalone: true})
	if !errors.Is(err, glb.ErrContainerFormat) {
		t.Fatalf("expected ErrContainerFormat, got %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(out))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the input file, found %d entries", len(entries))
	}
}

func TestFileUndecodableImage(t *testing.T) {
	t.Parallel()

	data := container(t, [][]byte{[]byte("definitely not an image")}, nil)
	in, out := writeInput(t, data)

	_, err := File(context.Background(), in, out, Options{})
	if !errors.Is(err, texture.ErrUnsupportedImage) {
		t.Fatalf("expected ErrUnsupportedImage, got %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("output written despite failure: %v", err)
	}
}

func TestFileSharedViewKeepsImagesIndependent(t *testing.T) {
	t.Parallel()

	src := gradientPNG(t, 64, 32)
	data := container(t, [][]byte{src, nil}, []int{1, 1})
	in, out := writeInput(t, data)

	rep, err := File(context.Background(), in, out, Options{TargetSize: 16})
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	doc, blob, err := glb.Open(out)
	if err != nil {
		t.Fatalf("Open output: %v", err)
	}
	a, b := *doc.Images[0].BufferView, *doc.Images[1].BufferView
	if a == b {
		t.Fatalf("images still share view %d", a)
	}
	if doc.BufferViews[a].ByteOffset == doc.BufferViews[b].ByteOffset {
		t.Fatalf("images share a region at %d", doc.BufferViews[a].ByteOffset)
	}
	for i := range 2 {
		if cfg := imageConfig(t, doc, blob, i); cfg.Width != 16 || cfg.Height != 8 {
			t.Fatalf("image %d dims: %dx%d", i, cfg.Width, cfg.Height)
		}
		if rep.Images[i].Shared {
			t.Fatalf("image %d reported shared without dedup", i)
		}
	}
}

func TestFileDedupSharesRegion(t *testing.T) {
	t.Parallel()

	src := gradientPNG(t, 32, 32)
	data := container(t, [][]byte{src, src}, nil)
	in, out := writeInput(t, data)

	rep, err := File(context.Background(), in, out, Options{TargetSize: 16, Dedup: true})
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if rep.Images[0].Shared || !rep.Images[1].Shared {
		t.Fatalf("shared flags: %+v", rep.Images)
	}
	doc, _, err := glb.Open(out)
	if err != nil {
		t.Fatalf("Open output: %v", err)
	}
	a := doc.BufferViews[*doc.Images[0].BufferView]
	b := doc.BufferViews[*doc.Images[1].BufferView]
	if a.ByteOffset != b.ByteOffset || a.ByteLength != b.ByteLength {
		t.Fatalf("dedup did not share: %+v vs %+v", a, b)
	}
}

func TestFileIsIdempotent(t *testing.T) {
	t.Parallel()

	data := container(t, [][]byte{gradientPNG(t, 256, 128), gradientPNG(t, 40, 40)}, nil)
	in, out := writeInput(t, data)
	opts := Options{TargetSize: 64}

	if _, err := File(context.Background(), in, out, opts); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	again := filepath.Join(filepath.Dir(out), "again.glb")
	rep, err := File(context.Background(), out, again, opts)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	for _, ir := range rep.Images {
		if ir.NewWidth != ir.OriginalWidth || ir.NewHeight != ir.OriginalHeight {
			t.Fatalf("second run resized image %d: %+v", ir.Index, ir)
		}
	}
	second, err := os.ReadFile(again)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("second run changed the container (%d vs %d bytes)", len(first), len(second))
	}
}

func TestFileInPlace(t *testing.T) {
	t.Parallel()

	data := container(t, [][]byte{gradientPNG(t, 64, 64)}, nil)
	in, _ := writeInput(t, data)

	if _, err := File(context.Background(), in, in, Options{TargetSize: 32}); err != nil {
		t.Fatalf("File: %v", err)
	}
	doc, blob, err := glb.Open(in)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if cfg := imageConfig(t, doc, blob, 0); cfg.Width != 32 {
		t.Fatalf("in-place output not resized: %dx%d", cfg.Width, cfg.Height)
	}
}

func TestFileDDSAndStandalone(t *testing.T) {
	t.Parallel()

	data := container(t, [][]byte{gradientPNG(t, 32, 32), gradientPNG(t, 16, 16)}, nil)
	in, out := writeInput(t, data)
	exportDir := filepath.Join(t.TempDir(), "export")

	rep, err := File(context.Background(), in, out, Options{
		TargetSize:    16,
		Format:        texture.FormatDDS,
		Standalone:    true,
		StandaloneDir: exportDir,
	})
	if err != nil {
		t.Fatalf("File: %v", err)
	}

	doc, blob, err := glb.Open(out)
	if err != nil {
		t.Fatalf("Open output: %v", err)
	}
	for i, img := range doc.Images {
		if img.MimeType != dds.MimeType {
			t.Fatalf("image %d mimeType %q", i, img.MimeType)
		}
		bv := doc.BufferViews[*img.BufferView]
		h, err := dds.DecodeConfig(blob[bv.ByteOffset : bv.ByteOffset+bv.ByteLength])
		if err != nil {
			t.Fatalf("image %d: %v", i, err)
		}
		if h.Width != 16 || h.Height != 16 {
			t.Fatalf("image %d dims %dx%d", i, h.Width, h.Height)
		}
	}

	for _, want := range []string{"scene_basecolor.dds", "scene_normal.dds"} {
		path := filepath.Join(exportDir, want)
		b, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("standalone %s: %v", want, err)
		}
		if !dds.IsDDS(b) {
			t.Fatalf("%s is not a DDS file", want)
		}
	}
	if rep.Images[0].Standalone != filepath.Join(exportDir, "scene_basecolor.dds") {
		t.Fatalf("standalone path: %q", rep.Images[0].Standalone)
	}
}

func TestWriteStandaloneDisambiguates(t *testing.T) {
	t.Parallel()

	data := container(t, [][]byte{gradientPNG(t, 8, 8), gradientPNG(t, 8, 8), gradientPNG(t, 8, 8)}, nil)
	in, out := writeInput(t, data)

	// Image 2 has no material slot, so its label falls back to its name.
	raw, err := os.ReadFile(in)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	doc, blob, err := glb.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	doc.Images[2].Name = "normal"
	if _, err := glb.WriteFile(in, doc, blob); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	rep, err := File(context.Background(), in, out, Options{Standalone: true})
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	dir := filepath.Dir(out)
	for _, want := range []string{"scene_basecolor.dds", "scene_normal_1.dds", "scene_normal_2.dds"} {
		if _, err := os.Stat(filepath.Join(dir, want)); err != nil {
			t.Fatalf("missing %s: %v", want, err)
		}
	}
	if rep.Images[2].Role != "normal" {
		t.Fatalf("role fallback: %q", rep.Images[2].Role)
	}
}

func TestStandaloneStem(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]string{
		"/m/scene.glb":             "scene",
		"/m/crate_texture.glb":     "crate",
		"/m/crate_texture_opt.glb": "crate_opt",
		"rel/Model.GLB":            "Model",
	} {
		if got := standaloneStem(in); got != want {
			t.Fatalf("standaloneStem(%q) = %q, want %q", in, got, want)
		}
	}
}

// alphaSteps encodes a PNG whose alpha runs 0, 85, 170, 255 across every
// four columns.
func alphaSteps(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{R: 90, G: 160, B: 30, A: uint8(x % 4 * 85)})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestFileDDSRerunPreservesAlpha(t *testing.T) {
	t.Parallel()

	data := container(t, [][]byte{alphaSteps(t, 32, 32)}, nil)
	in, out := writeInput(t, data)
	opts := Options{TargetSize: 32, Format: texture.FormatDDS}

	if _, err := File(context.Background(), in, out, opts); err != nil {
		t.Fatalf("first run: %v", err)
	}
	again := filepath.Join(filepath.Dir(out), "again.glb")
	if _, err := File(context.Background(), out, again, opts); err != nil {
		t.Fatalf("second run: %v", err)
	}

	doc, blob, err := glb.Open(again)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	bv := doc.BufferViews[*doc.Images[0].BufferView]
	img, err := dds.Decode(blob[bv.ByteOffset : bv.ByteOffset+bv.ByteLength])
	if err != nil {
		t.Fatalf("dds.Decode: %v", err)
	}
	for y := range 32 {
		for x := range 32 {
			want := x % 4 * 85
			got := int(img.NRGBAAt(x, y).A)
			// 85 and 170 land on the 72 and 182 palette entries.
			if d := got - want; d < -16 || d > 16 {
				t.Fatalf("alpha at %d,%d: got %d want ~%d", x, y, got, want)
			}
		}
	}
}

func TestBytes(t *testing.T) {
	t.Parallel()

	data := container(t, [][]byte{gradientPNG(t, 128, 64)}, nil)
	out, rep, err := Bytes(context.Background(), data, Options{TargetSize: 32, Standalone: true})
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if rep.InputBytes != int64(len(data)) || rep.OutputBytes != int64(len(out)) {
		t.Fatalf("report sizes: %+v", rep)
	}
	doc, blob, err := glb.Parse(out)
	if err != nil {
		t.Fatalf("Parse output: %v", err)
	}
	if cfg := imageConfig(t, doc, blob, 0); cfg.Width != 32 || cfg.Height != 16 {
		t.Fatalf("dims: %dx%d", cfg.Width, cfg.Height)
	}
	if rep.Images[0].Standalone != "" {
		t.Fatalf("Bytes should not export standalone files")
	}
}

func TestInvalidOptions(t *testing.T) {
	t.Parallel()

	data := container(t, nil, nil)
	for _, opts := range []Options{{TargetSize: -1}, {Format: "ktx2"}} {
		if _, _, err := Bytes(context.Background(), data, opts); !errors.Is(err, ErrInvalidOptions) {
			t.Fatalf("%+v: expected ErrInvalidOptions, got %v", opts, err)
		}
	}
}

func TestInspect(t *testing.T) {
	t.Parallel()

	data := container(t, [][]byte{gradientPNG(t, 48, 24), []byte("junk")}, nil)
	ins, err := Inspect(data)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if ins.Version != glb.Version || int(ins.Length) != len(data) {
		t.Fatalf("header: %+v", ins)
	}
	if len(ins.Chunks) != 2 || ins.Chunks[0].Type != "JSON" || ins.Chunks[1].Type != "BIN" {
		t.Fatalf("chunks: %+v", ins.Chunks)
	}
	if ins.BufferViews != 3 || ins.Materials != 1 || ins.Textures != 2 {
		t.Fatalf("counts: %+v", ins)
	}
	first := ins.Images[0]
	if first.Role != texture.RoleBaseColor || first.Width != 48 || first.Height != 24 || first.Format != "png" {
		t.Fatalf("image 0: %+v", first)
	}
	if ins.Images[1].Role != texture.RoleNormal || ins.Images[1].Error == "" {
		t.Fatalf("image 1 should carry a sniff error: %+v", ins.Images[1])
	}

	if _, err := Inspect([]byte("short")); !errors.Is(err, glb.ErrContainerFormat) {
		t.Fatalf("expected ErrContainerFormat, got %v", err)
	}
}
