//go:build ignore

// mkglb writes a sample GLB with one generated texture per requested size,
// for trying the optimizer by hand:
//
//	go run scripts/mkglb.go -o sample.glb 2048x2048 1000x700
package main

import (
	"bytes"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"

	"github.com/samcharles93/glbopt/pkg/glb"
)

var roles = []string{"baseColorTexture", "metallicRoughnessTexture", "normalTexture", "emissiveTexture", "occlusionTexture"}

func main() {
	out := flag.String("o", "sample.glb", "output path")
	flag.Parse()
	sizes := flag.Args()
	if len(sizes) == 0 {
		sizes = []string{"1024x1024"}
	}
	if len(sizes) > len(roles) {
		fmt.Fprintf(os.Stderr, "at most %d textures\n", len(roles))
		os.Exit(2)
	}

	var blob []byte
	var views, images, textures, slots []string
	for i, s := range sizes {
		var w, h int
		if _, err := fmt.Sscanf(s, "%dx%d", &w, &h); err != nil || w <= 0 || h <= 0 {
			fmt.Fprintf(os.Stderr, "bad size %q\n", s)
			os.Exit(2)
		}
		data := pattern(w, h, i)
		for len(blob)%glb.Align != 0 {
			blob = append(blob, 0)
		}
		views = append(views, fmt.Sprintf(`{"buffer":0,"byteOffset":%d,"byteLength":%d}`, len(blob), len(data)))
		blob = append(blob, data...)
		images = append(images, fmt.Sprintf(`{"bufferView":%d,"mimeType":"image/png","name":"tex%d"}`, i, i))
		textures = append(textures, fmt.Sprintf(`{"source":%d}`, i))
		slots = append(slots, fmt.Sprintf(`%q:{"index":%d}`, roles[i], i))
	}

	var pbr, other []string
	for i, s := range slots {
		if i < 2 {
			pbr = append(pbr, s)
		} else {
			other = append(other, s)
		}
	}
	material := `{"name":"sample","pbrMetallicRoughness":{` + strings.Join(pbr, ",") + `}`
	if len(other) > 0 {
		material += "," + strings.Join(other, ",")
	}
	material += "}"

	js := fmt.Sprintf(`{"asset":{"version":"2.0","generator":"glbopt mkglb"},`+
		`"buffers":[{"byteLength":%d}],"bufferViews":[%s],"images":[%s],"textures":[%s],"materials":[%s]}`,
		len(blob), strings.Join(views, ","), strings.Join(images, ","), strings.Join(textures, ","), material)
	doc, err := glb.DecodeDocument([]byte(js))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	n, err := glb.WriteFile(*out, doc, blob)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s (%d bytes, %d textures)\n", *out, n, len(sizes))
}

func pattern(w, h, seed int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			c := color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: uint8(seed * 60), A: 255}
			if (x/32+y/32)%2 == 0 {
				c.A = 160
			}
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
