// Package optimize runs the texture optimization pipeline on one GLB
// container: parse, classify, rebuild, serialize, and optionally export each
// texture as a standalone DDS file.
package optimize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/samcharles93/glbopt/internal/logger"
	"github.com/samcharles93/glbopt/internal/rebuild"
	"github.com/samcharles93/glbopt/internal/texture"
	"github.com/samcharles93/glbopt/pkg/dds"
	"github.com/samcharles93/glbopt/pkg/glb"
)

const DefaultTargetSize = 1024

var ErrInvalidOptions = errors.New("optimize: invalid options")

type Options struct {
	// TargetSize bounds the longer side of every texture. Zero means
	// DefaultTargetSize.
	TargetSize int
	Format     texture.Format
	Standalone bool
	// StandaloneDir is where standalone DDS files go; empty means next to
	// the output container.
	StandaloneDir string
	Dedup         bool
	Codec         texture.Codec
}

func (o Options) withDefaults() (Options, error) {
	if o.TargetSize < 0 {
		return o, fmt.Errorf("%w: target size %d", ErrInvalidOptions, o.TargetSize)
	}
	if o.TargetSize == 0 {
		o.TargetSize = DefaultTargetSize
	}
	if o.Format == "" {
		o.Format = texture.FormatPNG
	}
	if _, err := texture.ParseFormat(string(o.Format)); err != nil {
		return o, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	if o.Codec == nil {
		o.Codec = texture.DefaultCodec{}
	}
	return o, nil
}

// ImageReport is the per-image outcome of a run.
type ImageReport struct {
	Index          int    `json:"index"`
	Role           string `json:"role"`
	OriginalWidth  int    `json:"original_width"`
	OriginalHeight int    `json:"original_height"`
	NewWidth       int    `json:"new_width"`
	NewHeight      int    `json:"new_height"`
	OriginalBytes  int    `json:"original_bytes"`
	NewBytes       int    `json:"new_bytes"`
	// Shared is set when the image reuses the output region of an identical
	// earlier image.
	Shared     bool   `json:"shared,omitempty"`
	Skipped    bool   `json:"skipped,omitempty"`
	Standalone string `json:"standalone,omitempty"`
}

type Report struct {
	Input       string        `json:"input,omitempty"`
	Output      string        `json:"output,omitempty"`
	InputBytes  int64         `json:"input_bytes"`
	OutputBytes int64         `json:"output_bytes"`
	Images      []ImageReport `json:"images"`
	Elapsed     time.Duration `json:"elapsed_ns"`
}

// Bytes optimizes an in-memory container and returns the serialized result.
// Standalone exports are not produced.
func Bytes(ctx context.Context, data []byte, opts Options) ([]byte, *Report, error) {
	start := time.Now()
	opts.Standalone = false
	doc, blob, err := glb.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	res, rep, err := run(ctx, doc, blob, opts)
	if err != nil {
		return nil, nil, err
	}
	out, err := glb.Serialize(res.Document, res.Blob)
	if err != nil {
		return nil, nil, err
	}
	rep.InputBytes = int64(len(data))
	rep.OutputBytes = int64(len(out))
	rep.Elapsed = time.Since(start)
	return out, rep, nil
}

// File optimizes the container at inputPath and writes it to outputPath.
// Nothing is written unless the whole container was rebuilt; standalone
// files are written after the container.
func File(ctx context.Context, inputPath, outputPath string, opts Options) (*Report, error) {
	start := time.Now()
	log := logger.FromContext(ctx).With("input", inputPath)

	st, err := os.Stat(inputPath)
	if err != nil {
		return nil, err
	}
	doc, blob, err := glb.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", inputPath, err)
	}
	res, rep, err := run(ctx, doc, blob, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", inputPath, err)
	}

	n, err := glb.WriteFile(outputPath, res.Document, res.Blob)
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", outputPath, err)
	}
	rep.Input = inputPath
	rep.Output = outputPath
	rep.InputBytes = st.Size()
	rep.OutputBytes = n

	if opts.Standalone {
		dir := opts.StandaloneDir
		if dir == "" {
			dir = filepath.Dir(outputPath)
		}
		if err := writeStandalone(dir, standaloneStem(inputPath), res.Images, rep.Images); err != nil {
			return nil, err
		}
	}
	rep.Elapsed = time.Since(start)

	log.Info("optimized",
		"output", outputPath,
		"images", len(rep.Images),
		"bytes_in", rep.InputBytes,
		"bytes_out", rep.OutputBytes,
		"elapsed", rep.Elapsed.Round(time.Millisecond),
	)
	return rep, nil
}

func run(ctx context.Context, doc *glb.Document, blob []byte, opts Options) (*rebuild.Result, *Report, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, nil, err
	}
	labels := texture.Classify(doc)
	res, err := rebuild.Rebuild(ctx, doc, blob, labels, rebuild.Params{
		TargetSize: opts.TargetSize,
		Format:     opts.Format,
		Standalone: opts.Standalone,
		Dedup:      opts.Dedup,
		Codec:      opts.Codec,
	})
	if err != nil {
		return nil, nil, err
	}

	rep := &Report{Images: make([]ImageReport, len(res.Images))}
	for i, r := range res.Images {
		rep.Images[i] = ImageReport{
			Index:          r.Index,
			Role:           r.Label,
			OriginalWidth:  r.OriginalWidth,
			OriginalHeight: r.OriginalHeight,
			NewWidth:       r.Width,
			NewHeight:      r.Height,
			OriginalBytes:  r.OriginalBytes,
			NewBytes:       r.NewBytes,
			Shared:         r.SharedWith >= 0,
			Skipped:        r.Skipped,
		}
	}
	return res, rep, nil
}

// writeStandalone writes one <stem>_<role>.dds per transformed image. Images
// that would collide on a name get their index appended.
func writeStandalone(dir, base string, images []rebuild.ImageResult, reports []ImageReport) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	counts := make(map[string]int)
	for _, r := range images {
		if r.Standalone != nil {
			counts[texture.FileStem(r.Label)]++
		}
	}
	for i, r := range images {
		if r.Standalone == nil {
			continue
		}
		name := texture.FileStem(r.Label)
		if counts[name] > 1 {
			name += "_" + strconv.Itoa(r.Index)
		}
		path := filepath.Join(dir, base+"_"+name+texture.FormatDDS.Ext())
		if !dds.IsDDS(r.Standalone) {
			return fmt.Errorf("standalone export for image %d is not a DDS file", r.Index)
		}
		if err := os.WriteFile(path, r.Standalone, 0o644); err != nil {
			return fmt.Errorf("write standalone %s: %w", path, err)
		}
		reports[i].Standalone = path
	}
	return nil
}

// standaloneStem names standalone exports after the input file, dropping any
// "_texture" marker from its stem.
func standaloneStem(path string) string {
	base := filepath.Base(path)
	return strings.ReplaceAll(strings.TrimSuffix(base, filepath.Ext(base)), "_texture", "")
}
