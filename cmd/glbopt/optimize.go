package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/glbopt/internal/batch"
	"github.com/samcharles93/glbopt/internal/logger"
	"github.com/samcharles93/glbopt/internal/optimize"
	"github.com/samcharles93/glbopt/internal/texture"
)

func optimizeCmd() *cli.Command {
	var (
		standalone    bool
		standaloneDir string
		outDir        string
		suffix        string
		inPlace       bool
		recursive     bool
		workers       int64
		jsonOut       bool
	)

	return &cli.Command{
		Name:      "optimize",
		Usage:     "Rewrite GLB files with downscaled textures",
		ArgsUsage: "<file.glb|dir>...",
		Flags: append(pipelineFlags(),
			&cli.BoolFlag{
				Name:        "standalone",
				Usage:       "also write each texture as <name>_<role>.dds",
				Destination: &standalone,
			},
			&cli.StringFlag{
				Name:        "standalone-dir",
				Usage:       "directory for standalone textures (default: next to the output)",
				Destination: &standaloneDir,
			},
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output directory (default: $" + envOutDir + ", else next to each input)",
				Destination: &outDir,
			},
			&cli.StringFlag{
				Name:        "suffix",
				Usage:       "suffix added to output names when no output directory is set",
				Value:       batch.DefaultSuffix,
				Destination: &suffix,
			},
			&cli.BoolFlag{
				Name:        "recursive",
				Aliases:     []string{"r"},
				Usage:       "include subdirectories of directory inputs",
				Destination: &recursive,
			},
			&cli.BoolFlag{
				Name:        "in-place",
				Usage:       "overwrite the input files",
				Destination: &inPlace,
			},
			&cli.Int64Flag{
				Name:        "workers",
				Aliases:     []string{"j"},
				Usage:       "files processed concurrently (0 = GOMAXPROCS)",
				Destination: &workers,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print reports as JSON",
				Destination: &jsonOut,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyPipelineConfig(cmd, fileConfig)
			applyBatchConfig(cmd, fileConfig, &workers, &outDir, &suffix, &standaloneDir)

			inputs := cmd.Args().Slice()
			if len(inputs) == 0 {
				return errors.New("optimize: at least one input file or directory is required")
			}
			f, err := texture.ParseFormat(format)
			if err != nil {
				return err
			}
			if targetSize <= 0 {
				return fmt.Errorf("--target-size must be positive, got %d", targetSize)
			}
			if err := validateSuffix(suffix); err != nil {
				return err
			}
			out, err := resolveOutDir(outDir, inPlace)
			if err != nil {
				return err
			}

			job := batch.Job{
				Inputs:    inputs,
				Recursive: recursive,
				OutDir:    out,
				Suffix:    suffix,
				InPlace:   inPlace,
				Workers:   int(workers),
				Options: optimize.Options{
					TargetSize:    int(targetSize),
					Format:        f,
					Standalone:    standalone,
					StandaloneDir: standaloneDir,
					Dedup:         dedup,
				},
			}
			logger.FromContext(ctx).Debug("starting batch", "inputs", len(inputs), "out", out, "format", f, "target_size", targetSize)

			sum, runErr := batch.Run(ctx, job)
			if jsonOut {
				if err := printSummaryJSON(os.Stdout, sum); err != nil {
					return err
				}
			} else {
				printSummary(os.Stdout, sum)
			}
			if runErr != nil {
				return runErr
			}
			if sum.Failed > 0 {
				return fmt.Errorf("optimize: %d of %d files failed", sum.Failed, sum.Failed+sum.Processed)
			}
			return nil
		},
	}
}

func printSummary(w io.Writer, sum batch.Summary) {
	for _, r := range sum.Results {
		if r.Err != nil {
			_, _ = fmt.Fprintf(w, "FAIL %s: %v\n", r.Input, r.Err)
			continue
		}
		rep := r.Report
		_, _ = fmt.Fprintf(w, "%s -> %s  %s -> %s (%d images)\n",
			r.Input, r.Output, humanBytes(rep.InputBytes), humanBytes(rep.OutputBytes), len(rep.Images))
		for _, img := range rep.Images {
			if img.Skipped {
				_, _ = fmt.Fprintf(w, "  [%d] %-18s skipped (not embedded)\n", img.Index, img.Role)
				continue
			}
			note := ""
			if img.Shared {
				note = " shared"
			}
			_, _ = fmt.Fprintf(w, "  [%d] %-18s %dx%d -> %dx%d  %s -> %s%s\n",
				img.Index, img.Role,
				img.OriginalWidth, img.OriginalHeight, img.NewWidth, img.NewHeight,
				humanBytes(int64(img.OriginalBytes)), humanBytes(int64(img.NewBytes)), note)
		}
	}
	if len(sum.Results) > 1 || sum.Skipped > 0 {
		_, _ = fmt.Fprintf(w, "%d optimized, %d failed, %d not started  %s -> %s\n",
			sum.Processed, sum.Failed, sum.Skipped, humanBytes(sum.InputBytes), humanBytes(sum.OutputBytes))
	}
}

type fileSummaryJSON struct {
	Input  string           `json:"input"`
	Output string           `json:"output,omitempty"`
	Error  string           `json:"error,omitempty"`
	Report *optimize.Report `json:"report,omitempty"`
}

func printSummaryJSON(w io.Writer, sum batch.Summary) error {
	files := make([]fileSummaryJSON, 0, len(sum.Results))
	for _, r := range sum.Results {
		f := fileSummaryJSON{Input: r.Input, Output: r.Output, Report: r.Report}
		if r.Err != nil {
			f.Error = r.Err.Error()
		}
		files = append(files, f)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"files":        files,
		"processed":    sum.Processed,
		"failed":       sum.Failed,
		"skipped":      sum.Skipped,
		"input_bytes":  sum.InputBytes,
		"output_bytes": sum.OutputBytes,
	})
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
