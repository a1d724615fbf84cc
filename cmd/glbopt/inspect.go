package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/glbopt/internal/optimize"
)

func inspectCmd() *cli.Command {
	var jsonOut bool

	return &cli.Command{
		Name:      "inspect",
		Usage:     "Print the chunk layout and embedded images of GLB files",
		ArgsUsage: "<file.glb>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print as JSON",
				Destination: &jsonOut,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			paths := cmd.Args().Slice()
			if len(paths) == 0 {
				return errors.New("inspect: at least one file is required")
			}
			var errs []error
			for _, path := range paths {
				if err := inspectFile(os.Stdout, path, jsonOut); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", path, err))
				}
			}
			return errors.Join(errs...)
		},
	}
}

func inspectFile(w io.Writer, path string, jsonOut bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	ins, err := optimize.Inspect(data)
	if err != nil {
		return err
	}
	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Path string `json:"path"`
			*optimize.Inspection
		}{path, ins})
	}
	printInspection(w, path, ins)
	return nil
}

func printInspection(w io.Writer, path string, ins *optimize.Inspection) {
	_, _ = fmt.Fprintf(w, "%s: glTF binary v%d, %s\n", path, ins.Version, humanBytes(int64(ins.Length)))
	for _, c := range ins.Chunks {
		_, _ = fmt.Fprintf(w, "  chunk %-4s offset=%d length=%d\n", c.Type, c.Offset, c.Length)
	}
	_, _ = fmt.Fprintf(w, "  buffers=%d bufferViews=%d materials=%d textures=%d images=%d\n",
		ins.Buffers, ins.BufferViews, ins.Materials, ins.Textures, len(ins.Images))
	for _, img := range ins.Images {
		switch {
		case img.URI != "":
			_, _ = fmt.Fprintf(w, "  [%d] %-18s external %s\n", img.Index, img.Role, img.URI)
		case img.Error != "":
			_, _ = fmt.Fprintf(w, "  [%d] %-18s %s (%s)\n", img.Index, img.Role, img.MimeType, img.Error)
		default:
			_, _ = fmt.Fprintf(w, "  [%d] %-18s %s %dx%d %s\n",
				img.Index, img.Role, img.Format, img.Width, img.Height, humanBytes(int64(img.Bytes)))
		}
	}
}
