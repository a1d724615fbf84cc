package main

import (
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/glbopt/internal/optimize"
)

var (
	targetSize int64
	format     string
	dedup      bool
	logLevel   string
	logFormat  string
	debug      bool

	// fileConfig is loaded once by the root Before hook.
	fileConfig Config
)

// pipelineFlags are shared by optimize and serve; for serve they set the
// defaults that request parameters override.
func pipelineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "target-size",
			Aliases:     []string{"s"},
			Usage:       "maximum texture width and height in pixels",
			Value:       optimize.DefaultTargetSize,
			Destination: &targetSize,
		},
		&cli.StringFlag{
			Name:        "format",
			Aliases:     []string{"f"},
			Usage:       "embedded texture format (png, dds)",
			Value:       "png",
			Destination: &format,
		},
		&cli.BoolFlag{
			Name:        "dedup",
			Usage:       "share one output region between images with identical bytes",
			Destination: &dedup,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}
