package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/glbopt/internal/logger"
)

func main() {
	app := &cli.Command{
		Name:  "glbopt",
		Usage: "Downscale and re-encode the textures embedded in GLB files",
		Flags: loggingFlags(),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			cfg, err := LoadConfig(configPath())
			if err != nil {
				return ctx, err
			}
			fileConfig = cfg
			applyLoggingConfig(cmd, cfg)
			level := logLevel
			if debug {
				level = "debug"
			}
			log, err := logger.Build(os.Stderr, level, logFormat)
			if err != nil {
				return ctx, err
			}
			return logger.WithContext(ctx, log), nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			optimizeCmd(),
			inspectCmd(),
			serveCmd(),
			versionCmd(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
