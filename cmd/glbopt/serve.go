package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/glbopt/internal/api"
	"github.com/samcharles93/glbopt/internal/logger"
	"github.com/samcharles93/glbopt/internal/optimize"
	"github.com/samcharles93/glbopt/internal/texture"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		maxBody     int64
		maxReports  int64
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the optimizer over HTTP",
		Flags: append(pipelineFlags(),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.Int64Flag{
				Name:        "max-body",
				Usage:       "maximum request body in bytes",
				Value:       api.DefaultMaxBodyBytes,
				Destination: &maxBody,
			},
			&cli.Int64Flag{
				Name:        "max-reports",
				Usage:       "number of recent optimize reports kept for /v1/reports",
				Value:       256,
				Destination: &maxReports,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyPipelineConfig(cmd, fileConfig)
			applyServeConfig(cmd, fileConfig, &addr, &maxBody)
			log := logger.FromContext(ctx)

			f, err := texture.ParseFormat(format)
			if err != nil {
				return err
			}
			if targetSize <= 0 {
				return fmt.Errorf("--target-size must be positive, got %d", targetSize)
			}

			server := api.NewServer(api.Config{
				Defaults: optimize.Options{
					TargetSize: int(targetSize),
					Format:     f,
					Dedup:      dedup,
				},
				MaxBodyBytes: maxBody,
				MaxReports:   int(maxReports),
				Logger:       log,
			})
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)

			log.Info("starting server", "address", addr, "target_size", targetSize, "format", f)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					srv.ReadTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
