package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const envConfigPath = "GLBOPT_CONFIG"

// Config represents the glbopt configuration file
// ($XDG_CONFIG_HOME/glbopt/config.yaml). Pointer fields distinguish "not set"
// from zero values. Flags given on the command line always win.
type Config struct {
	// Pipeline
	TargetSize *int64 `yaml:"target_size"`
	Format     string `yaml:"format"`
	Dedup      *bool  `yaml:"dedup"`

	// Batch
	Workers       *int64 `yaml:"workers"`
	OutDir        string `yaml:"out_dir"`
	Suffix        string `yaml:"suffix"`
	StandaloneDir string `yaml:"standalone_dir"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
	MaxBodyBytes  *int64 `yaml:"max_body_bytes"`
}

func configPath() string {
	if p := strings.TrimSpace(os.Getenv(envConfigPath)); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "glbopt", "config.yaml")
}

// LoadConfig reads the config file at path. A missing file yields a zero
// Config; a malformed one is an error.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyPipelineConfig applies config file defaults to the pipeline flags
// when the corresponding flag was not explicitly set.
func applyPipelineConfig(c *cli.Command, cfg Config) {
	if cfg.TargetSize != nil && !c.IsSet("target-size") {
		targetSize = *cfg.TargetSize
	}
	if cfg.Format != "" && !c.IsSet("format") {
		format = cfg.Format
	}
	if cfg.Dedup != nil && !c.IsSet("dedup") {
		dedup = *cfg.Dedup
	}
}

func applyBatchConfig(c *cli.Command, cfg Config, workers *int64, outDir, suffix, standaloneDir *string) {
	if cfg.Workers != nil && !c.IsSet("workers") {
		*workers = *cfg.Workers
	}
	if cfg.OutDir != "" && !c.IsSet("out") {
		*outDir = cfg.OutDir
	}
	if cfg.Suffix != "" && !c.IsSet("suffix") {
		*suffix = cfg.Suffix
	}
	if cfg.StandaloneDir != "" && !c.IsSet("standalone-dir") {
		*standaloneDir = cfg.StandaloneDir
	}
}

func applyServeConfig(c *cli.Command, cfg Config, addr *string, maxBody *int64) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.MaxBodyBytes != nil && !c.IsSet("max-body") {
		*maxBody = *cfg.MaxBodyBytes
	}
}
