package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const envOutDir = "GLBOPT_OUT_DIR"

// resolveOutDir picks the output directory: the --out flag, then
// GLBOPT_OUT_DIR, then none (outputs land next to their inputs). In-place
// runs never use an output directory.
func resolveOutDir(outFlag string, inPlace bool) (string, error) {
	outFlag = strings.TrimSpace(outFlag)
	if inPlace {
		if outFlag != "" {
			return "", errors.New("--in-place and --out are mutually exclusive")
		}
		return "", nil
	}
	if outFlag == "" {
		outFlag = strings.TrimSpace(os.Getenv(envOutDir))
	}
	if outFlag == "" {
		return "", nil
	}
	out := filepath.Clean(outFlag)
	if err := os.MkdirAll(out, 0o755); err != nil {
		return "", err
	}
	return out, nil
}

// validateSuffix rejects suffixes that would make the output name equal to
// the input or escape its directory.
func validateSuffix(suffix string) error {
	if suffix == "" {
		return nil
	}
	if strings.ContainsAny(suffix, `/\`) {
		return errors.New("--suffix must not contain path separators")
	}
	return nil
}
