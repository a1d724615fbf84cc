// Package batch optimizes many GLB files on a bounded worker pool.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/samcharles93/glbopt/internal/logger"
	"github.com/samcharles93/glbopt/internal/optimize"
)

const DefaultSuffix = "_opt"

var (
	ErrNoInputs = errors.New("batch: no .glb inputs")
	// ErrWouldOverwrite is returned for a file whose derived output path is
	// the input itself while in-place mode is off.
	ErrWouldOverwrite = errors.New("batch: output would overwrite input")
	// ErrOutputCollision is returned for a file whose output path was already
	// claimed by an earlier input of the same job.
	ErrOutputCollision = errors.New("batch: output path collision")
)

type Job struct {
	// Inputs are files or directories. Directories contribute their *.glb
	// files, including subdirectories when Recursive is set.
	Inputs    []string
	Recursive bool
	// OutDir receives outputs under their original names, mirroring the
	// layout below each input directory. Empty writes next to the input.
	OutDir string
	// Suffix is appended to the file stem when OutDir is empty.
	Suffix  string
	InPlace bool
	Workers int
	Options optimize.Options
}

// Input is one file selected for processing.
type Input struct {
	Path string
	// Root is the directory argument the file was found under, or empty for
	// files named directly.
	Root string
}

type FileResult struct {
	Input  string
	Output string
	Report *optimize.Report
	Err    error
}

type Summary struct {
	Results     []FileResult
	Processed   int
	Failed      int
	Skipped     int
	InputBytes  int64
	OutputBytes int64
}

// Err joins the per-file errors, or returns nil when every file succeeded.
func (s Summary) Err() error {
	var errs []error
	for _, r := range s.Results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}

// Expand resolves job inputs to a sorted, de-duplicated file list. Files
// named directly are taken regardless of extension; directory walks only pick
// up *.glb and skip outputs of an earlier suffixed run.
func Expand(job Job) ([]Input, error) {
	suffix := job.suffix()
	seen := make(map[string]struct{})
	var out []Input
	add := func(in Input) {
		abs, err := filepath.Abs(in.Path)
		if err != nil {
			abs = in.Path
		}
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		out = append(out, in)
	}

	for _, arg := range job.Inputs {
		st, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !st.IsDir() {
			add(Input{Path: arg})
			continue
		}
		var found []Input
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if path != arg && !job.Recursive {
					return fs.SkipDir
				}
				return nil
			}
			if !strings.EqualFold(filepath.Ext(path), ".glb") {
				return nil
			}
			if job.OutDir == "" && !job.InPlace && strings.HasSuffix(stem(path), suffix) {
				return nil
			}
			found = append(found, Input{Path: path, Root: arg})
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })
		for _, in := range found {
			add(in)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoInputs
	}
	return out, nil
}

// OutputPath derives where in is written.
func OutputPath(in Input, job Job) (string, error) {
	var out string
	switch {
	case job.InPlace:
		return in.Path, nil
	case job.OutDir != "":
		rel := filepath.Base(in.Path)
		if in.Root != "" {
			r, err := filepath.Rel(in.Root, in.Path)
			if err != nil {
				return "", err
			}
			rel = r
		}
		out = filepath.Join(job.OutDir, rel)
	default:
		dir, base := filepath.Split(in.Path)
		ext := filepath.Ext(base)
		out = filepath.Join(dir, strings.TrimSuffix(base, ext)+job.suffix()+ext)
	}
	if samePath(in.Path, out) {
		return "", fmt.Errorf("%w: %s", ErrWouldOverwrite, in.Path)
	}
	return out, nil
}

// Run processes every input of job. A failing file is recorded in the summary
// and does not stop the others. Cancelling ctx stops new files from being
// started; files already running finish.
func Run(ctx context.Context, job Job) (Summary, error) {
	inputs, err := Expand(job)
	if err != nil {
		return Summary{}, err
	}
	log := logger.FromContext(ctx)
	outputs, planErrs := planOutputs(inputs, job)
	fileCtx := context.WithoutCancel(ctx)

	workers := job.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, len(inputs))

	results := make([]FileResult, len(inputs))
	started := make([]bool, len(inputs))
	next := make(chan int)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				if planErrs[i] != nil {
					results[i] = FileResult{Input: inputs[i].Path, Err: planErrs[i]}
				} else {
					results[i] = process(fileCtx, inputs[i], outputs[i], job)
				}
				if err := results[i].Err; err != nil {
					log.Error("optimize failed", "input", inputs[i].Path, "err", err)
				}
			}
		}()
	}

feed:
	for i := range inputs {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break feed
		case next <- i:
			started[i] = true
		}
	}
	close(next)
	wg.Wait()

	var sum Summary
	for i, r := range results {
		if !started[i] {
			sum.Skipped++
			continue
		}
		sum.Results = append(sum.Results, r)
		if r.Err != nil {
			sum.Failed++
			continue
		}
		sum.Processed++
		sum.InputBytes += r.Report.InputBytes
		sum.OutputBytes += r.Report.OutputBytes
	}
	log.Info("batch complete",
		"processed", sum.Processed,
		"failed", sum.Failed,
		"skipped", sum.Skipped,
		"bytes_in", sum.InputBytes,
		"bytes_out", sum.OutputBytes,
	)
	return sum, ctx.Err()
}

// planOutputs derives every output path up front so that two inputs mapping
// to the same output fail instead of overwriting each other.
func planOutputs(inputs []Input, job Job) ([]string, []error) {
	outputs := make([]string, len(inputs))
	errs := make([]error, len(inputs))
	claimed := make(map[string]string, len(inputs))
	for i, in := range inputs {
		out, err := OutputPath(in, job)
		if err != nil {
			errs[i] = err
			continue
		}
		key := out
		if abs, err := filepath.Abs(out); err == nil {
			key = abs
		}
		if prev, ok := claimed[key]; ok {
			errs[i] = fmt.Errorf("%w: %s and %s both write %s", ErrOutputCollision, prev, in.Path, out)
			continue
		}
		claimed[key] = in.Path
		outputs[i] = out
	}
	return outputs, errs
}

func process(ctx context.Context, in Input, out string, job Job) FileResult {
	res := FileResult{Input: in.Path, Output: out}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		res.Err = err
		return res
	}
	res.Report, res.Err = optimize.File(ctx, in.Path, out, job.Options)
	return res
}

func (j Job) suffix() string {
	if j.Suffix == "" {
		return DefaultSuffix
	}
	return j.Suffix
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func samePath(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	if err1 != nil || err2 != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return aa == bb
}
