// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package batch transcribes a set of independent image files concurrently
// with a small bounded worker pool. Results map each file path to its text
// or to an error marker; a cancelled file stops further scheduling.
package batch

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"go.yaml.in/yaml/v3"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/pdf2md/internal/executor"
	"github.com/pdiddy/pdf2md/internal/vision"
	"github.com/pdiddy/pdf2md/pkg/types"
)

// DefaultWorkers keeps concurrency low so a small daily quota is not spent
// in a burst.
const DefaultWorkers = 2

// Submitter runs one unit through the quota and retry policy.
type Submitter interface {
	Execute(ctx context.Context, u executor.Unit) types.UnitResult
}

// Result holds the texts gathered by a run.
type Result struct {
	// Texts maps each file that ran to its text, error marker or
	// cancellation marker. Files never started have no entry.
	Texts map[string]string

	// Failed counts entries in Texts that hold error markers. Cancelled
	// files are not counted.
	Failed int

	// Cancelled is set when a file was cancelled and scheduling stopped.
	Cancelled bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithProgress renders a progress bar to w.
func WithProgress(w io.Writer) Option {
	return func(c *Coordinator) { c.progress = w }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// Coordinator runs files through a Submitter with bounded concurrency.
type Coordinator struct {
	exec     Submitter
	workers  int
	progress io.Writer
	logger   zerolog.Logger
}

// New creates a Coordinator. A non-positive workers selects DefaultWorkers.
func New(exec Submitter, workers int, opts ...Option) *Coordinator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	c := &Coordinator{exec: exec, workers: workers, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run transcribes files. Results are recorded as they complete, in no
// particular order. After a cancellation no new file is started; the
// cancelled file keeps its marker and files already in flight finish.
func (c *Coordinator) Run(ctx context.Context, files []string) Result {
	var (
		mu      sync.Mutex
		res     = Result{Texts: make(map[string]string, len(files))}
		stopped atomic.Bool
	)

	var bar *progressbar.ProgressBar
	if c.progress != nil {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetWriter(c.progress),
			progressbar.OptionSetDescription("transcribing"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("files"),
			progressbar.OptionOnCompletion(func() { fmt.Fprint(c.progress, "\n") }),
			progressbar.OptionSetRenderBlankState(true),
		)
	}

	var g errgroup.Group
	g.SetLimit(c.workers)

	for _, path := range files {
		if stopped.Load() || ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if stopped.Load() {
				return nil
			}
			r := c.transcribe(ctx, path)

			mu.Lock()
			res.Texts[path] = r.Marker()
			if !r.OK() && r.Outcome != types.OutcomeCancelled {
				res.Failed++
			}
			mu.Unlock()

			if r.Outcome == types.OutcomeCancelled {
				stopped.Store(true)
				c.logger.Info().Str("file", path).Msg("cancelled, no further files will be scheduled")
				return nil
			}

			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	if bar != nil && !stopped.Load() {
		_ = bar.Finish()
	}
	res.Cancelled = stopped.Load() || ctx.Err() != nil
	return res
}

func (c *Coordinator) transcribe(ctx context.Context, path string) types.UnitResult {
	data, err := os.ReadFile(path)
	if err != nil {
		c.logger.Warn().Err(err).Str("file", path).Msg("read failed")
		return types.UnitResult{Label: path, Outcome: types.OutcomeFailed, Err: err}
	}
	return c.exec.Execute(ctx, executor.Unit{
		Label:   path,
		Payload: vision.Payload{Data: data, MIMEType: mimeType(path)},
	})
}

func mimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return vision.MIMEPNG
	}
}

// Collect returns the PNG files in dir, descending into subdirectories when
// recursive is set. Paths are sorted.
func Collect(dir string, recursive bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".png") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collecting images in %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// manifestEntry is one file in the YAML manifest.
type manifestEntry struct {
	File string `yaml:"file"`
	Text string `yaml:"text"`
}

// WriteManifest writes the results as a YAML list sorted by path.
func WriteManifest(w io.Writer, res Result) error {
	paths := make([]string, 0, len(res.Texts))
	for p := range res.Texts {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	entries := make([]manifestEntry, len(paths))
	for i, p := range paths {
		entries[i] = manifestEntry{File: p, Text: res.Texts[p]}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	return enc.Close()
}
