// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pdf2md/pkg/types"
)

// Recorder stores the outcome of each processed PDF.
type Recorder interface {
	Record(ctx context.Context, rec types.DocumentRecord) error
}

// ConverterOptions configures a Converter.
type ConverterOptions struct {
	// Model is reported in frontmatter and records.
	Model string

	Frontmatter bool

	// Recorder is optional.
	Recorder Recorder
}

// Converter processes a folder of PDFs.
type Converter struct {
	orch   *Orchestrator
	opts   ConverterOptions
	now    func() time.Time
	logger zerolog.Logger
}

// NewConverter creates a Converter.
func NewConverter(orch *Orchestrator, opts ConverterOptions, logger zerolog.Logger) *Converter {
	return &Converter{orch: orch, opts: opts, now: time.Now, logger: logger}
}

// ListPDFs returns the PDF files directly inside dir, sorted by name.
func ListPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var pdfs []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		pdfs = append(pdfs, filepath.Join(dir, e.Name()))
	}
	return pdfs, nil
}

// MarkdownPath returns the output path for pdfPath: the same name with a
// .md extension, in the same directory.
func MarkdownPath(pdfPath string) string {
	return strings.TrimSuffix(pdfPath, filepath.Ext(pdfPath)) + ".md"
}

// ConvertFolder converts every PDF in dir that has no Markdown file yet,
// printing per-file status to w and returning a summary. It stops at the
// first cancellation. Only a failure to list dir is returned as an error.
func (c *Converter) ConvertFolder(ctx context.Context, dir string, w io.Writer) (types.FolderSummary, error) {
	var summary types.FolderSummary

	pdfs, err := ListPDFs(dir)
	if err != nil {
		return summary, err
	}
	c.logger.Info().Str("dir", dir).Int("pdfs", len(pdfs)).Msg("folder scan")

	for _, p := range pdfs {
		rec := c.ConvertPDF(ctx, p, w)
		switch rec.Status {
		case types.StatusConverted:
			summary.Converted++
		case types.StatusPartial:
			summary.Partial++
		case types.StatusSkipped:
			summary.Skipped++
		case types.StatusFailed:
			summary.Failed++
		case types.StatusCancelled:
			summary.Cancelled = true
		}
		if summary.Cancelled {
			break
		}
	}

	fmt.Fprintf(w, "\nFolder summary: %d converted, %d partial, %d skipped, %d failed (total: %d)\n",
		summary.Converted, summary.Partial, summary.Skipped, summary.Failed, summary.Total())
	if summary.Cancelled {
		fmt.Fprintln(w, "Cancelled by user.")
	}
	return summary, nil
}

// ConvertPDF converts one PDF to its sibling Markdown file unless that file
// already exists. A document with no text on any page is a failure and
// writes nothing, so a later run retries it.
func (c *Converter) ConvertPDF(ctx context.Context, pdfPath string, w io.Writer) types.DocumentRecord {
	name := filepath.Base(pdfPath)
	mdPath := MarkdownPath(pdfPath)
	start := c.now()
	rec := types.DocumentRecord{SourcePDF: pdfPath, Model: c.opts.Model}

	if _, err := os.Stat(mdPath); err == nil {
		fmt.Fprintf(w, "skipped: %s (already exists)\n", name)
		rec.Status = types.StatusSkipped
		rec.OutputPath = mdPath
		return rec
	}

	defer func() {
		rec.Duration = c.now().Sub(start)
		rec.FinishedAt = c.now().UTC()
		c.record(ctx, rec)
	}()

	doc, err := c.orch.ConvertDocument(ctx, pdfPath)
	if errors.Is(err, ErrCancelled) {
		fmt.Fprintf(w, "cancelled: %s\n", name)
		rec.Status = types.StatusCancelled
		return rec
	}
	if err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", name, err)
		rec.Status = types.StatusFailed
		rec.Detail = err.Error()
		return rec
	}

	rec.Pages = len(doc.Pages)
	rec.SkippedPages = doc.Skipped()
	if !doc.HasText() {
		fmt.Fprintf(w, "failed:  %s (no text extracted from %d pages)\n", name, rec.Pages)
		rec.Status = types.StatusFailed
		rec.Detail = "no text extracted"
		return rec
	}

	content := doc.Markdown
	if c.opts.Frontmatter {
		content, err = c.addFrontmatter(rec, content)
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", name, err)
			rec.Status = types.StatusFailed
			rec.Detail = err.Error()
			return rec
		}
	}

	if err := writeAtomic(mdPath, []byte(content)); err != nil {
		c.logger.Error().Err(err).Str("path", mdPath).Msg("write failed")
		fmt.Fprintf(w, "failed:  %s (%v)\n", name, err)
		rec.Status = types.StatusFailed
		rec.Detail = err.Error()
		return rec
	}
	rec.OutputPath = mdPath

	if rec.SkippedPages > 0 {
		fmt.Fprintf(w, "partial:   %s (%d of %d pages skipped)\n", name, rec.SkippedPages, rec.Pages)
		rec.Status = types.StatusPartial
		return rec
	}
	fmt.Fprintf(w, "converted: %s\n", name)
	rec.Status = types.StatusConverted
	return rec
}

func (c *Converter) record(ctx context.Context, rec types.DocumentRecord) {
	if c.opts.Recorder == nil {
		return
	}
	// The run context may already be cancelled; the record still belongs in
	// the history.
	if err := c.opts.Recorder.Record(context.WithoutCancel(ctx), rec); err != nil {
		c.logger.Warn().Err(err).Str("pdf", rec.SourcePDF).Msg("recording history failed")
	}
}

type frontmatter struct {
	SourcePDF    string `yaml:"source_pdf"`
	Pages        int    `yaml:"pages"`
	SkippedPages int    `yaml:"skipped_pages"`
	Model        string `yaml:"model,omitempty"`
	ConvertedAt  string `yaml:"converted_at"`
}

// addFrontmatter prepends YAML frontmatter to the converted Markdown content.
func (c *Converter) addFrontmatter(rec types.DocumentRecord, body string) (string, error) {
	fm, err := yaml.Marshal(frontmatter{
		SourcePDF:    filepath.Base(rec.SourcePDF),
		Pages:        rec.Pages,
		SkippedPages: rec.SkippedPages,
		Model:        rec.Model,
		ConvertedAt:  c.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("encoding frontmatter: %w", err)
	}
	var b strings.Builder
	b.WriteString("---\n")
	b.Write(fm)
	b.WriteString("---\n\n")
	b.WriteString(body)
	return b.String(), nil
}

// writeAtomic writes data to a temporary file next to path and renames it
// into place, so an interrupted run never leaves a truncated file.
func writeAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("setting mode on %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}
