// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert drives PDF-to-Markdown conversion: the Orchestrator walks
// the pages of one document through the request executor, and the Converter
// processes every PDF in a folder, writing a sibling Markdown file for each.
package convert

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/pdf2md/internal/executor"
	"github.com/pdiddy/pdf2md/internal/render"
	"github.com/pdiddy/pdf2md/pkg/types"
)

// ErrCancelled reports that the user or a signal stopped the conversion.
var ErrCancelled = errors.New("conversion cancelled")

// pageSeparator joins the text of consecutive pages.
const pageSeparator = "\n\n"

// Submitter runs one unit through the quota and retry policy.
// *executor.Executor implements it.
type Submitter interface {
	Execute(ctx context.Context, u executor.Unit) types.UnitResult
}

// Opener opens a PDF as a sequence of page payloads.
type Opener func(path string) (render.Document, error)

// RenderOpener returns an Opener using render.Open with opts.
func RenderOpener(opts render.Options) Opener {
	return func(path string) (render.Document, error) {
		return render.Open(path, opts)
	}
}

// Document is the result of converting one PDF.
type Document struct {
	Markdown string

	// Pages holds one result per source page in order.
	Pages []types.UnitResult
}

// Skipped returns the number of pages that produced no text.
func (d *Document) Skipped() int {
	n := 0
	for _, p := range d.Pages {
		if !p.OK() {
			n++
		}
	}
	return n
}

// HasText reports whether any page produced non-blank text.
func (d *Document) HasText() bool {
	for _, p := range d.Pages {
		if p.OK() && strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}

// Orchestrator converts one PDF page by page.
type Orchestrator struct {
	exec Submitter
	open Opener

	// placeholder stands in for skipped pages when non-empty. "{page}" is
	// replaced by the 1-based page number.
	placeholder string

	logger zerolog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(exec Submitter, open Opener, placeholder string, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{exec: exec, open: open, placeholder: placeholder, logger: logger}
}

// ConvertDocument submits every page of the PDF at path in order. Pages that
// fail, time out or exhaust their retries are logged and left out of the
// Markdown. A cancelled page abandons the whole document with ErrCancelled.
func (o *Orchestrator) ConvertDocument(ctx context.Context, path string) (*Document, error) {
	doc, err := o.open(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	base := filepath.Base(path)
	n := doc.NumPages()
	log := o.logger.With().Str("pdf", base).Int("pages", n).Logger()
	log.Info().Msg("converting")

	out := &Document{Pages: make([]types.UnitResult, 0, n)}
	parts := make([]string, 0, n)
	for i := range n {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", base, ErrCancelled)
		}

		label := base
		if n > 1 {
			label = fmt.Sprintf("%s page %d", base, i+1)
		}

		payload, err := doc.Page(i)
		if err != nil {
			log.Warn().Err(err).Int("page", i+1).Msg("page preparation failed, skipping")
			out.Pages = append(out.Pages, types.UnitResult{Label: label, Outcome: types.OutcomeFailed, Err: err})
			parts = o.appendSkipped(parts, i)
			continue
		}

		res := o.exec.Execute(ctx, executor.Unit{Label: label, Payload: payload})
		out.Pages = append(out.Pages, res)

		switch res.Outcome {
		case types.OutcomeOK:
			parts = append(parts, res.Text)
		case types.OutcomeCancelled:
			log.Info().Int("page", i+1).Msg("cancelled")
			return nil, fmt.Errorf("%s: %w", label, ErrCancelled)
		default:
			log.Warn().Err(res.Err).Int("page", i+1).Str("outcome", string(res.Outcome)).Msg("page skipped")
			parts = o.appendSkipped(parts, i)
		}
	}

	out.Markdown = strings.Join(parts, pageSeparator)
	return out, nil
}

func (o *Orchestrator) appendSkipped(parts []string, page int) []string {
	if o.placeholder == "" {
		return parts
	}
	return append(parts, strings.ReplaceAll(o.placeholder, "{page}", strconv.Itoa(page+1)))
}
