// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package render turns a PDF into the sequence of payloads sent to the
// vision model: the whole file, one rasterized PNG per page, or one
// single-page PDF per page.
package render

import (
	"fmt"
	"os"

	"github.com/pdiddy/pdf2md/internal/vision"
	"github.com/pdiddy/pdf2md/pkg/types"
)

// DefaultScale renders pages at 144 DPI.
const DefaultScale = 2.0

// Document is an opened PDF. Page is called once per index in order and is
// not safe for concurrent use.
type Document interface {
	NumPages() int
	Page(i int) (vision.Payload, error)
	Close() error
}

// Options selects how pages are produced.
type Options struct {
	Mode    types.PageMode
	Scale   float64
	Profile types.Profile
}

// Open prepares path for conversion in the requested mode.
func Open(path string, opts Options) (Document, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	switch opts.Mode {
	case types.ModeDocument, "":
		return &wholeDocument{path: path}, nil
	case types.ModeImage:
		scale := opts.Scale
		if scale <= 0 {
			scale = DefaultScale
		}
		return openRaster(path, scale, opts.Profile)
	case types.ModeSplit:
		return openSplit(path)
	default:
		return nil, fmt.Errorf("unknown page mode %q (want document, image or split)", opts.Mode)
	}
}

// wholeDocument submits the entire PDF as a single unit.
type wholeDocument struct {
	path string
}

func (d *wholeDocument) NumPages() int { return 1 }

func (d *wholeDocument) Page(i int) (vision.Payload, error) {
	if i != 0 {
		return vision.Payload{}, fmt.Errorf("page %d out of range", i)
	}
	data, err := os.ReadFile(d.path)
	if err != nil {
		return vision.Payload{}, fmt.Errorf("reading %s: %w", d.path, err)
	}
	return vision.Payload{Data: data, MIMEType: vision.MIMEPDF}, nil
}

func (d *wholeDocument) Close() error { return nil }
