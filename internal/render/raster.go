// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"

	"github.com/pdiddy/pdf2md/internal/vision"
	"github.com/pdiddy/pdf2md/pkg/types"
)

// rasterDocument renders each page to a PNG with MuPDF.
type rasterDocument struct {
	doc     *fitz.Document
	dpi     float64
	profile types.Profile
}

func openRaster(path string, scale float64, profile types.Profile) (*rasterDocument, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &rasterDocument{doc: doc, dpi: 72 * scale, profile: profile}, nil
}

func (d *rasterDocument) NumPages() int { return d.doc.NumPage() }

func (d *rasterDocument) Page(i int) (vision.Payload, error) {
	img, err := d.doc.ImageDPI(i, d.dpi)
	if err != nil {
		return vision.Payload{}, fmt.Errorf("rendering page %d: %w", i+1, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, Preprocess(img, d.profile)); err != nil {
		return vision.Payload{}, fmt.Errorf("encoding page %d: %w", i+1, err)
	}
	return vision.Payload{Data: buf.Bytes(), MIMEType: vision.MIMEPNG}, nil
}

func (d *rasterDocument) Close() error { return d.doc.Close() }
