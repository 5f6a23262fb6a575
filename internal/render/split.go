// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/pdiddy/pdf2md/internal/vision"
)

// splitDocument holds one single-page PDF per source page in a temporary
// directory that Close removes.
type splitDocument struct {
	dir   string
	base  string
	pages int
}

func openSplit(path string) (*splitDocument, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pages, err := api.PageCountFile(path)
	if err != nil {
		return nil, fmt.Errorf("counting pages of %s: %w", path, err)
	}

	dir, err := os.MkdirTemp("", "pdf2md-split-*")
	if err != nil {
		return nil, fmt.Errorf("creating split directory: %w", err)
	}
	if err := api.SplitFile(path, dir, 1, conf); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("splitting %s: %w", path, err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &splitDocument{dir: dir, base: base, pages: pages}, nil
}

func (d *splitDocument) NumPages() int { return d.pages }

func (d *splitDocument) Page(i int) (vision.Payload, error) {
	name := filepath.Join(d.dir, fmt.Sprintf("%s_%d.pdf", d.base, i+1))
	data, err := os.ReadFile(name)
	if err != nil {
		return vision.Payload{}, fmt.Errorf("reading page %d: %w", i+1, err)
	}
	return vision.Payload{Data: data, MIMEType: vision.MIMEPDF}, nil
}

func (d *splitDocument) Close() error { return os.RemoveAll(d.dir) }
