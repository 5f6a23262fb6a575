//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Convert builds pdf2md and converts the PDFs in dir.
// Usage: mage convert ./scans
func Convert(dir string) error {
	mg.Deps(Build)
	return sh.RunV("./bin/pdf2md", dir)
}

// History builds pdf2md and prints the run history.
func History() error {
	mg.Deps(Build)
	return sh.RunV("./bin/pdf2md", "history")
}
