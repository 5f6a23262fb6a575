// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// Outcome is the terminal state of one unit of work (a page, a whole
// document or a batch file).
type Outcome string

const (
	OutcomeOK               Outcome = "ok"
	OutcomeCancelled        Outcome = "cancelled"
	OutcomeRetriesExhausted Outcome = "retries_exhausted"
	OutcomeFailed           Outcome = "failed"
	OutcomeTimeout          Outcome = "timeout"
)

// UnitResult is the text extracted for one unit, or the reason there is none.
type UnitResult struct {
	// Label identifies the unit in logs and markers (file path, optionally
	// with a page suffix).
	Label string `json:"label" yaml:"label"`

	Text    string  `json:"text,omitempty" yaml:"text,omitempty"`
	Outcome Outcome `json:"outcome" yaml:"outcome"`

	// Err carries the last error for non-ok outcomes.
	Err error `json:"-" yaml:"-"`

	// Attempts is the number of model calls made.
	Attempts int `json:"attempts" yaml:"attempts"`
}

// OK reports whether the unit produced text.
func (r UnitResult) OK() bool {
	return r.Outcome == OutcomeOK
}

// Marker renders a one-line text marker for the result. Successful results
// return their text unchanged.
func (r UnitResult) Marker() string {
	switch r.Outcome {
	case OutcomeOK:
		return r.Text
	case OutcomeCancelled:
		return fmt.Sprintf("Cancelled by user: %s", r.Label)
	case OutcomeRetriesExhausted:
		return fmt.Sprintf("Error: retries exhausted for %s", r.Label)
	case OutcomeTimeout:
		return fmt.Sprintf("Error: timed out processing %s", r.Label)
	default:
		if r.Err != nil {
			return fmt.Sprintf("Error: %s: %v", r.Label, r.Err)
		}
		return fmt.Sprintf("Error: %s failed", r.Label)
	}
}

// DocumentStatus indicates the state of a PDF-to-Markdown conversion.
type DocumentStatus string

const (
	StatusConverted DocumentStatus = "converted"
	StatusPartial   DocumentStatus = "partial"
	StatusSkipped   DocumentStatus = "skipped"
	StatusFailed    DocumentStatus = "failed"
	StatusCancelled DocumentStatus = "cancelled"
)

// DocumentRecord describes one processed PDF for the run history.
type DocumentRecord struct {
	SourcePDF    string         `json:"source_pdf" yaml:"source_pdf"`
	OutputPath   string         `json:"output_path,omitempty" yaml:"output_path,omitempty"`
	Status       DocumentStatus `json:"status" yaml:"status"`
	Pages        int            `json:"pages" yaml:"pages"`
	SkippedPages int            `json:"skipped_pages" yaml:"skipped_pages"`
	Model        string         `json:"model" yaml:"model"`
	Detail       string         `json:"detail,omitempty" yaml:"detail,omitempty"`
	Duration     time.Duration  `json:"duration" yaml:"duration"`
	FinishedAt   time.Time      `json:"finished_at" yaml:"finished_at"`
}

// FolderSummary holds the outcome counts of a per-folder run.
type FolderSummary struct {
	Converted int
	Partial   int
	Skipped   int
	Failed    int

	// Cancelled is set when the user stopped the run.
	Cancelled bool
}

// Total returns the number of documents visited.
func (s FolderSummary) Total() int {
	return s.Converted + s.Partial + s.Skipped + s.Failed
}

// HasFailures reports whether any document failed.
func (s FolderSummary) HasFailures() bool {
	return s.Failed > 0
}
