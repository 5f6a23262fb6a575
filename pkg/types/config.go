// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// VisionBackend identifies the vision-model API used for extraction.
type VisionBackend string

const (
	BackendVertex VisionBackend = "vertex"
	BackendOpenAI VisionBackend = "openai"
)

// VisionConfig holds settings for the vision-model client.
type VisionConfig struct {
	// Backend selects the API: vertex (Gemini on Vertex AI) or openai
	// (any OpenAI-compatible chat completions endpoint, including local models).
	Backend VisionBackend `json:"backend" yaml:"backend"`

	// Model is the model identifier (e.g. "gemini-1.5-pro").
	Model string `json:"model" yaml:"model"`

	// Project and Location address the Vertex AI endpoint.
	Project  string `json:"project,omitempty" yaml:"project,omitempty"`
	Location string `json:"location,omitempty" yaml:"location,omitempty"`

	// CredentialsFile is an optional service account JSON for Vertex AI.
	CredentialsFile string `json:"credentials_file,omitempty" yaml:"credentials_file,omitempty"`

	// Endpoint is the base URL for the openai backend
	// (e.g. "http://localhost:11434/v1").
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// APIKey authenticates against the openai backend.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// QuotaConfig holds the daily request ceiling.
type QuotaConfig struct {
	// DailyLimit is the maximum number of requests in any trailing 24h window (default 25).
	DailyLimit int `json:"daily_limit" yaml:"daily_limit"`

	// Interactive asks for confirmation before waiting for the quota to reset.
	Interactive bool `json:"interactive" yaml:"interactive"`
}

// RetryConfig holds the quota-error retry policy.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// BaseDelay is the exponential backoff base (default 2s).
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay"`

	// MaxBackoff caps one computed backoff wait (default 10m).
	MaxBackoff time.Duration `json:"max_backoff" yaml:"max_backoff"`
}

// PageMode selects how a PDF is turned into units of work.
type PageMode string

const (
	// ModeDocument sends the whole PDF as one unit.
	ModeDocument PageMode = "document"
	// ModeImage rasterizes each page to a PNG.
	ModeImage PageMode = "image"
	// ModeSplit sends each page as a single-page PDF.
	ModeSplit PageMode = "split"
)

// Isolation selects how each model call is supervised.
type Isolation string

const (
	// IsolationProcess runs each call in a killable worker subprocess.
	IsolationProcess Isolation = "process"
	// IsolationInline runs each call in a supervised goroutine.
	IsolationInline Isolation = "inline"
)

// Profile names a preprocessing profile for rasterized pages.
type Profile string

const (
	ProfileNone       Profile = "none"
	ProfileLight      Profile = "light"
	ProfileAggressive Profile = "aggressive"
)

// PagesConfig holds settings for the page orchestrator.
type PagesConfig struct {
	Mode      PageMode      `json:"mode" yaml:"mode"`
	Isolation Isolation     `json:"isolation" yaml:"isolation"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout"`

	// Scale is the rasterization factor relative to 72 DPI (image mode).
	Scale float64 `json:"scale" yaml:"scale"`

	Profile Profile `json:"profile" yaml:"profile"`

	// Placeholder, when non-empty, stands in for pages that produced no text.
	// Empty means skipped pages are omitted.
	Placeholder string `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
}

// PromptConfig holds the extraction instruction sent with every unit.
type PromptConfig struct {
	Instruction string `json:"instruction" yaml:"instruction"`
	Language    string `json:"language" yaml:"language"`
}

// BatchConfig holds settings for image-folder batch mode.
type BatchConfig struct {
	// Workers bounds concurrent requests (default 2).
	Workers   int  `json:"workers" yaml:"workers"`
	Recursive bool `json:"recursive" yaml:"recursive"`
	Progress  bool `json:"progress" yaml:"progress"`
}

// OutputConfig holds settings for written Markdown files.
type OutputConfig struct {
	Frontmatter bool `json:"frontmatter" yaml:"frontmatter"`
}

// Config groups all settings for a run.
type Config struct {
	Vision VisionConfig `json:"vision" yaml:"vision"`
	Quota  QuotaConfig  `json:"quota" yaml:"quota"`
	Retry  RetryConfig  `json:"retry" yaml:"retry"`
	Pages  PagesConfig  `json:"pages" yaml:"pages"`
	Prompt PromptConfig `json:"prompt" yaml:"prompt"`
	Batch  BatchConfig  `json:"batch" yaml:"batch"`
	Output OutputConfig `json:"output" yaml:"output"`

	// LedgerPath is the SQLite run history; empty disables recording.
	LedgerPath string `json:"ledger_path,omitempty" yaml:"ledger_path,omitempty"`
}
