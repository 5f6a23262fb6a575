// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/pdiddy/pdf2md/internal/batch"
	"github.com/pdiddy/pdf2md/internal/executor"
	"github.com/pdiddy/pdf2md/internal/isolate"
	"github.com/pdiddy/pdf2md/internal/quota"
	"github.com/pdiddy/pdf2md/internal/render"
	"github.com/pdiddy/pdf2md/internal/secrets"
	"github.com/pdiddy/pdf2md/internal/vision"
	"github.com/pdiddy/pdf2md/pkg/types"
)

const (
	defaultModel    = "gemini-1.5-pro"
	defaultLocation = "us-central1"

	// maxRetriesLimit is the largest accepted retry.max_retries.
	maxRetriesLimit = 100
)

// setDefaults registers every configuration default in one place.
func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")

	viper.SetDefault("vision.backend", string(types.BackendVertex))
	viper.SetDefault("vision.model", defaultModel)
	viper.SetDefault("vision.location", defaultLocation)

	viper.SetDefault("quota.daily_limit", quota.DefaultDailyLimit)
	viper.SetDefault("quota.interactive", true)

	viper.SetDefault("retry.max_retries", executor.DefaultMaxRetries)
	viper.SetDefault("retry.base_delay", executor.DefaultBaseDelay)
	viper.SetDefault("retry.max_backoff", executor.DefaultMaxBackoff)

	viper.SetDefault("pages.mode", string(types.ModeDocument))
	viper.SetDefault("pages.isolation", string(types.IsolationProcess))
	viper.SetDefault("pages.timeout", isolate.DefaultTimeout)
	viper.SetDefault("pages.scale", render.DefaultScale)
	viper.SetDefault("pages.profile", string(types.ProfileNone))

	viper.SetDefault("prompt.instruction", vision.DefaultInstruction)
	viper.SetDefault("prompt.language", vision.DefaultLanguage)

	viper.SetDefault("batch.workers", batch.DefaultWorkers)
	viper.SetDefault("batch.progress", true)

	viper.SetDefault("ledger_path", defaultLedgerPath())
}

// defaultLedgerPath places the history under the user config directory.
// An empty result disables recording.
func defaultLedgerPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "pdf2md", "history.db")
}

// loadConfig builds the run configuration from viper, filling API
// credentials from .secrets/ when the configuration leaves them empty.
func loadConfig() (types.Config, error) {
	cfg := types.Config{
		Vision: types.VisionConfig{
			Backend:         types.VisionBackend(viper.GetString("vision.backend")),
			Model:           viper.GetString("vision.model"),
			Project:         viper.GetString("vision.project"),
			Location:        viper.GetString("vision.location"),
			CredentialsFile: secretDefault(secrets.KeyGoogleCredentials, viper.GetString("vision.credentials_file")),
			Endpoint:        viper.GetString("vision.endpoint"),
			APIKey:          secretDefault(secrets.KeyOpenAI, viper.GetString("vision.api_key")),
		},
		Quota: types.QuotaConfig{
			DailyLimit:  viper.GetInt("quota.daily_limit"),
			Interactive: viper.GetBool("quota.interactive"),
		},
		Retry: types.RetryConfig{
			MaxRetries: viper.GetInt("retry.max_retries"),
			BaseDelay:  viper.GetDuration("retry.base_delay"),
			MaxBackoff: viper.GetDuration("retry.max_backoff"),
		},
		Pages: types.PagesConfig{
			Mode:        types.PageMode(viper.GetString("pages.mode")),
			Isolation:   types.Isolation(viper.GetString("pages.isolation")),
			Timeout:     viper.GetDuration("pages.timeout"),
			Scale:       viper.GetFloat64("pages.scale"),
			Profile:     types.Profile(viper.GetString("pages.profile")),
			Placeholder: viper.GetString("pages.placeholder"),
		},
		Prompt: types.PromptConfig{
			Instruction: viper.GetString("prompt.instruction"),
			Language:    viper.GetString("prompt.language"),
		},
		Batch: types.BatchConfig{
			Workers:   viper.GetInt("batch.workers"),
			Recursive: viper.GetBool("batch.recursive"),
			Progress:  viper.GetBool("batch.progress"),
		},
		Output: types.OutputConfig{
			Frontmatter: viper.GetBool("output.frontmatter"),
		},
		LedgerPath: viper.GetString("ledger_path"),
	}
	return cfg, validate(cfg)
}

func validate(cfg types.Config) error {
	if cfg.Vision.Model == "" {
		return fmt.Errorf("vision.model is required")
	}
	switch cfg.Pages.Mode {
	case types.ModeDocument, types.ModeImage, types.ModeSplit:
	default:
		return fmt.Errorf("invalid pages.mode %q (want document, image or split)", cfg.Pages.Mode)
	}
	switch cfg.Pages.Isolation {
	case types.IsolationProcess, types.IsolationInline:
	default:
		return fmt.Errorf("invalid pages.isolation %q (want process or inline)", cfg.Pages.Isolation)
	}
	switch cfg.Pages.Profile {
	case types.ProfileNone, types.ProfileLight, types.ProfileAggressive:
	default:
		return fmt.Errorf("invalid pages.profile %q (want none, light or aggressive)", cfg.Pages.Profile)
	}
	if cfg.Retry.MaxRetries < 0 || cfg.Retry.MaxRetries > maxRetriesLimit {
		return fmt.Errorf("retry.max_retries must be between 0 and %d", maxRetriesLimit)
	}
	if cfg.Retry.MaxBackoff < 0 {
		return fmt.Errorf("retry.max_backoff must not be negative")
	}
	return nil
}

// workerEnv passes the resolved backend settings to worker processes.
// Secrets are not passed; the worker loads them from .secrets/ itself.
func workerEnv(v types.VisionConfig) []string {
	env := []string{"PDF2MD_VISION_BACKEND=" + string(v.Backend)}
	add := func(key, val string) {
		if val != "" {
			env = append(env, key+"="+val)
		}
	}
	add("PDF2MD_VISION_PROJECT", v.Project)
	add("PDF2MD_VISION_LOCATION", v.Location)
	add("PDF2MD_VISION_CREDENTIALS_FILE", v.CredentialsFile)
	add("PDF2MD_VISION_ENDPOINT", v.Endpoint)
	return env
}
