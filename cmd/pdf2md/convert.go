// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pdf2md/internal/convert"
	"github.com/pdiddy/pdf2md/internal/logging"
	"github.com/pdiddy/pdf2md/internal/render"
	"github.com/pdiddy/pdf2md/pkg/types"
)

// runConvert converts every PDF in the folder argument. Cancellation by the
// user or a signal is a normal exit.
func runConvert(cmd *cobra.Command, args []string) error {
	dir := args[0]
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	logger := logging.NewLogger("convert")
	logger.Info().
		Int("daily_limit", p.limiter.Limit()).
		Bool("interactive", cfg.Quota.Interactive).
		Str("mode", string(cfg.Pages.Mode)).
		Str("isolation", string(cfg.Pages.Isolation)).
		Str("model", cfg.Vision.Model).
		Msg("starting; long waits are expected once the daily limit is reached")

	orch := convert.NewOrchestrator(p.exec, convert.RenderOpener(render.Options{
		Mode:    cfg.Pages.Mode,
		Scale:   cfg.Pages.Scale,
		Profile: cfg.Pages.Profile,
	}), cfg.Pages.Placeholder, logger)

	opts := convert.ConverterOptions{Model: cfg.Vision.Model, Frontmatter: cfg.Output.Frontmatter}
	if p.ledger != nil {
		opts.Recorder = p.ledger
	}

	summary, err := convert.NewConverter(orch, opts, logger).ConvertFolder(ctx, dir, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	logSummary(summary)
	return nil
}

func logSummary(s types.FolderSummary) {
	logger := logging.NewLogger("convert")
	ev := logger.Info()
	if s.HasFailures() {
		ev = logger.Warn()
	}
	ev.Int("converted", s.Converted).
		Int("partial", s.Partial).
		Int("skipped", s.Skipped).
		Int("failed", s.Failed).
		Bool("cancelled", s.Cancelled).
		Msg("finished")
}
