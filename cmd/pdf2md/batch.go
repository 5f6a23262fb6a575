// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pdf2md/internal/batch"
	"github.com/pdiddy/pdf2md/internal/logging"
)

var batchCmd = &cobra.Command{
	Use:   "batch <folder>",
	Short: "Transcribe a folder of page images concurrently",
	Long: `Batch sends every PNG image in a folder to the vision model using a small
worker pool and writes a YAML manifest mapping each file to its text. Files
that fail are listed with an error marker. Cancelling stops scheduling new
files; results already received are still written.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	f := batchCmd.Flags()
	f.Int("workers", 0, "number of concurrent requests")
	f.Bool("recursive", false, "include images in subdirectories")
	f.Bool("progress", true, "show a progress bar on stderr")
	f.String("out", "", "write the manifest to this file instead of stdout")

	mustBind("batch.workers", f.Lookup("workers"))
	mustBind("batch.recursive", f.Lookup("recursive"))
	mustBind("batch.progress", f.Lookup("progress"))

	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	files, err := batch.Collect(args[0], cfg.Batch.Recursive)
	if err != nil {
		return err
	}
	logger := logging.NewLogger("batch")
	if len(files) == 0 {
		logger.Warn().Str("dir", args[0]).Msg("no PNG images found")
		return nil
	}

	ctx := cmd.Context()
	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	logger.Info().
		Int("files", len(files)).
		Int("workers", cfg.Batch.Workers).
		Int("daily_limit", p.limiter.Limit()).
		Msg("starting batch")

	opts := []batch.Option{batch.WithLogger(logger)}
	if cfg.Batch.Progress {
		opts = append(opts, batch.WithProgress(os.Stderr))
	}
	res := batch.New(p.exec, cfg.Batch.Workers, opts...).Run(ctx, files)

	var out io.Writer = cmd.OutOrStdout()
	if path, _ := cmd.Flags().GetString("out"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating manifest: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := batch.WriteManifest(out, res); err != nil {
		return err
	}

	logger.Info().
		Int("completed", len(res.Texts)).
		Int("failed", res.Failed).
		Bool("cancelled", res.Cancelled).
		Msg("batch finished")
	return nil
}
