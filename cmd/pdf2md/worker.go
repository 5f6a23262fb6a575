// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pdf2md/internal/isolate"
	"github.com/pdiddy/pdf2md/internal/logging"
	"github.com/pdiddy/pdf2md/internal/vision"
)

// workerCmd serves a single model call for a parent pdf2md process: one
// request on stdin, one response on stdout. The parent kills it at the call
// deadline.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Serve one vision request over stdin/stdout",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		backend, err := vision.NewBackend(ctx, cfg.Vision)
		if err != nil {
			// Report through the protocol so the parent sees the cause.
			_ = json.NewEncoder(os.Stdout).Encode(isolate.NewResponse("", err))
			return err
		}
		defer backend.Close()

		logger := logging.NewLogger("worker")
		logger.Debug().
			Str("backend", string(cfg.Vision.Backend)).
			Int("pid", os.Getpid()).
			Msg("serving request")
		return isolate.Serve(ctx, backend, os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
