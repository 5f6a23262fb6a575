// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/pdiddy/pdf2md/internal/executor"
	"github.com/pdiddy/pdf2md/internal/isolate"
	"github.com/pdiddy/pdf2md/internal/ledger"
	"github.com/pdiddy/pdf2md/internal/logging"
	"github.com/pdiddy/pdf2md/internal/quota"
	"github.com/pdiddy/pdf2md/internal/vision"
	"github.com/pdiddy/pdf2md/pkg/types"
)

// pipeline holds the shared pieces of a run: one limiter for the whole
// process, the supervised model client and the executor built on them.
type pipeline struct {
	limiter *quota.Limiter
	exec    *executor.Executor
	ledger  *ledger.Store // nil when recording is disabled

	// backend is only opened in the parent for inline isolation.
	backend vision.Backend
}

func newPipeline(ctx context.Context, cfg types.Config) (*pipeline, error) {
	p := &pipeline{}

	limiter := quota.New(cfg.Quota.DailyLimit,
		quota.WithPrompter(&quota.TerminalPrompter{In: os.Stdin, Out: os.Stderr}),
		quota.WithLogger(logging.NewLogger("quota")),
	)
	p.limiter = limiter

	if cfg.Pages.Isolation == types.IsolationInline {
		b, err := vision.NewBackend(ctx, cfg.Vision)
		if err != nil {
			return nil, err
		}
		p.backend = b
	}

	worker, err := workerCommand(cfg.Vision)
	if err != nil {
		p.Close()
		return nil, err
	}
	var client vision.Client
	if p.backend != nil {
		client = p.backend
	}
	sup, err := isolate.New(cfg.Pages.Isolation, client, worker, cfg.Pages.Timeout, logging.NewLogger("isolate"))
	if err != nil {
		p.Close()
		return nil, err
	}

	p.exec = executor.New(limiter, sup, executor.Config{
		Model:       cfg.Vision.Model,
		Prompt:      vision.ComposePrompt(cfg.Prompt.Instruction, cfg.Prompt.Language),
		Interactive: cfg.Quota.Interactive,
		MaxRetries:  cfg.Retry.MaxRetries,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxBackoff:  cfg.Retry.MaxBackoff,
	}, executor.WithLogger(logging.NewLogger("executor")))

	if cfg.LedgerPath != "" {
		store, err := ledger.Open(cfg.LedgerPath)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.ledger = store
	}
	return p, nil
}

// workerCommand re-executes this binary as a worker that reads the same
// configuration.
func workerCommand(v types.VisionConfig) (isolate.WorkerCommand, error) {
	bin, err := os.Executable()
	if err != nil {
		return isolate.WorkerCommand{}, fmt.Errorf("locating executable for worker: %w", err)
	}
	args := []string{"worker",
		"--log-level", viper.GetString("log.level"),
		"--log-format", viper.GetString("log.format"),
	}
	if cfgFile := viper.ConfigFileUsed(); cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	return isolate.WorkerCommand{Bin: bin, Args: args, Env: workerEnv(v)}, nil
}

func (p *pipeline) Close() {
	if p.backend != nil {
		p.backend.Close()
	}
	if p.ledger != nil {
		p.ledger.Close()
	}
}
