// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package isolate

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/pdf2md/internal/vision"
	"github.com/pdiddy/pdf2md/pkg/types"
)

// WorkerCommand names the program, arguments and extra environment
// (KEY=VALUE) that start a worker process.
type WorkerCommand struct {
	Bin  string
	Args []string
	Env  []string
}

// New builds a Supervisor for the isolation mode. Process isolation starts
// worker for every call; inline isolation calls client directly.
func New(mode types.Isolation, client vision.Client, worker WorkerCommand, timeout time.Duration, logger zerolog.Logger) (*Supervisor, error) {
	var runner Runner
	switch mode {
	case types.IsolationProcess, "":
		if worker.Bin == "" {
			return nil, fmt.Errorf("process isolation requires a worker command")
		}
		runner = NewProcessRunner(worker)
	case types.IsolationInline:
		if client == nil {
			return nil, fmt.Errorf("inline isolation requires a client")
		}
		runner = &InlineRunner{Client: client}
	default:
		return nil, fmt.Errorf("unknown isolation %q (want process or inline)", mode)
	}
	return NewSupervisor(runner, timeout, logger), nil
}
