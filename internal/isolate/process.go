// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package isolate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/pdiddy/pdf2md/internal/vision"
	"github.com/pdiddy/pdf2md/pkg/types"
)

// waitDelay bounds how long Run waits for the child's pipes after the child
// has been killed.
const waitDelay = 2 * time.Second

// executor abstracts command execution for testing.
type executor interface {
	RunPiped(ctx context.Context, name string, args, env []string, stdin io.Reader, stdout io.Writer) error
}

// osExecutor is the production executor backed by os/exec. The child
// inherits the environment plus env and is killed when ctx is done.
type osExecutor struct{}

func (o *osExecutor) RunPiped(ctx context.Context, name string, args, env []string, stdin io.Reader, stdout io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = os.Stderr
	cmd.WaitDelay = waitDelay
	return cmd.Run()
}

// ProcessRunner executes each request in a fresh worker process: the request
// is written to the worker's stdin and the Response read from its stdout.
// The worker is typically this binary re-executed with a worker subcommand.
type ProcessRunner struct {
	bin  string
	args []string
	env  []string
	exec executor
}

// NewProcessRunner returns a runner that starts the worker described by cmd
// once per call.
func NewProcessRunner(cmd WorkerCommand) *ProcessRunner {
	return &ProcessRunner{bin: cmd.Bin, args: cmd.Args, env: cmd.Env, exec: &osExecutor{}}
}

func (p *ProcessRunner) Name() string { return string(types.IsolationProcess) }

func (p *ProcessRunner) Run(ctx context.Context, req vision.Request) (string, error) {
	in, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encoding worker request: %w", err)
	}

	var out bytes.Buffer
	runErr := p.exec.RunPiped(ctx, p.bin, p.args, p.env, bytes.NewReader(in), &out)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		if runErr != nil {
			return "", fmt.Errorf("worker %s: %w", p.bin, runErr)
		}
		return "", fmt.Errorf("decoding worker response: %w", err)
	}
	return resp.Result()
}
