// Package invoker runs external worker processes and collects their outcome.
//
// A worker is a black box: it receives input through arguments or stdin and
// reports back through stdout and its exit code. The invoker distinguishes a
// worker that could not be started (spawn failure) from one that started and
// exited non-zero (execution failure); both travel in the Outcome rather than
// the error return, which is reserved for internal faults.
package invoker

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// Invocation describes a single worker call.
type Invocation struct {
	Command string
	Args    []string
	Stdin   []byte
}

// Outcome is the structured result of one invocation.
type Outcome struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	SpawnErr error
	Duration time.Duration
}

// Succeeded reports whether the worker started and exited zero.
func (o Outcome) Succeeded() bool {
	return o.SpawnErr == nil && o.ExitCode == 0
}

// Text returns stdout trimmed of leading and trailing whitespace.
func (o Outcome) Text() string {
	return strings.TrimSpace(string(o.Stdout))
}

// Diagnostic returns a bounded excerpt of stderr for logging. Worker stderr
// is never returned to callers, only logged.
func (o Outcome) Diagnostic() string {
	const maxLen = 2048
	s := strings.TrimSpace(string(o.Stderr))
	if len(s) > maxLen {
		return s[:maxLen] + "...(truncated)"
	}
	return s
}

// Runner executes worker invocations. Stages depend on this interface only,
// so tests can substitute an in-process fake.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Outcome, error)
}

// ExecRunner runs invocations as real subprocesses with a per-invocation
// timeout. On expiry the process is killed and the outcome is reported as an
// execution failure.
type ExecRunner struct {
	Timeout time.Duration
}

// NewExecRunner creates an ExecRunner with the given per-invocation timeout.
func NewExecRunner(timeout time.Duration) *ExecRunner {
	return &ExecRunner{Timeout: timeout}
}

// Run executes the invocation, capturing stdout and stderr fully.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (Outcome, error) {
	if inv.Command == "" {
		return Outcome{}, errors.New("invocation command cannot be empty")
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, inv.Command, inv.Args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if inv.Stdin != nil {
		cmd.Stdin = bytes.NewReader(inv.Stdin)
	}

	start := time.Now()
	err := cmd.Run()
	outcome := Outcome{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			// Started but exited non-zero; a kill on timeout lands here too.
			outcome.ExitCode = exitErr.ExitCode()
		default:
			// Missing binary, permission denied, or any other start failure.
			outcome.SpawnErr = err
			outcome.ExitCode = -1
		}
	}

	return outcome, nil
}
