// Package stage implements the two worker-backed pipeline stages: mandatory
// text extraction and best-effort anonymization.
package stage

import (
	"context"
	"fmt"

	"github.com/resumia/cv-extractor/internal/domain"
	"github.com/resumia/cv-extractor/internal/invoker"
	"github.com/resumia/cv-extractor/internal/observability"
)

// Extractor turns a file path into raw text by invoking the extraction
// worker. Failure here is fatal to the request.
type Extractor struct {
	runner  invoker.Runner
	command string
	args    []string
	logger  *observability.Logger
}

// NewExtractor creates an extraction stage over the given runner. The worker
// receives the file path as its final positional argument and must emit the
// extracted text on stdout.
func NewExtractor(runner invoker.Runner, command string, args []string, logger *observability.Logger) *Extractor {
	return &Extractor{
		runner:  runner,
		command: command,
		args:    args,
		logger:  logger.WithComponent("extract"),
	}
}

// Extract runs the extraction worker against path. A single deterministic
// invocation per request, no retry: extraction failure means the file is
// unreadable or the worker environment is broken, and retrying would not
// change the outcome.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	args := append(append([]string{}, e.args...), path)

	outcome, err := e.runner.Run(ctx, invoker.Invocation{
		Command: e.command,
		Args:    args,
	})
	if err != nil {
		return "", domain.ExtractionError("extraction worker invocation", err)
	}

	if outcome.SpawnErr != nil {
		e.logger.WithContext(ctx).Error().
			Str("command", e.command).
			Err(outcome.SpawnErr).
			Msg("Extraction worker failed to start")
		return "", domain.ExtractionError("extraction worker failed to start", outcome.SpawnErr)
	}

	if outcome.ExitCode != 0 {
		e.logger.WithContext(ctx).Error().
			Str("command", e.command).
			Int("exit_code", outcome.ExitCode).
			Str("stderr", outcome.Diagnostic()).
			Msg("Extraction worker exited non-zero")
		return "", domain.ExtractionError(
			fmt.Sprintf("extraction worker exited with code %d", outcome.ExitCode), nil)
	}

	if diag := outcome.Diagnostic(); diag != "" {
		// Workers narrate progress on stderr even on success.
		e.logger.WithContext(ctx).Debug().Str("stderr", diag).Msg("Extraction worker diagnostics")
	}

	return outcome.Text(), nil
}
