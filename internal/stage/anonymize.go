package stage

import (
	"context"
	"fmt"

	"github.com/resumia/cv-extractor/internal/domain"
	"github.com/resumia/cv-extractor/internal/invoker"
	"github.com/resumia/cv-extractor/internal/observability"
)

// Result is the tagged outcome of the anonymization stage. When FellBack is
// set, Text holds the original input unchanged and Cause records why; the
// orchestrator can observe the fallback without it ever surfacing as an error
// to the caller.
type Result struct {
	Text     string
	FellBack bool
	Cause    error
}

// Anonymizer redacts personal information from text by invoking the
// anonymization worker. The stage is fail-soft: loss of redaction degrades
// privacy protection but never availability of the extracted content.
type Anonymizer struct {
	runner  invoker.Runner
	command string
	args    []string
	logger  *observability.Logger
}

// NewAnonymizer creates an anonymization stage over the given runner. The
// worker receives the raw text on stdin and must emit the redacted text on
// stdout. Stdin avoids the argument-length and shell-escaping hazards of
// passing whole documents through argv.
func NewAnonymizer(runner invoker.Runner, command string, args []string, logger *observability.Logger) *Anonymizer {
	return &Anonymizer{
		runner:  runner,
		command: command,
		args:    args,
		logger:  logger.WithComponent("anonymize"),
	}
}

// Anonymize runs the anonymization worker over text. On any failure it
// returns the original text unchanged with the fallback tagged; every
// fallback is logged so operators can detect systemic worker failures even
// though individual requests succeed. No retry.
func (a *Anonymizer) Anonymize(ctx context.Context, text string) Result {
	outcome, err := a.runner.Run(ctx, invoker.Invocation{
		Command: a.command,
		Args:    append([]string{}, a.args...),
		Stdin:   []byte(text),
	})
	if err != nil {
		return a.fallback(ctx, text, domain.AnonymizationError("anonymization worker invocation", err))
	}

	if outcome.SpawnErr != nil {
		return a.fallback(ctx, text,
			domain.AnonymizationError("anonymization worker failed to start", outcome.SpawnErr))
	}

	if outcome.ExitCode != 0 {
		a.logger.WithContext(ctx).Debug().
			Str("stderr", outcome.Diagnostic()).
			Msg("Anonymization worker diagnostics")
		return a.fallback(ctx, text, domain.AnonymizationError(
			fmt.Sprintf("anonymization worker exited with code %d", outcome.ExitCode), nil))
	}

	redacted := outcome.Text()
	if redacted == "" && text != "" {
		// A worker that swallows the document entirely is treated as failed.
		return a.fallback(ctx, text,
			domain.AnonymizationError("anonymization worker returned empty output", nil))
	}

	return Result{Text: redacted}
}

func (a *Anonymizer) fallback(ctx context.Context, text string, cause error) Result {
	a.logger.WithContext(ctx).Warn().
		Str("command", a.command).
		Err(cause).
		Msg("Anonymization failed, falling back to raw text")
	return Result{Text: text, FellBack: true, Cause: cause}
}
