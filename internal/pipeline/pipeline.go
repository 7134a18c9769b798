// Package pipeline orchestrates one upload through validation, scratch-file
// materialization, extraction, and anonymization.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/resumia/cv-extractor/internal/domain"
	"github.com/resumia/cv-extractor/internal/observability"
	"github.com/resumia/cv-extractor/internal/scratch"
	"github.com/resumia/cv-extractor/internal/stage"
)

// Limits bounds what uploads the pipeline accepts.
type Limits struct {
	MaxSizeBytes int64
	AcceptedMime string
}

// Pipeline sequences the stages of one request and guarantees cleanup of the
// scratch resource on every exit path.
type Pipeline struct {
	scratch    *scratch.Dir
	extractor  *stage.Extractor
	anonymizer *stage.Anonymizer
	limits     Limits
	logger     *observability.Logger
}

// New creates a pipeline.
func New(dir *scratch.Dir, extractor *stage.Extractor, anonymizer *stage.Anonymizer, limits Limits, logger *observability.Logger) *Pipeline {
	return &Pipeline{
		scratch:    dir,
		extractor:  extractor,
		anonymizer: anonymizer,
		limits:     limits,
		logger:     logger.WithComponent("pipeline"),
	}
}

// Process runs the full state machine over one upload:
//
//	Received -> Validated -> TempWritten -> Extracted -> Finalized -> Responded
//
// Validation failure rejects before any filesystem write. Extraction failure
// is fatal. Anonymization failure falls back to the raw text and is never
// fatal. The scratch resource is acquired exactly once and released exactly
// once, on every path out of this function.
func (p *Pipeline) Process(ctx context.Context, file domain.UploadedFile) (*domain.PipelineResult, error) {
	log := p.logger.WithContext(ctx)
	start := time.Now()

	if err := p.validate(file); err != nil {
		p.emit(log, domain.EventRejected, file, err)
		return nil, err
	}
	p.emit(log, domain.EventValidated, file, nil)

	res, err := p.scratch.Acquire(file.Content, file.Name)
	if err != nil {
		p.emit(log, domain.EventRejected, file, err)
		return nil, err
	}
	// Release exactly once no matter which branch below exits, including a
	// panic unwinding through this frame.
	defer p.scratch.Release(res)
	p.emit(log, domain.EventTempWritten, file, nil)

	rawText, err := p.extractor.Extract(ctx, res.Path)
	if err != nil {
		p.emit(log, domain.EventRejected, file, err)
		return nil, err
	}
	p.emit(log, domain.EventExtracted, file, nil)

	anon := p.anonymizer.Anonymize(ctx, rawText)
	if anon.FellBack {
		p.emit(log, domain.EventFellBack, file, anon.Cause)
	} else {
		p.emit(log, domain.EventAnonymized, file, nil)
	}

	result := &domain.PipelineResult{
		RawText:       rawText,
		ProcessedText: anon.Text,
		Filename:      file.Name,
		SizeBytes:     file.SizeBytes,
		Anonymized:    !anon.FellBack,
	}

	log.Info().
		Str("filename", file.Name).
		Int64("size", file.SizeBytes).
		Bool("anonymized", result.Anonymized).
		Dur("duration", time.Since(start)).
		Msg("Request processed")
	p.emit(log, domain.EventResponded, file, nil)

	return result, nil
}

// validate checks the declared type and size against the configured limits.
// No scratch resource exists yet when validation rejects.
func (p *Pipeline) validate(file domain.UploadedFile) error {
	declared := strings.TrimSpace(strings.ToLower(file.DeclaredMimeType))
	// Strip any media-type parameters, e.g. "application/pdf; charset=binary".
	if i := strings.Index(declared, ";"); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}

	if declared != p.limits.AcceptedMime {
		return domain.ValidationError(
			fmt.Sprintf("unsupported file type %q, only %s is accepted", file.DeclaredMimeType, p.limits.AcceptedMime), nil)
	}

	if file.SizeBytes > p.limits.MaxSizeBytes {
		return domain.ValidationError(
			fmt.Sprintf("file exceeds the maximum size of %d bytes", p.limits.MaxSizeBytes), nil)
	}

	return nil
}

// emit logs a lifecycle event at the defined transition points, keeping
// observability out of the control flow above.
func (p *Pipeline) emit(log *observability.Logger, event domain.EventType, file domain.UploadedFile, err error) {
	evt := log.Debug()
	if err != nil {
		evt = log.Warn().Err(err)
	}
	evt.Str("event", string(event)).
		Str("filename", file.Name).
		Int64("size", file.SizeBytes).
		Msg("Pipeline event")
}
