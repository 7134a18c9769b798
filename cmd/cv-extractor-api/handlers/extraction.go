// Package handlers provides HTTP handlers for the CV extractor API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/resumia/cv-extractor/internal/domain"
	"github.com/resumia/cv-extractor/internal/observability"
	"github.com/resumia/cv-extractor/internal/pipeline"
)

// ExtractionHandler handles document upload and extraction requests.
type ExtractionHandler struct {
	logger   *observability.Logger
	pipeline *pipeline.Pipeline
	maxSize  int64
}

// NewExtractionHandler creates a new extraction handler. maxSize bounds how
// much of the request body is read before rejecting.
func NewExtractionHandler(logger *observability.Logger, p *pipeline.Pipeline, maxSize int64) *ExtractionHandler {
	return &ExtractionHandler{
		logger:   logger,
		pipeline: p,
		maxSize:  maxSize,
	}
}

// ExtractionResponseDTO is the API response for a successful extraction.
type ExtractionResponseDTO struct {
	Text     string `json:"text"`
	RawText  string `json:"rawText"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// ErrorResponseDTO is the API response for any failure.
type ErrorResponseDTO struct {
	Message string `json:"message"`
}

// ExtractText handles POST /extract-text. The body is multipart/form-data
// with a single "file" field.
func (h *ExtractionHandler) ExtractText(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if reqID := chimiddleware.GetReqID(ctx); reqID != "" {
		ctx = observability.ContextWithRequestID(ctx, reqID)
	}
	log := h.logger.WithContext(ctx)

	// One extra byte past the limit lets oversize bodies be detected without
	// buffering arbitrarily large uploads.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(h.maxSize + multipartOverhead); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			log.Warn().Int64("limit", h.maxSize).Msg("Upload body over size limit")
			h.writeError(w, http.StatusBadRequest,
				fmt.Sprintf("file exceeds the maximum size of %d bytes", h.maxSize))
			return
		}
		log.Warn().Err(err).Msg("Failed to parse multipart form")
		h.writeError(w, http.StatusBadRequest, "request must be multipart/form-data with a file field")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	part, header, err := r.FormFile("file")
	if err != nil {
		log.Warn().Err(err).Msg("Missing file field")
		h.writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer part.Close()

	content, err := io.ReadAll(part)
	if err != nil {
		h.writePipelineError(w, log, domain.InternalError("read uploaded file", err))
		return
	}

	file := domain.UploadedFile{
		Name:             header.Filename,
		DeclaredMimeType: header.Header.Get("Content-Type"),
		SizeBytes:        int64(len(content)),
		Content:          content,
	}

	result, err := h.pipeline.Process(ctx, file)
	if err != nil {
		h.writePipelineError(w, log, err)
		return
	}

	resp := ExtractionResponseDTO{
		Text:     result.ProcessedText,
		RawText:  result.RawText,
		Filename: result.Filename,
		Size:     result.SizeBytes,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// multipartOverhead is slack for multipart boundaries and part headers so a
// file exactly at the limit still parses.
const multipartOverhead = 10 * 1024

// writePipelineError maps a pipeline failure to a status code. Caller-visible
// messages stay generic for everything except validation; worker internals
// live in the logs only.
func (h *ExtractionHandler) writePipelineError(w http.ResponseWriter, log *observability.Logger, err error) {
	var de *domain.DomainError
	if errors.As(err, &de) {
		switch de.Type {
		case domain.ErrorTypeValidation:
			h.writeError(w, http.StatusBadRequest, de.Message)
			return
		case domain.ErrorTypeIO:
			log.Error().Err(err).Msg("Scratch write failed")
			h.writeError(w, http.StatusInternalServerError, "failed to store uploaded file")
			return
		case domain.ErrorTypeExtraction:
			log.Error().Err(err).Msg("Extraction failed")
			h.writeError(w, http.StatusInternalServerError, "failed to extract text from the document")
			return
		case domain.ErrorTypeInternal:
			log.Error().Err(err).Msg("Internal failure")
			h.writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
	}

	log.Error().Err(err).Msg("Unexpected pipeline failure")
	h.writeError(w, http.StatusInternalServerError, "internal server error")
}

func (h *ExtractionHandler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponseDTO{Message: message})
}
