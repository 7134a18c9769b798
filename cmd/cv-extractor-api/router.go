// Package main provides the API router setup.
package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/resumia/cv-extractor/cmd/cv-extractor-api/handlers"
	"github.com/resumia/cv-extractor/cmd/cv-extractor-api/middleware"
	"github.com/resumia/cv-extractor/internal/config"
	"github.com/resumia/cv-extractor/internal/invoker"
	"github.com/resumia/cv-extractor/internal/observability"
	"github.com/resumia/cv-extractor/internal/pipeline"
	"github.com/resumia/cv-extractor/internal/scratch"
	"github.com/resumia/cv-extractor/internal/stage"
)

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, cfg *config.Config) (http.Handler, error) {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(chimiddleware.Timeout(cfg.Server.WriteTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"cv-extractor"}`))
	})

	p, err := buildPipeline(logger, cfg)
	if err != nil {
		return nil, err
	}

	extractionHandler := handlers.NewExtractionHandler(logger, p, cfg.Upload.MaxSizeBytes)

	r.Post("/extract-text", extractionHandler.ExtractText)

	return r, nil
}

// buildPipeline wires the scratch directory, worker runner, and stages.
func buildPipeline(logger *observability.Logger, cfg *config.Config) (*pipeline.Pipeline, error) {
	dir, err := scratch.NewDir(cfg.Scratch.Dir, logger)
	if err != nil {
		return nil, err
	}

	runner := invoker.NewExecRunner(cfg.Workers.Timeout)

	extractor := stage.NewExtractor(runner,
		cfg.Workers.Extraction.Command, cfg.Workers.Extraction.Args, logger)
	anonymizer := stage.NewAnonymizer(runner,
		cfg.Workers.Anonymization.Command, cfg.Workers.Anonymization.Args, logger)

	limits := pipeline.Limits{
		MaxSizeBytes: cfg.Upload.MaxSizeBytes,
		AcceptedMime: cfg.Upload.AcceptedMime,
	}

	return pipeline.New(dir, extractor, anonymizer, limits, logger), nil
}
