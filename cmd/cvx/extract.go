package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/resumia/cv-extractor/internal/config"
	"github.com/resumia/cv-extractor/internal/domain"
	"github.com/resumia/cv-extractor/internal/invoker"
	"github.com/resumia/cv-extractor/internal/observability"
	"github.com/resumia/cv-extractor/internal/pipeline"
	"github.com/resumia/cv-extractor/internal/scratch"
	"github.com/resumia/cv-extractor/internal/stage"
)

var showRaw bool

var extractCmd = &cobra.Command{
	Use:   "extract <file.pdf>",
	Short: "Extract and anonymize text from a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

func init() {
	extractCmd.Flags().BoolVar(&showRaw, "raw", false, "print the unredacted text instead of the anonymized one")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	if noColor {
		color.NoColor = true
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logLevel := "warn"
	if verbose {
		logLevel = "debug"
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:       logLevel,
		Format:      "console",
		Output:      os.Stderr,
		ServiceName: "cvx",
	})

	path := args[0]
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read input file: %w", err)
	}

	file := domain.UploadedFile{
		Name:             filepath.Base(path),
		DeclaredMimeType: cfg.Upload.AcceptedMime,
		SizeBytes:        int64(len(content)),
		Content:          content,
	}

	dir, err := scratch.NewDir(cfg.Scratch.Dir, logger)
	if err != nil {
		return err
	}

	runner := invoker.NewExecRunner(cfg.Workers.Timeout)
	p := pipeline.New(dir,
		stage.NewExtractor(runner, cfg.Workers.Extraction.Command, cfg.Workers.Extraction.Args, logger),
		stage.NewAnonymizer(runner, cfg.Workers.Anonymization.Command, cfg.Workers.Anonymization.Args, logger),
		pipeline.Limits{
			MaxSizeBytes: cfg.Upload.MaxSizeBytes,
			AcceptedMime: cfg.Upload.AcceptedMime,
		},
		logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = fmt.Sprintf(" Processing %s...", file.Name)
	s.Start()

	result, err := p.Process(ctx, file)
	s.Stop()

	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "✗ %v\n", err)
		return err
	}

	if result.Anonymized {
		color.New(color.FgGreen).Fprintf(os.Stderr, "✓ Extracted and anonymized %s (%d bytes)\n",
			result.Filename, result.SizeBytes)
	} else {
		color.New(color.FgYellow).Fprintf(os.Stderr, "⚠ Extracted %s, anonymization unavailable, output is unredacted\n",
			result.Filename)
	}

	text := result.ProcessedText
	if showRaw {
		text = result.RawText
	}
	fmt.Println(text)

	return nil
}
