package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Cdogma/maehrdocs/constants"
	"github.com/Cdogma/maehrdocs/internal/catalog"
	"github.com/Cdogma/maehrdocs/internal/common"
	"github.com/Cdogma/maehrdocs/internal/dupdetect"
	"github.com/Cdogma/maehrdocs/internal/export"
	"github.com/Cdogma/maehrdocs/internal/extract"
	"github.com/Cdogma/maehrdocs/internal/fileops"
	"github.com/Cdogma/maehrdocs/internal/ingest"
	"github.com/Cdogma/maehrdocs/internal/llm"
	"github.com/Cdogma/maehrdocs/internal/llm/openai"
	"github.com/Cdogma/maehrdocs/internal/namegen"
	"github.com/Cdogma/maehrdocs/internal/pipeline"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		configPath  = flag.String("config", "", "path to YAML config file")
		dir         = flag.String("dir", "", "inbox directory (overrides paths.input_dir)")
		watch       = flag.Bool("watch", false, "keep running and process PDFs as they arrive")
		dryRun      = flag.Bool("dry-run", false, "decide outcomes and names but move nothing")
		force       = flag.Bool("force", false, "overwrite existing files instead of suffixing")
		exportPath  = flag.String("export", "", "write the XLSX ledger of filed documents to this path")
		trashDupes  = flag.Bool("trash-duplicates", false, "after the batch, move duplicate-flagged files to the trash directory")
		concurrency = flag.Int("concurrency", 0, "parallel documents (overrides document_processing.concurrency)")
	)
	flag.Parse()

	// .env is optional; real env always wins.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	if *dir != "" {
		cfg.Paths.InputDir = *dir
	}
	if *concurrency > 0 {
		cfg.Processing.Concurrency = *concurrency
	}
	if *force {
		cfg.Processing.ForceOverwrite = true
	}
	if cfg.Catalog.Path == "" && cfg.Paths.OutputDir != "" {
		cfg.Catalog.Path = filepath.Join(cfg.Paths.OutputDir, "maehrdocs.db")
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files := fileops.New(logger)
	if err := files.EnsureDirs(cfg.Paths.InputDir, cfg.Paths.OutputDir, cfg.Paths.TrashDir, cfg.Paths.BackupDir); err != nil {
		logger.Error("failed to create directories", "error", err)
		os.Exit(1)
	}

	cat, err := catalog.Open(cfg.Catalog.Path, logger)
	if err != nil {
		logger.Error("failed to open catalog", "path", cfg.Catalog.Path, "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := cat.Close(); cerr != nil {
			logger.Warn("catalog close failed", "error", cerr)
		}
	}()

	extractor := extract.NewPDFExtractor(extract.Limits{
		MaxFileSizeMB: cfg.Processing.MaxFileSizeMB,
		MaxPages:      cfg.Processing.MaxPages,
	}, logger)

	client := openai.NewClient(openai.Config{
		APIKey:       cfg.LLM.APIKey,
		BaseURL:      cfg.LLM.BaseURL,
		Model:        cfg.LLM.Model,
		Temperature:  cfg.LLM.Temperature,
		Timeout:      cfg.LLM.Timeout.Std(),
		MaxRetries:   cfg.LLM.MaxRetries,
		RetryBackoff: cfg.LLM.RetryBackoff.Std(),
	}, logger)
	logger.Info("openai client initialized", "model", cfg.LLM.Model)

	classifier := llm.NewClassifier(client, llm.ClassifierConfig{
		FallbackModel: cfg.LLM.FallbackModel,
		MinConfidence: cfg.LLM.MinConfidence,
		ContextChars:  cfg.LLM.ContextChars,
		ValidDocTypes: cfg.Processing.ValidDocTypes,
	}, logger)

	detector := dupdetect.New(cfg.Duplicates.Threshold, cfg.Duplicates.ReportFloor)

	namer := namegen.New(namegen.Config{
		Template:       cfg.Naming.Template,
		ValidDocTypes:  cfg.Processing.ValidDocTypes,
		MaxSenderLen:   cfg.Naming.MaxSenderLen,
		MaxSubjectLen:  cfg.Naming.MaxSubjectLen,
		MaxFilenameLen: cfg.Naming.MaxFilenameLen,
	})

	corpus := pipeline.NewDirectoryCorpus(cfg.Paths.OutputDir, files, extractor, cat, logger)

	processor := pipeline.NewProcessor(extractor, classifier, detector, namer, files, corpus, cat, pipeline.Options{
		OutputDir:      cfg.Paths.OutputDir,
		BackupDir:      cfg.Paths.BackupDir,
		DryRun:         *dryRun,
		ForceOverwrite: cfg.Processing.ForceOverwrite,
		Concurrency:    cfg.Processing.Concurrency,
		ExtractTimeout: cfg.Processing.ExtractTimeout.Std(),
		DetectEnabled:  cfg.Duplicates.Enabled,
	}, logger)

	if *watch {
		if err := runWatch(ctx, cfg, processor, files, logger, *dryRun, *trashDupes); err != nil {
			logger.Error("watch failed", "error", err)
			os.Exit(1)
		}
	} else {
		paths, err := ingest.ScanDirectory(cfg.Paths.InputDir, true)
		if err != nil {
			logger.Error("failed to scan inbox", "dir", cfg.Paths.InputDir, "error", err)
			os.Exit(1)
		}
		records := processor.ProcessBatch(ctx, paths)
		summarize(records, *dryRun)
		if *trashDupes && !*dryRun {
			trashDuplicates(records, files, cfg.Paths.TrashDir, logger)
		}
	}

	if *exportPath != "" {
		svc := export.NewService(cat, logger)
		xlsxBytes, err := svc.BuildLedgerXLSX(context.Background())
		if err != nil {
			logger.Error("failed to build ledger", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*exportPath, xlsxBytes, 0644); err != nil {
			logger.Error("failed to write ledger", "path", *exportPath, "error", err)
			os.Exit(1)
		}
		logger.Info("ledger written", "path", *exportPath, "bytes", len(xlsxBytes))
	}
}

// runWatch processes PDFs as they land in the inbox, one event batch at a time.
func runWatch(
	ctx context.Context,
	cfg *common.Config,
	processor *pipeline.Processor,
	files *fileops.Ops,
	logger *slog.Logger,
	dryRun, trashDupes bool,
) error {
	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Root:        cfg.Paths.InputDir,
		InitialScan: true,
		Debounce:    2 * time.Second,
	}, logger)
	if err != nil {
		return err
	}
	logger.Info("watching inbox", "dir", cfg.Paths.InputDir)

	for {
		select {
		case <-ctx.Done():
			logger.Info("watch stopped")
			return nil
		case werr, ok := <-errs:
			if ok {
				logger.Warn("watcher reported error", "error", werr)
			}
		case path, ok := <-events:
			if !ok {
				return nil
			}
			// Each event is its own batch so the corpus snapshot includes
			// everything filed so far.
			records := processor.ProcessBatch(ctx, []string{path})
			summarize(records, dryRun)
			if trashDupes && !dryRun {
				trashDuplicates(records, files, cfg.Paths.TrashDir, logger)
			}
		}
	}
}

// trashDuplicates moves duplicate-flagged sources into the trash holding area
// under a DUPLICATE_ prefixed name. This runs after the batch so the pipeline
// itself never touches a duplicate's source file.
func trashDuplicates(records []*pipeline.Record, files *fileops.Ops, trashDir string, logger *slog.Logger) {
	for _, r := range records {
		if r.Outcome != constants.OutcomeDuplicateSkipped {
			continue
		}
		name := constants.DuplicatePrefix + filepath.Base(r.SourcePath)
		dest, err := files.MoveToTrash(r.SourcePath, trashDir, name, false)
		if err != nil {
			logger.Error("failed to trash duplicate", "path", r.SourcePath, "error", err)
			continue
		}
		logger.Info("duplicate moved to trash", "src", r.SourcePath, "dest", dest)
	}
}

func summarize(records []*pipeline.Record, dryRun bool) {
	if len(records) == 0 {
		fmt.Println("No PDFs found in the inbox.")
		return
	}
	counts := map[constants.Outcome]int{}
	for _, r := range records {
		counts[r.Outcome]++
	}
	header := "Batch complete"
	if dryRun {
		header = "Dry run complete"
	}
	fmt.Printf("%s: %d document(s)\n", header, len(records))
	for _, o := range []constants.Outcome{
		constants.OutcomeFiled,
		constants.OutcomeDuplicateSkipped,
		constants.OutcomeExtractionFailed,
		constants.OutcomeClassificationFailed,
		constants.OutcomeWriteFailed,
	} {
		if counts[o] > 0 {
			fmt.Printf("- %s: %d\n", strings.ToLower(string(o)), counts[o])
		}
	}
	for _, r := range records {
		if r.Outcome == constants.OutcomeFiled && dryRun {
			fmt.Printf("  would file %s as %s\n", filepath.Base(r.SourcePath), r.GeneratedFilename)
		}
	}
}
