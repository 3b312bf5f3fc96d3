package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Cdogma/maehrdocs/constants"
	"github.com/Cdogma/maehrdocs/internal/catalog"
	"github.com/Cdogma/maehrdocs/internal/common"
	"github.com/Cdogma/maehrdocs/internal/dupdetect"
	"github.com/Cdogma/maehrdocs/internal/extract"
	"github.com/Cdogma/maehrdocs/internal/fileops"
	"github.com/Cdogma/maehrdocs/internal/llm"
	"github.com/Cdogma/maehrdocs/internal/namegen"
)

// Options are the per-run switches; everything else comes from the wired
// components.
type Options struct {
	OutputDir      string
	BackupDir      string // empty disables the pre-move backup copy
	DryRun         bool
	ForceOverwrite bool
	Concurrency    int
	ExtractTimeout time.Duration
	DetectEnabled  bool
}

// Processor runs one document through extract, classify, duplicate check,
// name generation and the filesystem commit. Stages own their failures: the
// processor maps each stage error to the record's terminal outcome and never
// lets one document abort the batch.
type Processor struct {
	Extractor  extract.TextExtractor
	Classifier *llm.Classifier
	Detector   *dupdetect.Detector
	Namer      *namegen.Generator
	Files      *fileops.Ops
	Corpus     CorpusLoader
	Catalog    *catalog.Catalog // optional ledger
	Opts       Options
	Log        *slog.Logger
}

func NewProcessor(
	extractor extract.TextExtractor,
	classifier *llm.Classifier,
	detector *dupdetect.Detector,
	namer *namegen.Generator,
	files *fileops.Ops,
	corpus CorpusLoader,
	cat *catalog.Catalog,
	opts Options,
	log *slog.Logger,
) *Processor {
	if log == nil {
		log = slog.Default()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Processor{
		Extractor:  extractor,
		Classifier: classifier,
		Detector:   detector,
		Namer:      namer,
		Files:      files,
		Corpus:     corpus,
		Catalog:    cat,
		Opts:       opts,
		Log:        log,
	}
}

// ProcessBatch runs every path through the pipeline and returns one record
// per input, in input order. The duplicate corpus is snapshotted once up
// front, so documents filed during this batch do not see each other.
func (p *Processor) ProcessBatch(ctx context.Context, paths []string) []*Record {
	start := time.Now()
	p.Log.Info("pipeline.batch.start", "documents", len(paths), "dry_run", p.Opts.DryRun)

	var corpus []dupdetect.CorpusDoc
	if p.Opts.DetectEnabled && p.Corpus != nil {
		snapshot, err := p.Corpus.Snapshot(ctx)
		if err != nil {
			// A broken archive must not block intake; documents are simply
			// checked against nothing and can be deduplicated later.
			p.Log.Warn("pipeline.corpus_unavailable", "error", err)
		} else {
			corpus = snapshot
		}
	}

	records := make([]*Record, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Opts.Concurrency)
	for i, path := range paths {
		if gctx.Err() != nil {
			break
		}
		i, path := i, path
		g.Go(func() error {
			records[i] = p.ProcessDocument(gctx, path, corpus)
			return nil
		})
	}
	_ = g.Wait()

	// Slots never scheduled (canceled mid-batch) stay PENDING so the caller
	// can tell "not processed" from "processed and failed".
	for i, r := range records {
		if r == nil {
			records[i] = NewRecord(paths[i])
			p.Log.Warn("pipeline.document.skipped", "path", paths[i], "error", gctx.Err())
		}
	}

	p.Log.Info("pipeline.batch.done",
		"documents", len(paths),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return records
}

// ProcessDocument runs one document to a terminal outcome. The source file is
// moved exactly when the outcome is FILED and the run is not a dry run; every
// failure and the duplicate outcome leave it untouched at its source path.
func (p *Processor) ProcessDocument(ctx context.Context, path string, corpus []dupdetect.CorpusDoc) *Record {
	start := time.Now()
	rec := NewRecord(path)
	rec.DryRun = p.Opts.DryRun
	defer func() {
		rec.Duration = time.Since(start)
		p.Log.Info("pipeline.document.done",
			"path", path,
			"outcome", string(rec.Outcome),
			"filed_path", rec.FiledPath,
			"elapsed_ms", rec.Duration.Milliseconds(),
		)
	}()

	p.extractStage(ctx, rec)
	if rec.Outcome.Terminal() {
		return rec
	}
	p.classifyStage(ctx, rec)
	if rec.Outcome.Terminal() {
		return rec
	}
	p.detectStage(rec, corpus)
	if rec.Outcome.Terminal() {
		return rec
	}
	p.commitStage(ctx, rec)
	return rec
}

func (p *Processor) extractStage(ctx context.Context, rec *Record) {
	ectx := ctx
	if p.Opts.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		ectx, cancel = context.WithTimeout(ctx, p.Opts.ExtractTimeout)
		defer cancel()
	}

	res, err := p.Extractor.Extract(ectx, rec.SourcePath)
	if err != nil && !errors.Is(err, common.ErrExtractionIncomplete) {
		rec.fail("extract", err.Error(), constants.OutcomeExtractionFailed)
		return
	}
	// Incomplete extraction degrades to empty text; classification still runs
	// with the filename as the only hint.
	rec.RawText = res.Text
	rec.Metadata = res.Metadata
	for _, w := range res.Warnings {
		p.Log.Warn("pipeline.extract.warning", "path", rec.SourcePath, "warning", w)
	}
}

func (p *Processor) classifyStage(ctx context.Context, rec *Record) {
	fields, err := p.Classifier.Classify(ctx, rec.RawText, filepath.Base(rec.SourcePath))
	if err != nil {
		rec.fail("classify", err.Error(), constants.OutcomeClassificationFailed)
		return
	}
	rec.Fields = &fields
}

func (p *Processor) detectStage(rec *Record, corpus []dupdetect.CorpusDoc) {
	if !p.Opts.DetectEnabled || p.Detector == nil {
		return
	}
	rec.SimilarityMatches = p.Detector.Detect(rec.RawText, corpus)
	if p.Detector.IsDuplicate(rec.SimilarityMatches) {
		top := rec.SimilarityMatches[0]
		p.Log.Info("pipeline.duplicate",
			"path", rec.SourcePath,
			"matched", top.Path,
			"score", top.Score,
		)
		rec.finish(constants.OutcomeDuplicateSkipped)
	}
}

// commitStage names the document and performs the filesystem commit: optional
// backup copy, then the atomic move into the output directory.
func (p *Processor) commitStage(ctx context.Context, rec *Record) {
	rec.GeneratedFilename = p.Namer.Generate(*rec.Fields)

	if rec.DryRun {
		p.Log.Info("pipeline.dry_run",
			"path", rec.SourcePath,
			"would_file_as", rec.GeneratedFilename,
		)
		rec.finish(constants.OutcomeFiled)
		return
	}

	if p.Opts.BackupDir != "" {
		if _, err := p.Files.Backup(rec.SourcePath, p.Opts.BackupDir); err != nil {
			rec.fail("backup", err.Error(), constants.OutcomeWriteFailed)
			return
		}
	}

	dest, err := p.Files.MoveToOutput(rec.SourcePath, p.Opts.OutputDir, rec.GeneratedFilename, p.Opts.ForceOverwrite)
	if err != nil {
		rec.fail("move", err.Error(), constants.OutcomeWriteFailed)
		return
	}
	rec.FiledPath = dest
	rec.finish(constants.OutcomeFiled)

	if p.Catalog != nil {
		entry := catalog.Entry{
			ID:         rec.ID.String(),
			SourcePath: rec.SourcePath,
			FiledPath:  dest,
			Fields:     *rec.Fields,
			Text:       rec.RawText,
		}
		if err := p.Catalog.Add(ctx, entry); err != nil {
			// The file is already filed; a ledger miss is repairable, not fatal.
			p.Log.Warn("pipeline.catalog_add_failed", "path", dest, "error", err)
		}
	}
}
