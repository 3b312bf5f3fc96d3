package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Cdogma/maehrdocs/internal/catalog"
	"github.com/Cdogma/maehrdocs/internal/common"
	"github.com/Cdogma/maehrdocs/internal/dupdetect"
	"github.com/Cdogma/maehrdocs/internal/extract"
	"github.com/Cdogma/maehrdocs/internal/fileops"
)

// CorpusLoader supplies the duplicate-detection corpus as a point-in-time
// snapshot. A document filed mid-batch never appears in a snapshot taken
// before it was filed.
type CorpusLoader interface {
	Snapshot(ctx context.Context) ([]dupdetect.CorpusDoc, error)
}

// DirectoryCorpus reads the already-filed PDFs in one directory. Extracted
// texts are served from the catalog cache when the file is unchanged and
// re-extracted (then cached) otherwise.
type DirectoryCorpus struct {
	Dir       string
	Files     *fileops.Ops
	Extractor extract.TextExtractor
	Catalog   *catalog.Catalog // optional cache
	Log       *slog.Logger
}

func NewDirectoryCorpus(dir string, files *fileops.Ops, ex extract.TextExtractor, cat *catalog.Catalog, log *slog.Logger) *DirectoryCorpus {
	if log == nil {
		log = slog.Default()
	}
	return &DirectoryCorpus{Dir: dir, Files: files, Extractor: ex, Catalog: cat, Log: log}
}

func (d *DirectoryCorpus) Snapshot(ctx context.Context) ([]dupdetect.CorpusDoc, error) {
	paths, err := d.Files.ListPDFs(d.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", common.ErrDuplicateCheck, d.Dir, err)
	}

	docs := make([]dupdetect.CorpusDoc, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return docs, err
		}
		text, err := d.textFor(ctx, path)
		if err != nil {
			// One unreadable archive file must not block the batch.
			d.Log.Warn("corpus.skip", "path", path, "error", err)
			continue
		}
		docs = append(docs, dupdetect.CorpusDoc{Path: path, Text: text})
	}
	d.Log.Info("corpus.snapshot", "dir", d.Dir, "documents", len(docs))
	return docs, nil
}

func (d *DirectoryCorpus) textFor(ctx context.Context, path string) (string, error) {
	var mtime int64
	if st, err := os.Stat(path); err == nil {
		mtime = st.ModTime().UnixNano()
	}

	if d.Catalog != nil {
		if text, ok, err := d.Catalog.CachedText(ctx, path, mtime); err != nil {
			d.Log.Warn("corpus.cache_read_failed", "path", path, "error", err)
		} else if ok {
			return text, nil
		}
	}

	res, err := d.Extractor.Extract(ctx, path)
	if err != nil && !errors.Is(err, common.ErrExtractionIncomplete) {
		return "", err
	}
	if d.Catalog != nil {
		if err := d.Catalog.StoreText(ctx, path, mtime, res.Text); err != nil {
			d.Log.Warn("corpus.cache_write_failed", "path", path, "error", err)
		}
	}
	return res.Text, nil
}
