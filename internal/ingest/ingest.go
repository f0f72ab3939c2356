// Package ingest turns documents on disk into searchable knowledge entries.
//
// A file flows through read, chunk, embed, and store stages. Failures are
// contained at the smallest useful granularity: a chunk that cannot be
// embedded or stored is skipped without aborting the file, and a file that
// cannot be read is skipped without aborting a folder sweep.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/swasthai/swasth/internal/chunk"
	"github.com/swasthai/swasth/internal/docread"
	"github.com/swasthai/swasth/internal/vecstore"
)

// DefaultConcurrency bounds how many files a folder sweep processes at once.
// Embedding dominates the cost, so this effectively caps in-flight requests
// against the embedding model.
const DefaultConcurrency = 4

// sweepLockName is the lock file guarding a folder against concurrent sweeps.
const sweepLockName = ".swasth-ingest.lock"

// TextEmbedder produces a vector for a chunk of text. ok=false means the
// chunk has no usable embedding and should be skipped.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, bool)
}

// EntryWriter persists an embedded chunk into a collection.
type EntryWriter interface {
	Upsert(ctx context.Context, collection string, id uuid.UUID, vector []float32, payload vecstore.Payload) error
}

// FileReport summarizes the outcome of ingesting a single file. Error is
// empty on success; a failed file carries the failure message so callers
// can tell it apart from a file that stored nothing.
type FileReport struct {
	Path          string `json:"path"`
	Chunks        int    `json:"chunks"`
	Stored        int    `json:"stored"`
	SkippedChunks int    `json:"skipped_chunks"`
	Error         string `json:"error,omitempty"`
}

// SweepReport summarizes a folder sweep.
type SweepReport struct {
	FilesIngested int           `json:"files_ingested"`
	FilesSkipped  int           `json:"files_skipped"`
	FilesFailed   int           `json:"files_failed"`
	ChunksStored  int           `json:"chunks_stored"`
	Duration      time.Duration `json:"duration"`
}

// Pipeline ingests documents into the knowledge collection.
type Pipeline struct {
	embedder    TextEmbedder
	writer      EntryWriter
	concurrency int
	logger      *slog.Logger
}

// New creates an ingestion pipeline. concurrency bounds parallel file
// processing during folder sweeps; values below 1 fall back to
// DefaultConcurrency.
func New(embedder TextEmbedder, writer EntryWriter, concurrency int, logger *slog.Logger) *Pipeline {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Pipeline{
		embedder:    embedder,
		writer:      writer,
		concurrency: concurrency,
		logger:      logger.With("component", "ingest"),
	}
}

// File ingests a single document. The file is read in full, split into
// chunks, and each chunk is embedded and stored independently. Chunks whose
// embedding or storage fails are counted in the report but do not fail the
// call; only an unreadable file returns an error.
func (p *Pipeline) File(ctx context.Context, path string) (FileReport, error) {
	report := FileReport{Path: path}

	text, err := docread.Read(path)
	if err != nil {
		return report, fmt.Errorf("read %s: %w", path, err)
	}

	chunks := chunk.Split(text, chunk.DefaultMaxWords)
	report.Chunks = len(chunks)
	source := filepath.Base(path)

	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		vector, ok := p.embedder.Embed(ctx, c)
		if !ok {
			report.SkippedChunks++
			p.logger.Warn("chunk skipped, no embedding", "file", source)
			continue
		}

		err := p.writer.Upsert(ctx, vecstore.CollectionKnowledge, uuid.New(), vector, vecstore.Payload{
			Text:   c,
			Source: source,
		})
		if err != nil {
			report.SkippedChunks++
			p.logger.Warn("chunk skipped, store failed", "file", source, "error", err)
			continue
		}
		report.Stored++
	}

	p.logger.Info("file ingested",
		"file", source, "chunks", report.Chunks, "stored", report.Stored, "skipped", report.SkippedChunks)
	return report, nil
}

// Folder ingests every supported document under root. Files are processed
// concurrently with a bounded worker count. A file lock inside root prevents
// two sweeps of the same folder from interleaving writes; a sweep already in
// progress causes an immediate error rather than blocking.
//
// Unsupported file types are counted as skipped. Unreadable files are counted
// as failed. Neither aborts the sweep.
func (p *Pipeline) Folder(ctx context.Context, root string) (SweepReport, error) {
	start := time.Now()
	report := SweepReport{}

	info, err := os.Stat(root)
	if err != nil {
		return report, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return report, fmt.Errorf("%s is not a directory", root)
	}

	lock := flock.New(filepath.Join(root, sweepLockName))
	locked, err := lock.TryLock()
	if err != nil {
		return report, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !locked {
		return report, fmt.Errorf("another ingestion sweep is running on %s", root)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			p.logger.Warn("failed to release sweep lock", "error", err)
		}
	}()

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			report.FilesFailed++
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Base(path) == sweepLockName {
			return nil
		}
		if !docread.Supported(filepath.Ext(path)) {
			report.FilesSkipped++
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("walk %s: %w", root, err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, path := range paths {
		g.Go(func() error {
			fileReport, err := p.File(gctx, path)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				report.FilesFailed++
				p.logger.Warn("file skipped", "file", path, "error", err)
				return nil
			}
			report.FilesIngested++
			report.ChunksStored += fileReport.Stored
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}

	report.Duration = time.Since(start)
	p.logger.Info("folder sweep complete",
		"root", root,
		"ingested", report.FilesIngested,
		"skipped", report.FilesSkipped,
		"failed", report.FilesFailed,
		"chunks", report.ChunksStored,
		"duration", report.Duration)
	return report, nil
}
