package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/pdfnarrate/internal/doctree"
	"github.com/dgallion1/pdfnarrate/internal/library"
	"github.com/dgallion1/pdfnarrate/internal/parser"
	"github.com/dgallion1/pdfnarrate/internal/textstruct"
)

// Result is the outcome of one upload.
type Result struct {
	Record *library.Record
	// FromLibrary is set when the document was already stored under the
	// same dedup key and nothing was re-processed.
	FromLibrary bool
}

// IngestOptions configures an Ingestor.
type IngestOptions struct {
	Parse    parser.Options
	DedupKey string
	Stats    *Stats
}

// Ingestor turns uploaded bytes into a stored, structured document.
type Ingestor struct {
	store     library.Store
	extractor *textstruct.Extractor
	parseOpts parser.Options
	dedup     string
	stats     *Stats
	log       *slog.Logger
}

func NewIngestor(store library.Store, extractor *textstruct.Extractor, opts IngestOptions, log *slog.Logger) (*Ingestor, error) {
	if extractor == nil {
		return nil, errors.New("ingestor requires an extractor")
	}
	if _, err := library.DedupKey(opts.DedupKey, "", nil); err != nil {
		return nil, err
	}
	stats := opts.Stats
	if stats == nil {
		stats = NewStats(time.Hour)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{
		store:     store,
		extractor: extractor,
		parseOpts: opts.Parse,
		dedup:     opts.DedupKey,
		stats:     stats,
		log:       log,
	}, nil
}

// Stats returns the latency tracker fed by this ingestor.
func (in *Ingestor) Stats() *Stats { return in.stats }

// Ingest returns the stored document for the upload, structuring and storing
// it first when the library has no document under its dedup key.
func (in *Ingestor) Ingest(ctx context.Context, filename string, data []byte) (*Result, error) {
	if in.store == nil {
		return nil, errors.New("ingestor has no library store")
	}
	key, err := library.DedupKey(in.dedup, filename, data)
	if err != nil {
		return nil, err
	}

	existing, err := in.store.FindByKey(ctx, key)
	switch {
	case err == nil:
		in.stats.RecordLibraryHit()
		in.log.Info("served from library", "filename", filename, "doc_id", existing.ID)
		return &Result{Record: existing, FromLibrary: true}, nil
	case !errors.Is(err, library.ErrNotFound):
		in.stats.RecordFailure()
		return nil, fmt.Errorf("library lookup: %w", err)
	}

	units, err := in.Structure(ctx, filename, data)
	if err != nil {
		in.stats.RecordFailure()
		return nil, err
	}

	stored, created, err := in.store.Add(ctx, &library.Record{
		Filename: filename,
		DedupKey: key,
		Units:    units,
	})
	if err != nil {
		in.stats.RecordFailure()
		return nil, fmt.Errorf("store document: %w", err)
	}
	if !created {
		in.stats.RecordLibraryHit()
		in.log.Info("concurrent upload already stored", "filename", filename, "doc_id", stored.ID)
		return &Result{Record: stored, FromLibrary: true}, nil
	}

	in.log.Info("document stored",
		"filename", filename,
		"doc_id", stored.ID,
		"units", stored.UnitCount(),
		"headers", stored.Units.HeaderCount(),
	)
	return &Result{Record: stored}, nil
}

// Structure parses data and segments its pages without touching the library.
func (in *Ingestor) Structure(ctx context.Context, filename string, data []byte) (doctree.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := parser.ForFile(filename, in.parseOpts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	pages, err := p.Parse(bytes.NewReader(data), filename)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	units, err := in.extractor.Extract(doctree.Texts(pages))
	if err != nil {
		return nil, fmt.Errorf("structure %s: %w", filename, err)
	}
	in.stats.Record(time.Since(start), len(pages), len(units))
	return units, nil
}

// failurePhase names the stage an ingest error came from.
func failurePhase(err error) string {
	switch {
	case errors.Is(err, parser.ErrInvalidDocument), errors.Is(err, parser.ErrUnsupported):
		return "parsing"
	case errors.Is(err, textstruct.ErrTokenize):
		return "structuring"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "storing"
	}
}
