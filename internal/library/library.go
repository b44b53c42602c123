// Package library persists structured documents and their bookmarks.
package library

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgallion1/pdfnarrate/internal/doctree"
)

var (
	// ErrNotFound is returned when no document matches the lookup.
	ErrNotFound = errors.New("document not found")
	// ErrBookmarkOutOfRange is returned for a bookmark index outside [0, unit count).
	ErrBookmarkOutOfRange = errors.New("bookmark index out of range")
)

// Record is a stored document.
type Record struct {
	ID        string
	Filename  string
	DedupKey  string
	Units     doctree.Document
	DateAdded time.Time
	Bookmark  *int
}

// UnitCount is the number of stored units.
func (r *Record) UnitCount() int { return len(r.Units) }

// Summary is the listing view of a record: metadata only, no unit text.
type Summary struct {
	ID        string
	Filename  string
	DateAdded time.Time
	UnitCount int
	Bookmark  *int
}

// Summary returns the listing view of r.
func (r *Record) Summary() Summary {
	return Summary{
		ID:        r.ID,
		Filename:  r.Filename,
		DateAdded: r.DateAdded,
		UnitCount: r.UnitCount(),
		Bookmark:  r.Bookmark,
	}
}

// Store is the durable document library.
type Store interface {
	// FindByKey returns the record stored under the dedup key.
	FindByKey(ctx context.Context, key string) (*Record, error)
	// Add stores rec unless a record with the same dedup key exists, in which
	// case the existing record is returned with created=false.
	Add(ctx context.Context, rec *Record) (stored *Record, created bool, err error)
	Get(ctx context.Context, id string) (*Record, error)
	// List returns all documents, newest first.
	List(ctx context.Context) ([]Summary, error)
	Delete(ctx context.Context, id string) error
	// SetBookmark tags a zero-based unit index on the document.
	SetBookmark(ctx context.Context, id string, index int) error
	Close() error
}

// CheckBookmark validates index against a document with count units.
func CheckBookmark(index, count int) error {
	if index < 0 || index >= count {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrBookmarkOutOfRange, index, count)
	}
	return nil
}

// Dedup key strategies.
const (
	KeyFilename    = "filename"
	KeyContentHash = "content_hash"
)

// DedupKey derives the dedup key for an upload under the given strategy.
func DedupKey(strategy, filename string, data []byte) (string, error) {
	switch strategy {
	case KeyFilename, "":
		return "filename:" + filename, nil
	case KeyContentHash:
		return fmt.Sprintf("sha256:%x", sha256.Sum256(data)), nil
	default:
		return "", fmt.Errorf("unknown dedup strategy %q", strategy)
	}
}

func sortNewestFirst(docs []Summary) {
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].DateAdded.Equal(docs[j].DateAdded) {
			return docs[i].DateAdded.After(docs[j].DateAdded)
		}
		return docs[i].ID < docs[j].ID
	})
}
