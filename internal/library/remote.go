package library

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/pdfnarrate/internal/doctree"
	"github.com/dgallion1/pdfnarrate/internal/pathstore"
)

// Node is the subset of the pathstore client used by RemoteStore.
type Node interface {
	PutNode(ctx context.Context, key string, req pathstore.NodeRequest) error
	GetNode(ctx context.Context, key string) (*pathstore.NodeResponse, error)
	DeleteNode(ctx context.Context, key string, recursive bool) error
	ListChildren(ctx context.Context, key string, limit int) ([]pathstore.ListChildrenResponse, error)
}

const metaKind = "pdfnarrate.document"

// remoteMeta is the JSON value stored at <prefix>/documents/<id>/meta.
type remoteMeta struct {
	Kind      string    `json:"kind"`
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	DedupKey  string    `json:"dedup_key"`
	UnitCount int       `json:"unit_count"`
	DateAdded time.Time `json:"date_added"`
	Bookmark  *int      `json:"bookmark"`
}

// RemoteStore keeps the library in a pathstore key/value service:
//
//	<prefix>/documents/<id>/meta   metadata
//	<prefix>/documents/<id>/units  unit list
//	<prefix>/by_key/<hash>         dedup index -> id
//
// Writes for the same library are serialised in-process; the KV service has
// no conditional put, so two processes sharing a prefix can still race.
type RemoteStore struct {
	ps     Node
	prefix string
	log    *slog.Logger
	mu     sync.Mutex
}

// NewRemoteStore returns a RemoteStore rooted at prefix.
func NewRemoteStore(ps Node, prefix string, log *slog.Logger) *RemoteStore {
	return &RemoteStore{ps: ps, prefix: strings.TrimSuffix(prefix, "/"), log: log}
}

func (s *RemoteStore) docPrefix(id string) string {
	return fmt.Sprintf("%s/documents/%s", s.prefix, id)
}

func (s *RemoteStore) indexKey(dedupKey string) string {
	return fmt.Sprintf("%s/by_key/%x", s.prefix, sha256.Sum256([]byte(dedupKey)))
}

func (s *RemoteStore) FindByKey(ctx context.Context, key string) (*Record, error) {
	node, err := s.ps.GetNode(ctx, s.indexKey(key))
	if err != nil {
		return nil, fmt.Errorf("read dedup index: %w", err)
	}
	if node == nil {
		return nil, ErrNotFound
	}
	var idx struct {
		ID string `json:"id"`
	}
	if err := node.Decode(&idx); err != nil {
		return nil, err
	}
	return s.Get(ctx, idx.ID)
}

func (s *RemoteStore) Add(ctx context.Context, rec *Record) (*Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.FindByKey(ctx, rec.DedupKey)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.DateAdded.IsZero() {
		rec.DateAdded = time.Now().UTC()
	}
	source := "pdfnarrate:" + rec.ID
	docPrefix := s.docPrefix(rec.ID)

	if err := s.ps.PutNode(ctx, docPrefix+"/units", pathstore.NodeRequest{
		Value:  unitsOrEmpty(rec.Units),
		Source: source,
	}); err != nil {
		s.rollback(ctx, docPrefix)
		return nil, false, fmt.Errorf("write units: %w", err)
	}
	if err := s.putMeta(ctx, rec.ID, metaOf(rec)); err != nil {
		s.rollback(ctx, docPrefix)
		return nil, false, err
	}
	// The index goes last so a half-written document is never found by key.
	if err := s.ps.PutNode(ctx, s.indexKey(rec.DedupKey), pathstore.NodeRequest{
		Value:  map[string]any{"id": rec.ID},
		Source: source,
	}); err != nil {
		s.rollback(ctx, docPrefix)
		return nil, false, fmt.Errorf("write dedup index: %w", err)
	}
	return rec, true, nil
}

// rollback removes a partially written document so List never shows it.
func (s *RemoteStore) rollback(ctx context.Context, docPrefix string) {
	if err := s.ps.DeleteNode(context.WithoutCancel(ctx), docPrefix, true); err != nil {
		s.log.Error("rollback of partial document failed", "key", docPrefix, "error", err)
	}
}

func (s *RemoteStore) Get(ctx context.Context, id string) (*Record, error) {
	meta, err := s.getMeta(ctx, id)
	if err != nil {
		return nil, err
	}
	node, err := s.ps.GetNode(ctx, s.docPrefix(id)+"/units")
	if err != nil {
		return nil, fmt.Errorf("read units: %w", err)
	}
	if node == nil {
		return nil, ErrNotFound
	}
	var units doctree.Document
	if err := node.Decode(&units); err != nil {
		return nil, err
	}
	return &Record{
		ID:        meta.ID,
		Filename:  meta.Filename,
		DedupKey:  meta.DedupKey,
		Units:     unitsOrEmpty(units),
		DateAdded: meta.DateAdded,
		Bookmark:  meta.Bookmark,
	}, nil
}

func (s *RemoteStore) List(ctx context.Context) ([]Summary, error) {
	children, err := s.ps.ListChildren(ctx, s.prefix+"/documents", 10000)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	docs := []Summary{}
	for _, child := range children {
		if !isMetaKey(child.Key) {
			continue
		}
		node := pathstore.NodeResponse{Key: child.Key, Value: child.Value}
		var meta remoteMeta
		if err := node.Decode(&meta); err != nil || meta.Kind != metaKind {
			s.log.Warn("skipping unreadable library entry", "key", child.Key, "error", err)
			continue
		}
		docs = append(docs, Summary{
			ID:        meta.ID,
			Filename:  meta.Filename,
			DateAdded: meta.DateAdded,
			UnitCount: meta.UnitCount,
			Bookmark:  meta.Bookmark,
		})
	}
	sortNewestFirst(docs)
	return docs, nil
}

func (s *RemoteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.getMeta(ctx, id)
	if err != nil {
		return err
	}
	// Document first: an index left behind by a failed second step points at
	// nothing, and FindByKey treats it as a miss.
	if err := s.ps.DeleteNode(ctx, s.docPrefix(id), true); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if err := s.ps.DeleteNode(ctx, s.indexKey(meta.DedupKey), false); err != nil {
		return fmt.Errorf("delete dedup index: %w", err)
	}
	return nil
}

func (s *RemoteStore) SetBookmark(ctx context.Context, id string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.getMeta(ctx, id)
	if err != nil {
		return err
	}
	if err := CheckBookmark(index, meta.UnitCount); err != nil {
		return err
	}
	meta.Bookmark = &index
	return s.putMeta(ctx, id, *meta)
}

// Close is a no-op; the pathstore client is owned by the caller.
func (s *RemoteStore) Close() error { return nil }

func (s *RemoteStore) getMeta(ctx context.Context, id string) (*remoteMeta, error) {
	node, err := s.ps.GetNode(ctx, s.docPrefix(id)+"/meta")
	if err != nil {
		return nil, fmt.Errorf("read meta: %w", err)
	}
	if node == nil {
		return nil, ErrNotFound
	}
	var meta remoteMeta
	if err := node.Decode(&meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *RemoteStore) putMeta(ctx context.Context, id string, meta remoteMeta) error {
	err := s.ps.PutNode(ctx, s.docPrefix(id)+"/meta", pathstore.NodeRequest{
		Value:  meta,
		Source: "pdfnarrate:" + id,
	})
	if err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	return nil
}

func metaOf(rec *Record) remoteMeta {
	return remoteMeta{
		Kind:      metaKind,
		ID:        rec.ID,
		Filename:  rec.Filename,
		DedupKey:  rec.DedupKey,
		UnitCount: rec.UnitCount(),
		DateAdded: rec.DateAdded,
		Bookmark:  rec.Bookmark,
	}
}

// isMetaKey accepts both slash and dot separated key paths.
func isMetaKey(key string) bool {
	return strings.HasSuffix(key, "/meta") || strings.HasSuffix(key, ".meta")
}
