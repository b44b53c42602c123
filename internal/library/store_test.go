package library

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pdfnarrate/internal/doctree"
	"github.com/dgallion1/pdfnarrate/internal/pathstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePathstore is an in-memory stand-in for the pathstore KV API.
type fakePathstore struct {
	mu    sync.Mutex
	nodes map[string]json.RawMessage

	// reject answers 400 to requests of method whose key contains substr.
	rejectMethod string
	rejectSubstr string
}

func newFakePathstore(t *testing.T) *httptest.Server {
	srv, _ := newFakePathstoreWithState(t)
	return srv
}

func newFakePathstoreWithState(t *testing.T) (*httptest.Server, *fakePathstore) {
	fp := &fakePathstore{nodes: map[string]json.RawMessage{}}
	srv := httptest.NewServer(fp)
	t.Cleanup(srv.Close)
	return srv, fp
}

func (f *fakePathstore) rejectRequests(method, substr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectMethod, f.rejectSubstr = method, substr
}

func (f *fakePathstore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/kv/")
	if f.rejectSubstr != "" && r.Method == f.rejectMethod && strings.Contains(key, f.rejectSubstr) {
		http.Error(w, "rejected", http.StatusBadRequest)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var req struct {
			Value json.RawMessage `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.nodes[key] = req.Value
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		if prefix, ok := strings.CutSuffix(key, "/*"); ok {
			var nodes []map[string]any
			for k, v := range f.nodes {
				if strings.HasPrefix(k, prefix+"/") {
					nodes = append(nodes, map[string]any{"key_path": k, "value": v})
				}
			}
			json.NewEncoder(w).Encode(map[string]any{"nodes": nodes})
			return
		}
		v, ok := f.nodes[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"key_path": key, "value": v})
	case http.MethodDelete:
		delete(f.nodes, key)
		if r.URL.Query().Get("children") == "true" {
			for k := range f.nodes {
				if strings.HasPrefix(k, key+"/") {
					delete(f.nodes, k)
				}
			}
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type backend struct {
	name string
	open func(t *testing.T) Store
}

func backends() []backend {
	return []backend{
		{"sqlite", func(t *testing.T) Store {
			s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "library.db"), testLogger())
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		}},
		{"pathstore", func(t *testing.T) Store {
			srv := newFakePathstore(t)
			client := pathstore.NewClient(srv.URL, "test")
			return NewRemoteStore(client, "library", testLogger())
		}},
	}
}

func sampleDoc(texts ...string) doctree.Document {
	doc := doctree.Document{{Kind: doctree.KindHeader, Text: "Introduction"}}
	for _, t := range texts {
		doc = append(doc, doctree.Unit{Kind: doctree.KindSentence, Text: t})
	}
	return doc
}

func TestStore_AddGet(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)

			rec := &Record{Filename: "a.pdf", DedupKey: "filename:a.pdf", Units: sampleDoc("One.", "Two.")}
			stored, created, err := s.Add(ctx, rec)
			require.NoError(t, err)
			assert.True(t, created)
			require.NotEmpty(t, stored.ID)
			assert.False(t, stored.DateAdded.IsZero())

			got, err := s.Get(ctx, stored.ID)
			require.NoError(t, err)
			assert.Equal(t, "a.pdf", got.Filename)
			assert.Equal(t, rec.Units, got.Units)
			assert.Equal(t, 3, got.UnitCount())
			assert.Nil(t, got.Bookmark)
			assert.True(t, stored.DateAdded.Equal(got.DateAdded), "date_added should round-trip")
		})
	}
}

func TestStore_AddDuplicateKeyReturnsExisting(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)

			first, created, err := s.Add(ctx, &Record{Filename: "a.pdf", DedupKey: "filename:a.pdf", Units: sampleDoc("First.")})
			require.NoError(t, err)
			require.True(t, created)

			second, created, err := s.Add(ctx, &Record{Filename: "a.pdf", DedupKey: "filename:a.pdf", Units: sampleDoc("Different.")})
			require.NoError(t, err)
			assert.False(t, created)
			assert.Equal(t, first.ID, second.ID)
			assert.Equal(t, first.Units, second.Units)

			list, err := s.List(ctx)
			require.NoError(t, err)
			assert.Len(t, list, 1)
		})
	}
}

func TestStore_FindByKey(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)

			_, err := s.FindByKey(ctx, "filename:missing.pdf")
			assert.ErrorIs(t, err, ErrNotFound)

			stored, _, err := s.Add(ctx, &Record{Filename: "b.pdf", DedupKey: "filename:b.pdf", Units: sampleDoc("Hi.")})
			require.NoError(t, err)

			got, err := s.FindByKey(ctx, "filename:b.pdf")
			require.NoError(t, err)
			assert.Equal(t, stored.ID, got.ID)
		})
	}
}

func TestStore_ListNewestFirstWithoutUnits(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)

			base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			for i, name := range []string{"old.pdf", "mid.pdf", "new.pdf"} {
				_, _, err := s.Add(ctx, &Record{
					Filename:  name,
					DedupKey:  "filename:" + name,
					Units:     sampleDoc(strings.Repeat("x.", i+1)),
					DateAdded: base.Add(time.Duration(i) * time.Hour),
				})
				require.NoError(t, err)
			}

			list, err := s.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, "new.pdf", list[0].Filename)
			assert.Equal(t, "mid.pdf", list[1].Filename)
			assert.Equal(t, "old.pdf", list[2].Filename)
			assert.Equal(t, 2, list[2].UnitCount)
			assert.True(t, list[0].DateAdded.Equal(base.Add(2*time.Hour)))
		})
	}
}

func TestStore_ListEmpty(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			list, err := b.open(t).List(context.Background())
			require.NoError(t, err)
			assert.NotNil(t, list)
			assert.Empty(t, list)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)

			stored, _, err := s.Add(ctx, &Record{Filename: "a.pdf", DedupKey: "filename:a.pdf", Units: sampleDoc("One.")})
			require.NoError(t, err)

			require.NoError(t, s.Delete(ctx, stored.ID))

			_, err = s.Get(ctx, stored.ID)
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = s.FindByKey(ctx, "filename:a.pdf")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, s.Delete(ctx, stored.ID), ErrNotFound)

			// The filename can be ingested again after deletion.
			_, created, err := s.Add(ctx, &Record{Filename: "a.pdf", DedupKey: "filename:a.pdf", Units: sampleDoc("One.")})
			require.NoError(t, err)
			assert.True(t, created)
		})
	}
}

func TestStore_SetBookmarkBounds(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)

			stored, _, err := s.Add(ctx, &Record{Filename: "a.pdf", DedupKey: "filename:a.pdf", Units: sampleDoc("One.", "Two.")})
			require.NoError(t, err)
			count := stored.UnitCount()

			assert.ErrorIs(t, s.SetBookmark(ctx, stored.ID, count), ErrBookmarkOutOfRange)
			assert.ErrorIs(t, s.SetBookmark(ctx, stored.ID, -1), ErrBookmarkOutOfRange)
			assert.ErrorIs(t, s.SetBookmark(ctx, "missing", 0), ErrNotFound)

			require.NoError(t, s.SetBookmark(ctx, stored.ID, count-1))
			got, err := s.Get(ctx, stored.ID)
			require.NoError(t, err)
			require.NotNil(t, got.Bookmark)
			assert.Equal(t, count-1, *got.Bookmark)

			list, err := s.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 1)
			require.NotNil(t, list[0].Bookmark)
			assert.Equal(t, count-1, *list[0].Bookmark)
		})
	}
}

func TestStore_ConcurrentDuplicateAdds(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)

			const n = 8
			var wg sync.WaitGroup
			ids := make([]string, n)
			created := make([]bool, n)
			errs := make([]error, n)
			for i := range n {
				wg.Add(1)
				go func() {
					defer wg.Done()
					rec, c, err := s.Add(ctx, &Record{Filename: "same.pdf", DedupKey: "filename:same.pdf", Units: sampleDoc("A.")})
					errs[i] = err
					if err == nil {
						ids[i], created[i] = rec.ID, c
					}
				}()
			}
			wg.Wait()

			nCreated := 0
			for i := range n {
				require.NoError(t, errs[i])
				assert.Equal(t, ids[0], ids[i])
				if created[i] {
					nCreated++
				}
			}
			assert.Equal(t, 1, nCreated)
		})
	}
}

func TestDedupKey(t *testing.T) {
	k1, err := DedupKey(KeyFilename, "a.pdf", []byte("x"))
	require.NoError(t, err)
	k2, err := DedupKey(KeyFilename, "a.pdf", []byte("y"))
	require.NoError(t, err)
	assert.Equal(t, k1, k2, "filename strategy ignores content")

	h1, err := DedupKey(KeyContentHash, "a.pdf", []byte("same"))
	require.NoError(t, err)
	h2, err := DedupKey(KeyContentHash, "b.pdf", []byte("same"))
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "content hash strategy ignores filename")
	assert.True(t, strings.HasPrefix(h1, "sha256:"))

	_, err = DedupKey("md5", "a.pdf", nil)
	assert.Error(t, err)
}

func TestCheckBookmark(t *testing.T) {
	assert.NoError(t, CheckBookmark(0, 1))
	assert.True(t, errors.Is(CheckBookmark(1, 1), ErrBookmarkOutOfRange))
	assert.True(t, errors.Is(CheckBookmark(0, 0), ErrBookmarkOutOfRange))
}

func TestRemoteStore_FailedIndexWriteLeavesNoRecord(t *testing.T) {
	srv, fp := newFakePathstoreWithState(t)
	s := NewRemoteStore(pathstore.NewClient(srv.URL, "test"), "library", testLogger())
	ctx := context.Background()

	fp.rejectRequests(http.MethodPut, "/by_key/")
	_, _, err := s.Add(ctx, &Record{Filename: "a.pdf", DedupKey: "filename:a.pdf", Units: sampleDoc("One.")})
	require.Error(t, err)

	docs, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs, "failed add must not be listed")

	fp.rejectRequests("", "")
	first, created, err := s.Add(ctx, &Record{Filename: "a.pdf", DedupKey: "filename:a.pdf", Units: sampleDoc("One.")})
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := s.Add(ctx, &Record{Filename: "a.pdf", DedupKey: "filename:a.pdf", Units: sampleDoc("Other.")})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	docs, err = s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestRemoteStore_FailedDeleteKeepsRecordConsistent(t *testing.T) {
	srv, fp := newFakePathstoreWithState(t)
	s := NewRemoteStore(pathstore.NewClient(srv.URL, "test"), "library", testLogger())
	ctx := context.Background()

	rec, _, err := s.Add(ctx, &Record{Filename: "a.pdf", DedupKey: "filename:a.pdf", Units: sampleDoc("One.")})
	require.NoError(t, err)

	fp.rejectRequests(http.MethodDelete, "/documents/")
	require.Error(t, s.Delete(ctx, rec.ID))

	found, err := s.FindByKey(ctx, "filename:a.pdf")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, found.ID)
	docs, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	// A dangling index left by a failed second step is treated as a miss.
	fp.rejectRequests(http.MethodDelete, "/by_key/")
	require.Error(t, s.Delete(ctx, rec.ID))
	_, err = s.FindByKey(ctx, "filename:a.pdf")
	assert.ErrorIs(t, err, ErrNotFound)

	fp.rejectRequests("", "")
	_, created, err := s.Add(ctx, &Record{Filename: "a.pdf", DedupKey: "filename:a.pdf", Units: sampleDoc("One.")})
	require.NoError(t, err)
	assert.True(t, created)
	docs, err = s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
