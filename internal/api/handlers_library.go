package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dgallion1/pdfnarrate/internal/doctree"
	"github.com/go-chi/chi/v5"
)

type summaryResponse struct {
	ID            string    `json:"id"`
	Filename      string    `json:"filename"`
	DateAdded     time.Time `json:"date_added"`
	SentenceCount int       `json:"sentence_count"`
	Bookmark      *int      `json:"bookmark"`
}

type documentResponse struct {
	ID            string           `json:"id"`
	Filename      string           `json:"filename"`
	Sentences     []string         `json:"sentences"`
	Units         doctree.Document `json:"units"`
	SentenceCount int              `json:"sentence_count"`
	DateAdded     time.Time        `json:"date_added"`
	Bookmark      *int             `json:"bookmark"`
}

// handleListLibrary lists stored documents, newest first, without their text.
func (s *Server) handleListLibrary(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.List(r.Context())
	if err != nil {
		s.log.Error("list library", "error", err)
		jsonError(w, "failed to list library: "+err.Error(), statusFor(err))
		return
	}

	out := make([]summaryResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, summaryResponse{
			ID:            d.ID,
			Filename:      d.Filename,
			DateAdded:     d.DateAdded,
			SentenceCount: d.UnitCount,
			Bookmark:      d.Bookmark,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(r.Context(), chi.URLParam(r, "docID"))
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, documentResponse{
		ID:            rec.ID,
		Filename:      rec.Filename,
		Sentences:     rec.Units.Strings(),
		Units:         rec.Units,
		SentenceCount: rec.UnitCount(),
		DateAdded:     rec.DateAdded,
		Bookmark:      rec.Bookmark,
	})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if err := s.store.Delete(r.Context(), docID); err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	s.log.Info("document deleted", "doc_id", docID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Document deleted"})
}

func (s *Server) handleSetBookmark(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	raw := r.URL.Query().Get("sentence_index")
	index, err := strconv.Atoi(raw)
	if err != nil {
		jsonError(w, "sentence_index must be an integer", http.StatusBadRequest)
		return
	}

	if err := s.store.SetBookmark(r.Context(), docID, index); err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Bookmark updated",
		"bookmark": index,
	})
}
