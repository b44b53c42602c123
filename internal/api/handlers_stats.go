package api

import (
	"net/http"
)

func (s *Server) handleIngestStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"tokenizer":   s.cfg.Tokenizer,
		"queue_depth": s.orchestrator.QueueDepth(),
		"stats":       s.ingestor.Stats().Snapshot(),
	})
}
