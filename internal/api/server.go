package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/pdfnarrate/internal/config"
	"github.com/dgallion1/pdfnarrate/internal/library"
	"github.com/dgallion1/pdfnarrate/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Server is the HTTP API server for the PDF library.
type Server struct {
	router       chi.Router
	store        library.Store
	ingestor     *pipeline.Ingestor
	orchestrator *pipeline.Orchestrator
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(store library.Store, ingestor *pipeline.Ingestor, orch *pipeline.Orchestrator, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		store:        store,
		ingestor:     ingestor,
		orchestrator: orch,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/process_pdf", s.handleProcessPDF)

		r.Get("/api/library", s.handleListLibrary)
		r.Post("/api/library/batch", s.handleBatchIngest)
		r.Get("/api/library/{docID}", s.handleGetDocument)
		r.Delete("/api/library/{docID}", s.handleDeleteDocument)
		r.Put("/api/library/{docID}/bookmark", s.handleSetBookmark)

		r.Get("/api/jobs/{jobID}", s.handleJobStatus)
		r.Get("/api/stats/ingest", s.handleIngestStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
