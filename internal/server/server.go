package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/latticehq/lattice/internal/config"
	"github.com/latticehq/lattice/internal/curation"
	"github.com/latticehq/lattice/internal/extract"
	"github.com/latticehq/lattice/internal/fingerprint"
	"github.com/latticehq/lattice/internal/graph"
	"github.com/latticehq/lattice/internal/loader"
	"github.com/latticehq/lattice/internal/pipeline"
)

// Server exposes ingestion and entity search over HTTP. Runs started here are
// always non-interactive; merge proposals resolve by policy.
type Server struct {
	Config       *config.Config
	Store        *graph.Store
	Extractor    *extract.Extractor
	Fingerprints fingerprint.Store
}

func NewServer(cfg *config.Config, store *graph.Store, extractor *extract.Extractor, fps fingerprint.Store) *Server {
	return &Server{
		Config:       cfg,
		Store:        store,
		Extractor:    extractor,
		Fingerprints: fps,
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.POST("/ingest", s.Ingest)
	r.POST("/search", s.Search)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

type IngestRequest struct {
	SourcePath    string   `json:"source_path" binding:"required"`
	Namespace     string   `json:"namespace" binding:"required"`
	Types         []string `json:"types"`
	MinConfidence float64  `json:"min_confidence"`
	DryRun        bool     `json:"dry_run"`
	Force         bool     `json:"force"`
}

func (s *Server) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	docs, err := loader.New().LoadDocuments(req.SourcePath)
	if err != nil {
		slog.Error("failed to load documents", "path", req.SourcePath, "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to load documents"})
		return
	}

	curator := curation.NewEngine(s.Config.Pipeline.SimilarityThreshold, false, nil)
	orch := pipeline.New(s.Extractor, s.Store, s.Fingerprints, nil, curator)

	opts := pipeline.Options{
		Types:                  req.Types,
		MinConfidence:          req.MinConfidence,
		BatchSize:              s.Config.Pipeline.BatchSize,
		MaxConsecutiveFailures: s.Config.Pipeline.MaxConsecutiveFailures,
		DryRun:                 req.DryRun,
		Force:                  req.Force,
		ExtractWorkers:         s.Config.Pipeline.ExtractWorkers,
	}

	stats, runErr := orch.Run(c.Request.Context(), req.Namespace, docs, opts)
	if runErr != nil {
		// Partial stats are still worth returning.
		c.JSON(http.StatusOK, gin.H{"stats": stats, "error": runErr.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

type SearchRequest struct {
	Namespace string `json:"namespace" binding:"required"`
	Query     string `json:"query" binding:"required"`
}

func (s *Server) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	results, err := s.Store.SearchEntities(c.Request.Context(), req.Namespace, req.Query)
	if err != nil {
		slog.Error("entity search failed", "namespace", req.Namespace, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}
