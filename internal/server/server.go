// Package server exposes the document store over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"docqa/internal/domain"
	"docqa/internal/loader"
)

// DocumentStore is the server-facing subset of the document store.
type DocumentStore interface {
	Ingest(ctx context.Context, id, title, content string) (domain.Document, error)
	Delete(id string) error
	Query(ctx context.Context, question string, topK int) ([]domain.SearchResult, error)
	List() []domain.DocumentSummary
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server wires the document store and the answer generator into HTTP routes.
type Server struct {
	echo      *echo.Echo
	store     DocumentStore
	generator domain.Generator
	logger    *zap.Logger
	config    Config
}

// New creates the HTTP server.
func New(store DocumentStore, generator domain.Generator, logger *zap.Logger, cfg Config) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", domain.ErrInvalidConfig)
	}
	if generator == nil {
		return nil, fmt.Errorf("%w: generator is required", domain.ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return err
		}
	})

	s := &Server{echo: e, store: store, generator: generator, logger: logger, config: cfg}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/documents", s.handleListDocuments)
	s.echo.POST("/documents", s.handleIngestDocuments)
	s.echo.DELETE("/documents/:id", s.handleDeleteDocument)
	s.echo.POST("/upload", s.handleUpload)
	s.echo.POST("/query", s.handleQuery)
}

// Start blocks serving HTTP until the context is canceled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(addr)
	}()
	s.logger.Info("http server started", zap.String("addr", addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// DocumentIn is one document in an ingest request. ID and Title are optional.
type DocumentIn struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// IngestRequest is the request body for POST /documents.
type IngestRequest struct {
	Documents []DocumentIn `json:"documents"`
}

// IngestResponse reports how many chunks were indexed across the batch.
type IngestResponse struct {
	IndexedChunks int `json:"indexed_chunks"`
}

// DocumentOut is one entry of the GET /documents response.
type DocumentOut struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Chunks int    `json:"chunks"`
}

// DeleteResponse is the response body for DELETE /documents/:id.
type DeleteResponse struct {
	Deleted bool   `json:"deleted"`
	DocID   string `json:"doc_id"`
}

// QueryRequest is the request body for POST /query.
type QueryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

// QueryResponse carries the generated answer and the chunk keys used as
// context, in rank order.
type QueryResponse struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleListDocuments(c echo.Context) error {
	docs := s.store.List()
	out := make([]DocumentOut, 0, len(docs))
	for _, d := range docs {
		out = append(out, DocumentOut{ID: d.ID, Title: d.Title, Chunks: d.Chunks})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleIngestDocuments(c echo.Context) error {
	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Documents) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "documents field is required")
	}

	indexed := 0
	for _, in := range req.Documents {
		doc, err := s.store.Ingest(c.Request().Context(), in.ID, in.Title, in.Content)
		if err != nil {
			return s.httpError(err)
		}
		indexed += doc.Chunks()
	}
	return c.JSON(http.StatusOK, IngestResponse{IndexedChunks: indexed})
}

func (s *Server) handleDeleteDocument(c echo.Context) error {
	id := c.Param("id")
	if err := s.store.Delete(id); err != nil {
		return s.httpError(err)
	}
	return c.JSON(http.StatusOK, DeleteResponse{Deleted: true, DocID: id})
}

func (s *Server) handleUpload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file field is required")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot open uploaded file")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read uploaded file")
	}

	content, err := loader.Extract(fh.Filename, data)
	if err != nil {
		return s.httpError(err)
	}

	title := c.FormValue("title")
	if title == "" {
		title = fh.Filename
	}
	doc, err := s.store.Ingest(c.Request().Context(), c.FormValue("doc_id"), title, content)
	if err != nil {
		return s.httpError(err)
	}
	return c.JSON(http.StatusOK, IngestResponse{IndexedChunks: doc.Chunks()})
}

func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question field is required")
	}
	if req.TopK == 0 {
		req.TopK = 5
	}

	ctx := c.Request().Context()
	results, err := s.store.Query(ctx, req.Question, req.TopK)
	if err != nil {
		return s.httpError(err)
	}
	if len(results) == 0 {
		return c.JSON(http.StatusOK, QueryResponse{
			Question: req.Question,
			Answer:   "No relevant documents found.",
			Sources:  []string{},
		})
	}

	chunks := make([]string, len(results))
	sources := make([]string, len(results))
	for i, r := range results {
		chunks[i] = r.Chunk.Text
		sources[i] = r.Chunk.Key()
	}
	ans, err := s.generator.Generate(ctx, req.Question, chunks)
	if err != nil {
		return s.httpError(err)
	}
	return c.JSON(http.StatusOK, QueryResponse{Question: req.Question, Answer: ans, Sources: sources})
}

// httpError maps domain error kinds to HTTP statuses; the stable kind stays
// in the message.
func (s *Server) httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidConfig):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrDuplicateDocument):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrEmbedding), errors.Is(err, domain.ErrGeneration):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("internal error", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
