// Package server exposes the ingestion and answering pipelines over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/askpdf/server/internal/apperr"
	"github.com/askpdf/server/internal/documents"
	"github.com/askpdf/server/internal/rag"
	"github.com/askpdf/server/internal/vectorstore"
)

// SessionHeader selects the conversation a request belongs to.
const SessionHeader = "X-Session-ID"

// Index is the part of the vector index the routes read and prune directly.
type Index interface {
	List(ctx context.Context) ([]vectorstore.Entry, error)
	Delete(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)
}

// Options tune the HTTP layer.
type Options struct {
	// ExposeErrors returns raw messages for 5xx responses. When false the
	// status text is returned instead.
	ExposeErrors bool
	MaxUploadMB  int64
	ReadTimeout  time.Duration
}

// Server wires the echo routes to the pipelines.
type Server struct {
	echo      *echo.Echo
	rag       *rag.Service
	processor *documents.Processor
	store     *documents.Store
	index     Index
	metrics   *Metrics
	opts      Options
	logger    *slog.Logger
}

// New builds the server and registers every route.
func New(svc *rag.Service, processor *documents.Processor, store *documents.Store, index Index,
	metrics *Metrics, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	s := &Server{
		echo:      echo.New(),
		rag:       svc,
		processor: processor,
		store:     store,
		index:     index,
		metrics:   metrics,
		opts:      opts,
		logger:    logger.With("component", "http"),
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()
	e.HTTPErrorHandler = s.handleError
	if opts.ReadTimeout > 0 {
		e.Server.ReadTimeout = opts.ReadTimeout
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
			}
			if v.Error != nil {
				s.logger.Error("request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			s.logger.Info("request", attrs...)
			return nil
		},
	}))

	s.routes(e)
	return s
}

func (s *Server) routes(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

	e.POST("/ai", s.direct)
	e.POST("/ask_pdf", s.askPDF)
	e.GET("/prompts", s.prompts)
	e.POST("/clear_chat_history", s.clearChatHistory)
	e.GET("/pdf_usage", s.pdfUsage)

	upload := middleware.BodyLimit(fmt.Sprintf("%dM", s.maxUploadMB()))
	e.POST("/pdf", s.uploadPDF, upload)
	e.GET("/list_pdfs", s.listPDFs)
	e.GET("/pdfs/:filename", s.servePDF)
	e.POST("/delete_pdf", s.deletePDF)
	e.GET("/list_documents", s.listDocuments)
	e.POST("/delete_document", s.deleteDocument)
	e.POST("/clear_db", s.clearDB)
	e.GET("/stats", s.stats)
}

func (s *Server) maxUploadMB() int64 {
	if s.opts.MaxUploadMB <= 0 {
		return 64
	}
	return s.opts.MaxUploadMB
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// handleError maps error kinds to status codes and writes {"error": message}.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := apperr.Status(err)
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = fmt.Sprint(he.Message)
	}
	if errors.Is(err, apperr.ErrUpstream) {
		s.metrics.upstreamFailures.Inc()
	}
	if code >= http.StatusInternalServerError && !s.opts.ExposeErrors {
		msg = http.StatusText(code)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, map[string]string{"error": msg})
	}
	if err != nil {
		s.logger.Error("failed to write error response", "error", err)
	}
}
