package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/askpdf/server/internal/apperr"
	"github.com/askpdf/server/internal/rag"
)

type queryRequest struct {
	Query string `json:"query" validate:"notblank"`
}

type askRequest struct {
	Query      string `json:"query" validate:"notblank"`
	PromptType string `json:"promptType"`
}

type deletePDFRequest struct {
	FileName string `json:"file_name" validate:"notblank"`
}

type deleteDocumentRequest struct {
	DocID string `json:"doc_id" validate:"notblank"`
}

type uploadResponse struct {
	Status       string `json:"status"`
	Filename     string `json:"filename"`
	DocLen       int    `json:"doc_len"`
	ChunkLen     int    `json:"chunk_len"`
	IsStructured bool   `json:"is_structured"`
}

func bindValid(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return apperr.Wrap(apperr.ErrValidation, err)
	}
	return c.Validate(req)
}

func sessionID(c echo.Context) string {
	return c.Request().Header.Get(SessionHeader)
}

func status(c echo.Context, msg string) error {
	return c.JSON(http.StatusOK, map[string]string{"status": msg})
}

func (s *Server) direct(c echo.Context) error {
	var req queryRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	answer, err := s.rag.Direct(c.Request().Context(), req.Query)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"answer": answer})
}

func (s *Server) askPDF(c echo.Context) error {
	var req askRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	answer, err := s.rag.Ask(c.Request().Context(), sessionID(c), req.Query, req.PromptType)
	if err != nil {
		return err
	}
	s.metrics.questions.WithLabelValues(req.PromptType).Inc()
	s.metrics.retrievedChunks.Observe(float64(len(answer.Sources)))
	return c.JSON(http.StatusOK, answer)
}

func (s *Server) prompts(c echo.Context) error {
	return c.JSON(http.StatusOK, rag.Templates())
}

func (s *Server) clearChatHistory(c echo.Context) error {
	if err := s.rag.ClearHistory(c.Request().Context(), sessionID(c)); err != nil {
		return err
	}
	return status(c, "Chat history cleared successfully")
}

func (s *Server) pdfUsage(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"pdf_usage": s.rag.Usage()})
}

func (s *Server) uploadPDF(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return apperr.New(apperr.ErrValidation, "No file part in the request")
		}
		return apperr.Wrap(apperr.ErrValidation, err)
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	result, err := s.processor.Ingest(c.Request().Context(), fh.Filename, f)
	if err != nil {
		return err
	}
	s.metrics.uploads.Inc()
	s.metrics.chunksIndexed.Add(float64(result.ChunkLen))

	return c.JSON(http.StatusOK, uploadResponse{
		Status:       "Successfully Uploaded",
		Filename:     result.Document.Name,
		DocLen:       result.DocLen,
		ChunkLen:     result.ChunkLen,
		IsStructured: result.Structured,
	})
}

func (s *Server) listPDFs(c echo.Context) error {
	names, err := s.store.List()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string][]string{"pdf_files": names})
}

func (s *Server) servePDF(c echo.Context) error {
	path, err := s.store.Path(c.Param("filename"))
	if err != nil {
		return err
	}
	return c.File(path)
}

func (s *Server) deletePDF(c echo.Context) error {
	var req deletePDFRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if _, err := s.processor.Remove(c.Request().Context(), req.FileName); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"status": err.Error()})
		}
		return err
	}
	return status(c, "success")
}

func (s *Server) listDocuments(c echo.Context) error {
	entries, err := s.index.List(c.Request().Context())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return c.JSON(http.StatusOK, map[string]string{"message": "No documents found"})
	}
	return c.JSON(http.StatusOK, map[string]any{"documents": entries})
}

func (s *Server) deleteDocument(c echo.Context) error {
	var req deleteDocumentRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if err := s.index.Delete(c.Request().Context(), []string{req.DocID}); err != nil {
		return err
	}
	return status(c, "Document deleted successfully")
}

func (s *Server) clearDB(c echo.Context) error {
	if err := s.processor.Reset(c.Request().Context()); err != nil {
		return err
	}
	return status(c, "Database and files cleared successfully")
}

func (s *Server) stats(c echo.Context) error {
	names, err := s.store.List()
	if err != nil {
		return err
	}
	n, err := s.index.Count(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int{"pdf_count": len(names), "doc_count": n})
}
