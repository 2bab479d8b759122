package handlers

import (
	"errors"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/docqa/backend/internal/engine"
	"github.com/docqa/backend/internal/errs"
	"github.com/docqa/backend/internal/extract"
	"github.com/docqa/backend/internal/ingestion"
	"github.com/docqa/backend/pkg/logger"
)

type DocumentHandler struct {
	engine    *engine.Engine
	extractor extract.PageExtractor
}

func NewDocumentHandler(engine *engine.Engine, extractor extract.PageExtractor) *DocumentHandler {
	return &DocumentHandler{
		engine:    engine,
		extractor: extractor,
	}
}

// UploadDocuments ingests one or more PDFs into the session. A file
// that cannot be read or extracted is reported under "failures" while
// the rest of the batch proceeds.
func (h *DocumentHandler) UploadDocuments(c *fiber.Ctx) error {
	sess, err := h.engine.GetSession(c.Params("sessionId"))
	if err != nil {
		return sessionError(c, err)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid multipart form",
		})
	}

	files := form.File["files"]
	if len(files) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "At least one file is required",
		})
	}

	var uploads []ingestion.Upload
	var failures []ingestion.DocumentFailure

	for _, fh := range files {
		if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
			failures = append(failures, ingestion.DocumentFailure{
				Name:   fh.Filename,
				Reason: "only PDF files are supported",
			})
			continue
		}

		f, err := fh.Open()
		if err != nil {
			failures = append(failures, ingestion.DocumentFailure{
				Name:   fh.Filename,
				Reason: "could not read file",
			})
			continue
		}

		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			failures = append(failures, ingestion.DocumentFailure{
				Name:   fh.Filename,
				Reason: "could not read file",
			})
			continue
		}

		pages, err := h.extractor.ExtractPages(c.Context(), fh.Filename, data)
		if err != nil {
			logger.Warn("Document extraction failed",
				zap.String("session_id", sess.ID),
				zap.String("document", fh.Filename),
				zap.Error(err),
			)
			failures = append(failures, ingestion.DocumentFailure{
				Name:   fh.Filename,
				Reason: extractionReason(err),
			})
			continue
		}

		uploads = append(uploads, ingestion.Upload{Name: fh.Filename, Pages: pages})
	}

	result := &ingestion.Result{Documents: h.engine.ListDocuments(sess)}
	if len(uploads) > 0 {
		result, err = h.engine.Ingest(c.Context(), sess, uploads)
		if err != nil {
			logger.Error("Ingest failed", zap.Error(err))
			if errs.IsRetryable(err) {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "Embedding service unavailable. Please retry.",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to process documents",
			})
		}
	}

	failures = append(failures, result.Failures...)

	return c.JSON(fiber.Map{
		"documents":      result.Documents,
		"chunks_created": result.ChunksCreated,
		"failures":       failures,
	})
}

func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	sess, err := h.engine.GetSession(c.Params("sessionId"))
	if err != nil {
		return sessionError(c, err)
	}

	return c.JSON(fiber.Map{
		"documents": h.engine.ListDocuments(sess),
	})
}

func extractionReason(err error) string {
	var extErr *errs.ExtractionError
	if errors.As(err, &extErr) {
		return "could not extract text: " + extErr.Err.Error()
	}
	return "could not extract text"
}
