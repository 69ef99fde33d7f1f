package http

import (
	"bytes"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"feedback_server/core/domain"
	"feedback_server/core/port/in"
	"feedback_server/core/port/out"
	"feedback_server/core/service/ingest"
	"feedback_server/pkg/apperr"
	"feedback_server/pkg/logger"
	"feedback_server/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const defaultMaxUpload = 10 << 20

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ImportHandler exposes the feedback import entry points.
type ImportHandler struct {
	ingest    in.IngestService
	producer  out.ImportProducer
	archive   out.ReportArchive
	maxUpload int64
}

// ImportHandlerConfig holds the handler's collaborators. Producer and Archive
// are optional; without them the async and history endpoints answer 503.
type ImportHandlerConfig struct {
	Ingest    in.IngestService
	Producer  out.ImportProducer
	Archive   out.ReportArchive
	MaxUpload int64
}

func NewImportHandler(cfg ImportHandlerConfig) *ImportHandler {
	maxUpload := cfg.MaxUpload
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &ImportHandler{
		ingest:    cfg.Ingest,
		producer:  cfg.Producer,
		archive:   cfg.Archive,
		maxUpload: maxUpload,
	}
}

// Register mounts the routes. guards run before every import that reaches
// the classifier.
func (h *ImportHandler) Register(app fiber.Router, guards ...fiber.Handler) {
	feedback := app.Group("/api/feedback")

	imports := feedback.Group("/import", guards...)
	imports.Post("/text", h.ImportText)
	imports.Post("/file", h.ImportFile)
	imports.Post("/image", h.ImportImage)
	imports.Post("/async", h.ImportAsync)

	feedback.Get("/imports", h.ListImports)
}

type importTextRequest struct {
	Content string `json:"content"`
}

type importImageRequest struct {
	Text string `json:"text"`
}

// reportBody is the import response shape the dashboard client reads.
type reportBody struct {
	BatchID string      `json:"batch_id"`
	Stats   reportStats `json:"stats"`
}

type reportStats struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

func reply(c *fiber.Ctx, report domain.BatchReport) error {
	return response.OKWithMessage(c, report.Message(), reportBody{
		BatchID: report.BatchID(),
		Stats: reportStats{
			Total:   report.Total(),
			Success: report.Succeeded(),
			Failed:  report.Failed(),
		},
	})
}

// ImportText handles POST /api/feedback/import/text
func (h *ImportHandler) ImportText(c *fiber.Ctx) error {
	var req importTextRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	if strings.TrimSpace(req.Content) == "" {
		return apperr.MissingField("content")
	}

	lines := ingest.SplitLines(req.Content)
	report, err := h.ingest.IngestSource(c.UserContext(), domain.SourceText, lines)
	if err != nil {
		return err
	}
	return reply(c, report)
}

// ImportFile handles POST /api/feedback/import/file with a multipart "file".
func (h *ImportHandler) ImportFile(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil || fh.Filename == "" {
		return apperr.MissingField("file")
	}
	if fh.Size > h.maxUpload {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "file too large")
	}

	f, err := fh.Open()
	if err != nil {
		return apperr.BadRequest("cannot read uploaded file")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload))
	if err != nil {
		return apperr.BadRequest("cannot read uploaded file")
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return apperr.InvalidInput("file", "must be UTF-8 text")
	}

	report, err := h.ingest.IngestSource(c.UserContext(), domain.SourceFile, ingest.SplitLines(string(data)))
	if err != nil {
		return err
	}
	return reply(c, report)
}

// ImportImage handles POST /api/feedback/import/image. The body carries text
// already recognized from the image.
func (h *ImportHandler) ImportImage(c *fiber.Ctx) error {
	var req importImageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return apperr.MissingField("text")
	}

	report, err := h.ingest.IngestOne(c.UserContext(), req.Text)
	if err != nil {
		return err
	}
	return reply(c, report)
}

// ImportAsync handles POST /api/feedback/import/async
func (h *ImportHandler) ImportAsync(c *fiber.Ctx) error {
	if h.producer == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "async import is not configured")
	}

	var req importTextRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	lines := nonBlank(ingest.SplitLines(req.Content))
	if len(lines) == 0 {
		return apperr.MissingField("content")
	}

	job := &domain.ImportJob{
		ID:        uuid.New().String(),
		RequestID: logger.RequestIDFromContext(c.UserContext()),
		Source:    domain.SourceAsync,
		Lines:     lines,
		CreatedAt: time.Now().UTC(),
	}
	streamID, err := h.producer.PublishImport(c.UserContext(), job)
	if err != nil {
		return apperr.QueueError(err)
	}

	return response.Accepted(c, fiber.Map{
		"job_id":    job.ID,
		"stream_id": streamID,
		"lines":     len(lines),
	})
}

// ListImports handles GET /api/feedback/imports
func (h *ImportHandler) ListImports(c *fiber.Ctx) error {
	if h.archive == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "import history is not configured")
	}

	limit, err := queryInt(c, 20, "limit")
	if err != nil {
		return err
	}
	reports, err := h.archive.ListRecent(c.UserContext(), limit)
	if err != nil {
		return apperr.ExternalError("report archive", err)
	}
	return response.OK(c, reports)
}

func nonBlank(lines []string) []string {
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
