package http

import (
	"strings"

	"feedback_server/core/domain"
	"feedback_server/core/port/in"
	"feedback_server/pkg/apperr"
	"feedback_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ProblemHandler serves the clustered problem list and status changes.
type ProblemHandler struct {
	problems in.ProblemService
}

func NewProblemHandler(problems in.ProblemService) *ProblemHandler {
	return &ProblemHandler{problems: problems}
}

func (h *ProblemHandler) Register(app fiber.Router) {
	problems := app.Group("/api/problems")
	problems.Get("/list", h.List)
	problems.Get("/:id", h.Get)
	problems.Post("/:id/resolve", h.Resolve)
	problems.Post("/:id/update-status", h.UpdateStatus)

	app.Get("/api/dashboard/stats", h.Stats)
}

// Stats handles GET /api/dashboard/stats. The counters are returned
// unwrapped; the dashboard reads them at the top level.
func (h *ProblemHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.problems.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

// List handles GET /api/problems/list
func (h *ProblemHandler) List(c *fiber.Ctx) error {
	filter, err := parseFilter(c)
	if err != nil {
		return err
	}

	result, err := h.problems.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return response.OKWithMeta(c, result.Items, response.NewMeta(result.Total, result.Page, result.PageSize))
}

func parseFilter(c *fiber.Ctx) (domain.ProblemFilter, error) {
	filter := domain.ProblemFilter{Keyword: strings.TrimSpace(c.Query("keyword"))}

	if raw := c.Query("type"); raw != "" {
		category, ok := domain.LookupCategory(raw)
		if !ok {
			return filter, apperr.InvalidInput("type", "unknown problem type")
		}
		filter.Category = category
	}
	if raw := c.Query("severity"); raw != "" {
		severity, ok := domain.LookupSeverity(raw)
		if !ok {
			return filter, apperr.InvalidInput("severity", "unknown severity")
		}
		filter.Severity = severity
	}
	if raw := c.Query("status"); raw != "" {
		status := domain.ProblemStatus(strings.ToLower(raw))
		if !status.IsValid() {
			return filter, apperr.InvalidInput("status", "unknown status")
		}
		filter.Status = status
	}

	var err error
	if filter.Page, err = queryInt(c, 1, "page"); err != nil {
		return filter, err
	}
	if filter.PageSize, err = queryInt(c, domain.DefaultPageSize, "pageSize", "page_size"); err != nil {
		return filter, err
	}
	return filter, nil
}

// Get handles GET /api/problems/:id
func (h *ProblemHandler) Get(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	detail, err := h.problems.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return response.OK(c, detail)
}

// Resolve handles POST /api/problems/:id/resolve
func (h *ProblemHandler) Resolve(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	p, err := h.problems.Resolve(c.UserContext(), id)
	if err != nil {
		return err
	}
	return response.OKWithMessage(c, "问题已标记为已解决", p)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles POST /api/problems/:id/update-status
func (h *ProblemHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req updateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	if req.Status == "" {
		return apperr.MissingField("status")
	}

	p, err := h.problems.UpdateStatus(c.UserContext(), id, domain.ProblemStatus(strings.ToLower(req.Status)))
	if err != nil {
		return err
	}
	return response.OKWithMessage(c, "问题状态已更新", p)
}
