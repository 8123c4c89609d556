package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/quizdeck/quizdeck-api/internal/dto"
	"github.com/quizdeck/quizdeck-api/internal/service"
	"github.com/quizdeck/quizdeck-api/internal/utils"
)

// ReportHandler wires the admin review and reporting routes.
type ReportHandler struct {
	service  service.ReportService
	activity service.ActivityService
	logger   zerolog.Logger
}

// NewReportHandler constructs the handler.
func NewReportHandler(service service.ReportService, activity service.ActivityService, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		service:  service,
		activity: activity,
		logger:   logger.With().Str("component", "report_handler").Logger(),
	}
}

// Register attaches review endpoints to the admin router group.
func (h *ReportHandler) Register(router fiber.Router) {
	router.Get("/assignments/:id/attempts", h.listAttempts)
	router.Get("/assignments/:id/summary", h.summary)
	router.Get("/assignments/:id/export", h.exportExcel)
	router.Get("/attempts/:id", h.getAttempt)
	router.Put("/attempts/:id/grade", h.overrideGrade)
	router.Get("/activity", h.listActivity)
}

func (h *ReportHandler) listAttempts(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	filter := service.ReviewFilter{Status: c.Query("status")}
	if flagged := strings.TrimSpace(c.Query("flagged")); flagged != "" {
		value := flagged == "true" || flagged == "1"
		filter.Flagged = &value
	}

	attempts, err := h.service.ListAttempts(c.UserContext(), userIDFromContext(c), id, filter)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "attempts retrieved", attempts)
}

func (h *ReportHandler) summary(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	summary, err := h.service.Summary(c.UserContext(), userIDFromContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "summary retrieved", summary)
}

func (h *ReportHandler) exportExcel(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	raw, err := h.service.ExportExcel(c.UserContext(), userIDFromContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=assignment-%d-results.xlsx", id))
	return c.Send(raw)
}

func (h *ReportHandler) getAttempt(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	attempt, err := h.service.GetAttempt(c.UserContext(), userIDFromContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "attempt retrieved", attempt)
}

func (h *ReportHandler) overrideGrade(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.GradeOverrideRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	attempt, err := h.service.OverrideGrade(c.UserContext(), userIDFromContext(c), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "grade overridden", attempt)
}

func (h *ReportHandler) listActivity(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	entries, err := h.activity.List(c.UserContext(), userIDFromContext(c), service.ActivityQuery{
		Action: c.Query("action"),
		Limit:  limit,
	})
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "activity retrieved", entries)
}

func (h *ReportHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrAssignmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
	case errors.Is(err, service.ErrAttemptNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "attempt not found")
	case errors.Is(err, service.ErrNotClassOwner):
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	case errors.Is(err, service.ErrScoreExceedsTotal):
		return utils.SendError(c, fiber.StatusBadRequest, "score exceeds assignment total")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *ReportHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
