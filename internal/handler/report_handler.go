package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/sigap-app/sigap-api/internal/dto"
	"github.com/sigap-app/sigap-api/internal/service"
	"github.com/sigap-app/sigap-api/internal/utils"
)

// ReportHandler handles report store endpoints.
type ReportHandler struct {
	service service.ReportService
	logger  zerolog.Logger
}

// NewReportHandler constructs a report handler.
func NewReportHandler(service service.ReportService, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		service: service,
		logger:  logger.With().Str("component", "report_handler").Logger(),
	}
}

// Register wires report routes. The literal /lookup route must come before
// the :id wildcard.
func (h *ReportHandler) Register(router fiber.Router) {
	router.Post("", h.upsert)
	router.Get("", h.list)
	router.Get("/lookup", h.lookup)
	router.Get("/:id", h.get)
	router.Delete("/:id", h.deleteByID)
	router.Delete("", h.deleteByNaturalKey)
}

func (h *ReportHandler) upsert(c *fiber.Ctx) error {
	var payload dto.ReportUpsertRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.Upsert(c.Context(), payload)
	if err != nil {
		return h.reportError(c, err, "report upsert failed")
	}

	status := fiber.StatusOK
	if result.Branch == service.UpsertBranchCreated {
		status = fiber.StatusCreated
	}
	return utils.SendSuccessWithStatus(c, status, result)
}

func (h *ReportHandler) list(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	lite := strings.EqualFold(strings.TrimSpace(c.Query("view")), "lite")

	result, err := h.service.List(c.Context(), c.Query("kind"), limit, lite)
	if err != nil {
		return h.reportError(c, err, "failed to list reports")
	}

	return utils.SendSuccess(c, result)
}

func (h *ReportHandler) lookup(c *fiber.Ctx) error {
	result, err := h.service.Lookup(c.Context(), c.Query("kind"), c.Query("date"))
	if err != nil {
		return h.reportError(c, err, "report lookup failed")
	}
	return utils.SendSuccess(c, result)
}

func (h *ReportHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid report id")
	}

	result, err := h.service.Get(c.Context(), id)
	if err != nil {
		return h.reportError(c, err, "failed to fetch report")
	}
	return utils.SendSuccess(c, result)
}

func (h *ReportHandler) deleteByID(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid report id")
	}

	if err := h.service.DeleteByID(c.Context(), id); err != nil {
		return h.reportError(c, err, "failed to delete report")
	}
	return utils.SendSuccess(c, dto.ReportDeleteResponse{Removed: 1})
}

func (h *ReportHandler) deleteByNaturalKey(c *fiber.Ctx) error {
	result, err := h.service.DeleteByNaturalKey(c.Context(), c.Query("kind"), c.Query("date"))
	if err != nil {
		return h.reportError(c, err, "failed to delete report")
	}
	return utils.SendSuccess(c, result)
}

func (h *ReportHandler) reportError(c *fiber.Ctx, err error, logMessage string) error {
	switch {
	case isValidationError(err), errors.Is(err, service.ErrReportInvalid):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrReportNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "report not found")
	case errors.Is(err, service.ErrUpsertConflict):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg(logMessage)
		return utils.SendError(c, fiber.StatusInternalServerError, logMessage)
	}
}
