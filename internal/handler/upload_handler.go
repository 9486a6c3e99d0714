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

// UploadHandler handles report image uploads and deletions.
type UploadHandler struct {
	service service.UploadService
	logger  zerolog.Logger
}

// NewUploadHandler constructs an upload handler.
func NewUploadHandler(service service.UploadService, logger zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		service: service,
		logger:  logger.With().Str("component", "upload_handler").Logger(),
	}
}

// Register wires upload routes.
func (h *UploadHandler) Register(router fiber.Router) {
	router.Post("", h.upload)
	router.Delete("", h.remove)
}

// upload accepts either a multipart "file" field or a JSON body carrying a
// base64 data URL.
func (h *UploadHandler) upload(c *fiber.Ctx) error {
	var userID *uint
	if id := userIDFromContext(c); id > 0 {
		userID = &id
	}

	if file, err := c.FormFile("file"); err == nil && file != nil {
		result, err := h.service.Upload(c.Context(), file, userID)
		if err != nil {
			return h.uploadError(c, err)
		}
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, result)
	}

	var payload dto.UploadDataURLRequest
	if err := c.BodyParser(&payload); err != nil || strings.TrimSpace(payload.DataURL) == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "file or data_url is required")
	}

	result, err := h.service.UploadDataURL(c.Context(), payload, userID)
	if err != nil {
		return h.uploadError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, result)
}

func (h *UploadHandler) remove(c *fiber.Ctx) error {
	publicID := strings.TrimSpace(c.Query("publicId"))
	if publicID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "publicId is required")
	}

	result, err := h.service.Delete(c.Context(), publicID)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Str("public_id", publicID).Msg("image deletion failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "image deletion failed")
	}

	return utils.SendSuccess(c, result)
}

func (h *UploadHandler) uploadError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrUploadTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, service.ErrUploadTypeNotAllowed), errors.Is(err, service.ErrUploadInvalidDataURL):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("upload failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "upload failed")
	}
}
