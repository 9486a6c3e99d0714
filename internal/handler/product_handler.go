package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/sigap-app/sigap-api/internal/service"
	"github.com/sigap-app/sigap-api/internal/utils"
)

// ProductHandler handles public product catalog endpoints.
type ProductHandler struct {
	service service.ProductService
	logger  zerolog.Logger
}

// NewProductHandler constructs the handler.
func NewProductHandler(service service.ProductService, logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		logger:  logger.With().Str("component", "product_handler").Logger(),
	}
}

// Register wires routes for the catalog.
func (h *ProductHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:sku", h.get)
}

func (h *ProductHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "pageSize")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}

	result, err := h.service.List(c.Context(), c.Query("search"), c.Query("category"), page, pageSize)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list products")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list products")
	}

	if result.CacheHit {
		c.Set("X-Cache-Hit", "true")
	} else {
		c.Set("X-Cache-Hit", "false")
	}

	return utils.SendSuccess(c, result)
}

func (h *ProductHandler) get(c *fiber.Ctx) error {
	result, err := h.service.GetBySKU(c.Context(), c.Params("sku"))
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "product not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to fetch product")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch product")
	}
	return utils.SendSuccess(c, result)
}
