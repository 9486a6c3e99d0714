package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/sigap-app/sigap-api/internal/dto"
	"github.com/sigap-app/sigap-api/internal/service"
	"github.com/sigap-app/sigap-api/internal/utils"
)

// SeedHandler exposes tooling endpoints for seeding the product catalog.
type SeedHandler struct {
	products service.ProductService
	logger   zerolog.Logger
}

// NewSeedHandler constructs a seed handler.
func NewSeedHandler(products service.ProductService, logger zerolog.Logger) *SeedHandler {
	return &SeedHandler{
		products: products,
		logger:   logger.With().Str("component", "seed_handler").Logger(),
	}
}

// Register wires seed routes.
func (h *SeedHandler) Register(router fiber.Router) {
	router.Post("/products/seed", h.seedProducts)
}

func (h *SeedHandler) seedProducts(c *fiber.Ctx) error {
	token := c.Get("X-Seed-Token")

	var payload dto.ProductSeedRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.products.Seed(c.Context(), token, payload)
	if err != nil {
		return h.seedError(c, err)
	}

	return utils.SendSuccess(c, result)
}

func (h *SeedHandler) seedError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrSeedDisabled):
		return utils.SendError(c, fiber.StatusForbidden, "seeding disabled")
	case errors.Is(err, service.ErrSeedUnauthorized):
		return utils.SendError(c, fiber.StatusForbidden, "invalid token")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("seed operation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "seed operation failed")
	}
}
