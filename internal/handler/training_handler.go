package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/sigap-app/sigap-api/internal/dto"
	"github.com/sigap-app/sigap-api/internal/service"
	"github.com/sigap-app/sigap-api/internal/utils"
)

// TrainingHandler handles training session endpoints: the public token
// surface participants hit and the admin issuing surface.
type TrainingHandler struct {
	sessions service.TrainingService
	quiz     service.QuizService
	logger   zerolog.Logger
}

// NewTrainingHandler constructs a training handler.
func NewTrainingHandler(sessions service.TrainingService, quiz service.QuizService, logger zerolog.Logger) *TrainingHandler {
	return &TrainingHandler{
		sessions: sessions,
		quiz:     quiz,
		logger:   logger.With().Str("component", "training_handler").Logger(),
	}
}

// Register wires the public token routes. Extra guards (rate limiting) run
// ahead of the submission handler only, so viewing stays unthrottled.
func (h *TrainingHandler) Register(router fiber.Router, submitGuards ...fiber.Handler) {
	router.Get("/:token", h.view)
	router.Post("/:token/submissions", append(submitGuards, h.submit)...)
}

// RegisterAdmin wires the session issuing routes.
func (h *TrainingHandler) RegisterAdmin(router fiber.Router) {
	router.Post("", h.create)
	router.Get("", h.list)
}

func (h *TrainingHandler) view(c *fiber.Ctx) error {
	result, err := h.sessions.Resolve(c.Context(), c.Params("token"))
	if err != nil {
		return h.trainingError(c, err, "failed to resolve training session")
	}
	return utils.SendSuccess(c, result)
}

func (h *TrainingHandler) submit(c *fiber.Ctx) error {
	var payload dto.QuizSubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.quiz.Submit(c.Context(), c.Params("token"), payload)
	if err != nil {
		if errors.Is(err, service.ErrAlreadySubmitted) {
			// The prior attempt rides along so the participant sees their
			// recorded score.
			return utils.SendErrorWithData(c, fiber.StatusConflict, "submission already recorded", result)
		}
		return h.trainingError(c, err, "quiz submission failed")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, result)
}

func (h *TrainingHandler) create(c *fiber.Ctx) error {
	var payload dto.TrainingSessionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.sessions.CreateSession(c.Context(), payload)
	if err != nil {
		return h.trainingError(c, err, "failed to create training session")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, result)
}

func (h *TrainingHandler) list(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	result, err := h.sessions.ListSessions(c.Context(), limit)
	if err != nil {
		return h.trainingError(c, err, "failed to list training sessions")
	}
	return utils.SendSuccess(c, result)
}

func (h *TrainingHandler) trainingError(c *fiber.Ctx, err error, logMessage string) error {
	switch {
	case isValidationError(err),
		errors.Is(err, service.ErrAnswersInvalid),
		errors.Is(err, service.ErrQuizDefinitionInvalid):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrSessionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "training session not found")
	case errors.Is(err, service.ErrReportNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "report not found")
	case errors.Is(err, service.ErrNoQuiz):
		return utils.SendError(c, fiber.StatusNotFound, "report has no quiz")
	case errors.Is(err, service.ErrSessionExpired):
		return utils.SendError(c, fiber.StatusGone, "training session expired")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg(logMessage)
		return utils.SendError(c, fiber.StatusInternalServerError, logMessage)
	}
}
