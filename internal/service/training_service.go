package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gorm.io/gorm"

	"github.com/sigap-app/sigap-api/internal/dto"
	"github.com/sigap-app/sigap-api/internal/models"
	"github.com/sigap-app/sigap-api/internal/repository"
)

var (
	// ErrSessionNotFound indicates no training session matches the token.
	ErrSessionNotFound = errors.New("training session not found")
	// ErrSessionExpired indicates the session token is past its expiry.
	ErrSessionExpired = errors.New("training session expired")
	// ErrQuizDefinitionInvalid indicates the report's quiz fails structural validation.
	ErrQuizDefinitionInvalid = errors.New("invalid quiz definition")
)

// quizSchemaJSON is the structural contract a report's quiz must satisfy
// before a session token is issued against it.
const quizSchemaJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["questions"],
	"properties": {
		"passMark": {"type": "integer", "minimum": 0, "maximum": 100},
		"questions": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["prompt", "options", "correctIndex"],
				"properties": {
					"prompt": {"type": "string", "minLength": 1},
					"options": {"type": "array", "minItems": 2, "items": {"type": "string"}},
					"correctIndex": {"type": "integer", "minimum": 0}
				}
			}
		}
	}
}`

// TrainingService issues and resolves quiz session tokens.
type TrainingService interface {
	CreateSession(ctx context.Context, req dto.TrainingSessionCreateRequest) (dto.TrainingSessionResponse, error)
	Resolve(ctx context.Context, token string) (dto.TrainingSessionViewResponse, error)
	ListSessions(ctx context.Context, limit int) (dto.TrainingSessionListResponse, error)
}

type trainingService struct {
	sessions   repository.TrainingSessionRepository
	reports    repository.ReportRepository
	validator  *validator.Validate
	schema     *jsonschema.Schema
	sanitizer  *bluemonday.Policy
	defaultTTL time.Duration
	events     EventPublisher
	logger     zerolog.Logger
	now        func() time.Time
}

// NewTrainingService constructs the training session service.
func NewTrainingService(sessions repository.TrainingSessionRepository, reports repository.ReportRepository, validate *validator.Validate, defaultTTL time.Duration, events EventPublisher, logger zerolog.Logger) TrainingService {
	if defaultTTL <= 0 {
		defaultTTL = 72 * time.Hour
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("quiz.schema.json", strings.NewReader(quizSchemaJSON)); err != nil {
		panic(err)
	}

	return &trainingService{
		sessions:   sessions,
		reports:    reports,
		validator:  validate,
		schema:     compiler.MustCompile("quiz.schema.json"),
		sanitizer:  bluemonday.StrictPolicy(),
		defaultTTL: defaultTTL,
		events:     events,
		logger:     logger.With().Str("component", "training_service").Logger(),
		now:        time.Now,
	}
}

// CreateSession issues a token against a quiz-bearing report. The embedded
// quiz must pass structural validation before any token is handed out.
func (s *trainingService) CreateSession(ctx context.Context, req dto.TrainingSessionCreateRequest) (dto.TrainingSessionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.TrainingSessionResponse{}, err
	}

	report, err := s.reports.GetByID(ctx, req.ReportID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TrainingSessionResponse{}, ErrReportNotFound
		}
		return dto.TrainingSessionResponse{}, err
	}

	if err := s.validateQuiz(report); err != nil {
		return dto.TrainingSessionResponse{}, err
	}

	ttl := s.defaultTTL
	if req.ExpiresInHours > 0 {
		ttl = time.Duration(req.ExpiresInHours) * time.Hour
	}
	expiresAt := s.now().Add(ttl)

	session := models.TrainingSession{
		Token:     uuid.NewString(),
		ReportID:  report.ID,
		ExpiresAt: &expiresAt,
	}
	if err := s.sessions.Create(ctx, &session); err != nil {
		return dto.TrainingSessionResponse{}, err
	}
	session.Report = report

	response := dto.NewTrainingSessionResponse(session)
	if s.events != nil {
		s.events.Publish(ctx, "training.session_created", response)
	}

	s.logger.Info().
		Uint("report_id", report.ID).
		Time("expires_at", expiresAt).
		Msg("training session issued")

	return response, nil
}

// Resolve returns the participant-facing quiz view: prompts and options only,
// sanitized, with correct indices never serialized.
func (s *trainingService) Resolve(ctx context.Context, token string) (dto.TrainingSessionViewResponse, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return dto.TrainingSessionViewResponse{}, ErrSessionNotFound
	}

	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TrainingSessionViewResponse{}, ErrSessionNotFound
		}
		return dto.TrainingSessionViewResponse{}, err
	}
	if session.IsExpired(s.now()) {
		return dto.TrainingSessionViewResponse{}, ErrSessionExpired
	}

	decoded, err := models.DecodeTrainingBody(session.Report.Body)
	if err != nil || !decoded.HasQuiz() {
		// The body may have been replaced since the token was issued.
		return dto.TrainingSessionViewResponse{}, ErrNoQuiz
	}

	title := strings.TrimSpace(s.sanitizer.Sanitize(decoded.Title))
	if title == "" {
		title = session.Report.Kind
	}

	questions := make([]dto.SessionQuestion, 0, len(decoded.Quiz.Questions))
	for _, question := range decoded.Quiz.Questions {
		options := make([]string, 0, len(question.Options))
		for _, option := range question.Options {
			options = append(options, strings.TrimSpace(s.sanitizer.Sanitize(option)))
		}
		questions = append(questions, dto.SessionQuestion{
			Prompt:  strings.TrimSpace(s.sanitizer.Sanitize(question.Prompt)),
			Options: options,
		})
	}

	return dto.TrainingSessionViewResponse{
		Token:         session.Token,
		Title:         title,
		PassMark:      decoded.Quiz.PassMark,
		QuestionCount: len(questions),
		Questions:     questions,
		ExpiresAt:     session.ExpiresAt,
	}, nil
}

func (s *trainingService) ListSessions(ctx context.Context, limit int) (dto.TrainingSessionListResponse, error) {
	limit = clampPageSize(limit)

	sessions, err := s.sessions.List(ctx, limit)
	if err != nil {
		return dto.TrainingSessionListResponse{}, err
	}

	items := make([]dto.TrainingSessionResponse, 0, len(sessions))
	for _, session := range sessions {
		items = append(items, dto.NewTrainingSessionResponse(session))
	}

	return dto.TrainingSessionListResponse{Items: items, Count: len(items)}, nil
}

func (s *trainingService) validateQuiz(report models.Report) error {
	bodyMap, err := report.BodyMap()
	if err != nil {
		return fmt.Errorf("%w: report body is not decodable", ErrQuizDefinitionInvalid)
	}

	quizRaw, ok := bodyMap[models.BodyFieldQuiz]
	if !ok || quizRaw == nil {
		return fmt.Errorf("%w: report carries no quiz", ErrQuizDefinitionInvalid)
	}

	if err := s.schema.Validate(quizRaw); err != nil {
		return fmt.Errorf("%w: %v", ErrQuizDefinitionInvalid, err)
	}

	// The schema cannot relate correctIndex to its own options array.
	decoded, err := models.DecodeTrainingBody(report.Body)
	if err != nil || decoded.Quiz == nil {
		return fmt.Errorf("%w: quiz is not decodable", ErrQuizDefinitionInvalid)
	}
	for i, question := range decoded.Quiz.Questions {
		if question.CorrectIndex >= len(question.Options) {
			return fmt.Errorf("%w: question %d correctIndex out of range", ErrQuizDefinitionInvalid, i)
		}
	}

	return nil
}
