package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/sigap-app/sigap-api/internal/dto"
	"github.com/sigap-app/sigap-api/internal/models"
	"github.com/sigap-app/sigap-api/internal/observability"
	"github.com/sigap-app/sigap-api/internal/repository"
)

var (
	// ErrNoQuiz indicates the session's report carries no gradable quiz.
	ErrNoQuiz = errors.New("report has no quiz")
	// ErrAlreadySubmitted indicates a prior attempt exists for the participant.
	ErrAlreadySubmitted = errors.New("submission already recorded")
	// ErrAnswersInvalid indicates the submitted answers failed validation.
	ErrAnswersInvalid = errors.New("invalid answers")
)

// QuizService grades quiz attempts against the ledger embedded in a report
// body. One attempt per participant key per session; grading happens under an
// exclusive row lock on the owning report.
type QuizService interface {
	// Submit grades one attempt. On ErrAlreadySubmitted the response carries
	// the prior attempt's score and result unchanged.
	Submit(ctx context.Context, token string, req dto.QuizSubmitRequest) (dto.QuizSubmissionResponse, error)
}

type quizService struct {
	sessions  repository.TrainingSessionRepository
	reports   repository.ReportRepository
	validator *validator.Validate
	events    EventPublisher
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewQuizService constructs the quiz grading service.
func NewQuizService(sessions repository.TrainingSessionRepository, reports repository.ReportRepository, validate *validator.Validate, events EventPublisher, logger zerolog.Logger) QuizService {
	return &quizService{
		sessions:  sessions,
		reports:   reports,
		validator: validate,
		events:    events,
		logger:    logger.With().Str("component", "quiz_service").Logger(),
		tracer:    otel.Tracer("github.com/sigap-app/sigap-api/internal/service/quiz"),
		now:       time.Now,
	}
}

func (s *quizService) Submit(ctx context.Context, token string, req dto.QuizSubmitRequest) (dto.QuizSubmissionResponse, error) {
	start := time.Now()
	defer func() {
		observability.QuizGradingLatency().Observe(time.Since(start).Seconds())
	}()

	token = strings.TrimSpace(token)
	if token == "" {
		return dto.QuizSubmissionResponse{}, ErrSessionNotFound
	}

	if err := s.validator.Struct(req); err != nil {
		return dto.QuizSubmissionResponse{}, err
	}

	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuizSubmissionResponse{}, ErrSessionNotFound
		}
		return dto.QuizSubmissionResponse{}, err
	}
	if session.IsExpired(s.now()) {
		return dto.QuizSubmissionResponse{}, ErrSessionExpired
	}

	participantKey := participantKeyFor(token, req.EmployeeID, req.Name)

	spanCtx, span := s.tracer.Start(ctx, "quiz.submit", trace.WithAttributes(
		attribute.Int64("quiz.report_id", int64(session.ReportID)),
		attribute.String("quiz.participant_key", participantKey),
	))
	defer span.End()

	var (
		entry    models.QuizSubmission
		prior    models.QuizSubmission
		hasPrior bool
	)

	// All check-then-write below runs under the report's row lock; any error
	// rolls the transaction back with the body untouched.
	_, err = s.reports.UpdateBodyLocked(spanCtx, session.ReportID, func(report *models.Report) error {
		decoded, err := models.DecodeTrainingBody(report.Body)
		if err != nil {
			return fmt.Errorf("%w: report body is not decodable", ErrNoQuiz)
		}
		if !decoded.HasQuiz() {
			return ErrNoQuiz
		}
		quiz := decoded.Quiz

		bodyMap, err := report.BodyMap()
		if err != nil {
			return err
		}

		ledger := submissionLedger(bodyMap)
		if raw, ok := ledger[participantKey]; ok {
			prior = decodeLedgerEntry(raw)
			hasPrior = true
			return ErrAlreadySubmitted
		}
		// Older bodies keyed the entry by the bare session token.
		if raw, ok := ledger[token]; ok {
			prior = decodeLedgerEntry(raw)
			hasPrior = true
			return ErrAlreadySubmitted
		}

		answers, err := integerAnswers(req.Answers, len(quiz.Questions))
		if err != nil {
			return err
		}

		correct := 0
		for i, question := range quiz.Questions {
			if answers[i] == question.CorrectIndex {
				correct++
			}
		}
		score := int(math.Round(100 * float64(correct) / float64(len(quiz.Questions))))
		result := models.QuizResultFail
		if score >= quiz.PassMark {
			result = models.QuizResultPass
		}

		entry = models.QuizSubmission{
			SessionToken:   token,
			ParticipantKey: participantKey,
			EmployeeID:     strings.TrimSpace(req.EmployeeID),
			Name:           strings.TrimSpace(req.Name),
			SubmittedAt:    s.now().UTC(),
			PassMark:       quiz.PassMark,
			Score:          score,
			Result:         result,
			Answers:        answers,
		}

		encoded, err := toJSONValue(entry)
		if err != nil {
			return err
		}
		ledger[participantKey] = encoded
		bodyMap[models.BodyFieldSubmissions] = ledger

		s.applyToRoster(bodyMap, entry)

		return report.SetBody(bodyMap)
	})

	if err != nil {
		span.RecordError(err)
		switch {
		case errors.Is(err, ErrAlreadySubmitted):
			span.SetStatus(codes.Error, "already_submitted")
			observability.QuizSubmissions().WithLabelValues("duplicate").Inc()
			if hasPrior {
				return dto.NewQuizSubmissionResponse(prior), ErrAlreadySubmitted
			}
			return dto.QuizSubmissionResponse{}, ErrAlreadySubmitted
		case errors.Is(err, ErrNoQuiz):
			span.SetStatus(codes.Error, "no_quiz")
			observability.QuizSubmissions().WithLabelValues("rejected").Inc()
			return dto.QuizSubmissionResponse{}, err
		case errors.Is(err, ErrAnswersInvalid):
			span.SetStatus(codes.Error, "answers_invalid")
			observability.QuizSubmissions().WithLabelValues("rejected").Inc()
			return dto.QuizSubmissionResponse{}, err
		case errors.Is(err, gorm.ErrRecordNotFound):
			// The session outlived its report.
			span.SetStatus(codes.Error, "report_missing")
			return dto.QuizSubmissionResponse{}, ErrSessionNotFound
		default:
			span.SetStatus(codes.Error, "grading_failed")
			return dto.QuizSubmissionResponse{}, err
		}
	}

	span.SetAttributes(
		attribute.Int("quiz.score", entry.Score),
		attribute.String("quiz.result", entry.Result),
	)

	outcome := strings.ToLower(entry.Result)
	observability.QuizSubmissions().WithLabelValues(outcome).Inc()

	response := dto.NewQuizSubmissionResponse(entry)
	if s.events != nil {
		s.events.Publish(ctx, "training.submitted", response)
	}

	s.logger.Info().
		Uint("report_id", session.ReportID).
		Str("participant_key", participantKey).
		Int("score", entry.Score).
		Str("result", entry.Result).
		Msg("quiz attempt graded")

	return response, nil
}

// participantKeyFor derives the stable ledger key: employee id first, then
// collapsed name, then the session token itself, which makes an anonymous
// token effectively single-use.
func participantKeyFor(token, employeeID, name string) string {
	if id := strings.ToLower(strings.TrimSpace(employeeID)); id != "" {
		return "emp:" + id
	}
	if n := strings.ToLower(collapseWhitespace(name)); n != "" {
		return "name:" + n
	}
	return "token:" + token
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func submissionLedger(bodyMap map[string]interface{}) map[string]interface{} {
	if ledger, ok := bodyMap[models.BodyFieldSubmissions].(map[string]interface{}); ok {
		return ledger
	}
	return map[string]interface{}{}
}

func decodeLedgerEntry(raw interface{}) models.QuizSubmission {
	var entry models.QuizSubmission
	data, err := json.Marshal(raw)
	if err != nil {
		return entry
	}
	_ = json.Unmarshal(data, &entry)
	return entry
}

// toJSONValue round-trips a typed value into the generic form used inside a
// schemaless body map.
func toJSONValue(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// integerAnswers validates count and integrality. Out-of-range indices are
// accepted and simply score as wrong.
func integerAnswers(raw []interface{}, questionCount int) ([]int, error) {
	if len(raw) != questionCount {
		return nil, fmt.Errorf("%w: expected %d answers, got %d", ErrAnswersInvalid, questionCount, len(raw))
	}

	answers := make([]int, len(raw))
	for i, value := range raw {
		switch v := value.(type) {
		case float64:
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("%w: answer at position %d must be an integer index", ErrAnswersInvalid, i)
			}
			answers[i] = int(v)
		case int:
			answers[i] = v
		case json.Number:
			n, err := v.Int64()
			if err != nil {
				return nil, fmt.Errorf("%w: answer at position %d must be an integer index", ErrAnswersInvalid, i)
			}
			answers[i] = int(n)
		default:
			return nil, fmt.Errorf("%w: answer at position %d must be an integer index", ErrAnswersInvalid, i)
		}
	}
	return answers, nil
}

// applyToRoster denormalizes the attempt onto the participant roster when the
// body carries one. Matching is by employee id first, then case-insensitive
// name; unmatched identified participants are appended. Entries are mutated
// in place so fields this service does not know about survive.
func (s *quizService) applyToRoster(bodyMap map[string]interface{}, entry models.QuizSubmission) {
	roster, ok := bodyMap[models.BodyFieldParticipants].([]interface{})
	if !ok {
		return
	}

	matched := -1
	if entry.EmployeeID != "" {
		for i, item := range roster {
			participant, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			id, _ := participant["employeeId"].(string)
			id = strings.TrimSpace(id)
			if id != "" && strings.EqualFold(id, entry.EmployeeID) {
				matched = i
				break
			}
		}
	}

	if matched == -1 && entry.Name != "" {
		hits := 0
		for i, item := range roster {
			participant, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			name, _ := participant["name"].(string)
			if strings.TrimSpace(name) == "" {
				continue
			}
			if strings.EqualFold(collapseWhitespace(name), collapseWhitespace(entry.Name)) {
				if matched == -1 {
					matched = i
				}
				hits++
			}
		}
		if hits > 1 {
			s.logger.Warn().
				Str("name", entry.Name).
				Int("matches", hits).
				Msg("ambiguous roster name match, updating first entry")
		}
	}

	if matched == -1 {
		if entry.EmployeeID == "" && entry.Name == "" {
			return
		}
		appended := map[string]interface{}{"name": entry.Name}
		if entry.EmployeeID != "" {
			appended["employeeId"] = entry.EmployeeID
		}
		bodyMap[models.BodyFieldParticipants] = append(roster, recordAttempt(appended, entry))
		return
	}

	if participant, ok := roster[matched].(map[string]interface{}); ok {
		roster[matched] = recordAttempt(participant, entry)
		bodyMap[models.BodyFieldParticipants] = roster
	}
}

func recordAttempt(participant map[string]interface{}, entry models.QuizSubmission) map[string]interface{} {
	participant["score"] = entry.Score
	participant["result"] = entry.Result
	participant["lastAttemptAt"] = entry.SubmittedAt.Format(time.RFC3339)
	return participant
}
