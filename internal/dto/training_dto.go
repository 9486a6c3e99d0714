package dto

import (
	"time"

	"github.com/sigap-app/sigap-api/internal/models"
)

// TrainingSessionCreateRequest asks for a quiz access token on a training report.
type TrainingSessionCreateRequest struct {
	ReportID       uint `json:"report_id" validate:"required,gt=0"`
	ExpiresInHours int  `json:"expires_in_hours" validate:"omitempty,gt=0,lte=720"`
}

// TrainingSessionResponse serializes an issued session token.
type TrainingSessionResponse struct {
	ID        uint       `json:"id"`
	Token     string     `json:"token"`
	ReportID  uint       `json:"report_id"`
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	Report    ReportLite `json:"report"`
}

// SessionQuestion is a participant-facing question: prompt and options only,
// never the correct index.
type SessionQuestion struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// TrainingSessionViewResponse is the public quiz view resolved from a token.
type TrainingSessionViewResponse struct {
	Token         string            `json:"token"`
	Title         string            `json:"title"`
	PassMark      int               `json:"pass_mark"`
	QuestionCount int               `json:"question_count"`
	Questions     []SessionQuestion `json:"questions"`
	ExpiresAt     *time.Time        `json:"expires_at"`
}

// QuizSubmitRequest carries one participant's answers. Answers stay untyped so
// the service can reject a non-integer element by position.
type QuizSubmitRequest struct {
	EmployeeID string        `json:"employee_id" validate:"omitempty,max=64"`
	Name       string        `json:"name" validate:"omitempty,max=128"`
	Answers    []interface{} `json:"answers" validate:"required,min=1"`
}

// QuizSubmissionResponse reports a graded attempt. On an already-submitted
// conflict it carries the prior attempt unchanged.
type QuizSubmissionResponse struct {
	ParticipantKey string    `json:"participant_key"`
	Score          int       `json:"score"`
	Result         string    `json:"result"`
	PassMark       int       `json:"pass_mark"`
	QuestionCount  int       `json:"question_count"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// TrainingSessionListResponse wraps a bounded session listing.
type TrainingSessionListResponse struct {
	Items []TrainingSessionResponse `json:"items"`
	Count int                       `json:"count"`
}

// NewTrainingSessionResponse converts a session model into a DTO.
func NewTrainingSessionResponse(model models.TrainingSession) TrainingSessionResponse {
	response := TrainingSessionResponse{
		ID:        model.ID,
		Token:     model.Token,
		ReportID:  model.ReportID,
		ExpiresAt: model.ExpiresAt,
		CreatedAt: model.CreatedAt,
	}
	if model.Report.ID != 0 {
		response.Report = NewReportLite(model.Report)
	}
	return response
}

// NewQuizSubmissionResponse converts a ledger entry into a DTO.
func NewQuizSubmissionResponse(entry models.QuizSubmission) QuizSubmissionResponse {
	return QuizSubmissionResponse{
		ParticipantKey: entry.ParticipantKey,
		Score:          entry.Score,
		Result:         entry.Result,
		PassMark:       entry.PassMark,
		QuestionCount:  len(entry.Answers),
		SubmittedAt:    entry.SubmittedAt,
	}
}
