package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// TrainingSession grants time-bound quiz access to a training report via an
// opaque token shared with participants.
type TrainingSession struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Token     string     `gorm:"size:64;uniqueIndex;not null" json:"token"`
	ReportID  uint       `gorm:"not null;index" json:"report_id"`
	ExpiresAt *time.Time `gorm:"index" json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Report    Report     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"report"`
}

// IsExpired reports whether the session token is past its expiry.
func (s TrainingSession) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// Body fields recognized inside a training report. Everything else in the body
// is opaque to the service and preserved verbatim.
const (
	BodyFieldTitle        = "title"
	BodyFieldQuiz         = "quiz"
	BodyFieldParticipants = "participants"
	BodyFieldSubmissions  = "quizSubmissions"
)

// Quiz outcome values recorded on submissions and roster entries.
const (
	QuizResultPass = "PASS"
	QuizResultFail = "FAIL"
)

// Quiz is the graded questionnaire embedded in a training report body.
type Quiz struct {
	PassMark  int            `json:"passMark"`
	Questions []QuizQuestion `json:"questions"`
}

// QuizQuestion is a single multiple-choice question.
type QuizQuestion struct {
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

// QuizSubmission is one graded attempt in the submission ledger. Entries are
// immutable once written.
type QuizSubmission struct {
	SessionToken   string    `json:"sessionToken"`
	ParticipantKey string    `json:"participantKey"`
	EmployeeID     string    `json:"employeeId,omitempty"`
	Name           string    `json:"name,omitempty"`
	SubmittedAt    time.Time `json:"submittedAt"`
	PassMark       int       `json:"passMark"`
	Score          int       `json:"score"`
	Result         string    `json:"result"`
	Answers        []int     `json:"answers"`
}

// Participant is a roster entry carrying denormalized last-attempt results.
type Participant struct {
	EmployeeID    string     `json:"employeeId,omitempty"`
	Name          string     `json:"name"`
	Score         *int       `json:"score,omitempty"`
	Result        string     `json:"result,omitempty"`
	LastAttemptAt *time.Time `json:"lastAttemptAt,omitempty"`
}

// TrainingBody is the typed view of the quiz-bearing fields in a report body.
type TrainingBody struct {
	Title        string                    `json:"title"`
	Quiz         *Quiz                     `json:"quiz"`
	Participants []Participant             `json:"participants"`
	Submissions  map[string]QuizSubmission `json:"quizSubmissions"`
}

// HasQuiz reports whether the body carries a gradable quiz.
func (b TrainingBody) HasQuiz() bool {
	return b.Quiz != nil && len(b.Quiz.Questions) > 0
}

// DecodeTrainingBody extracts the recognized training fields from a report body.
func DecodeTrainingBody(body datatypes.JSON) (TrainingBody, error) {
	var decoded TrainingBody
	if len(body) == 0 {
		return decoded, nil
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return TrainingBody{}, err
	}
	return decoded, nil
}
