package dto

import (
	"time"

	"gorm.io/datatypes"

	"github.com/sigap-app/sigap-api/internal/models"
)

// ReportUpsertRequest carries a report upsert payload. The natural key is read
// from body.reportDate; Date is the fallback when the body lacks the field.
type ReportUpsertRequest struct {
	Kind  string                 `json:"kind" validate:"required,min=1,max=64"`
	Owner string                 `json:"owner" validate:"omitempty,max=128"`
	Date  string                 `json:"date" validate:"omitempty,max=32"`
	Body  map[string]interface{} `json:"body" validate:"required"`
}

// ReportResponse serializes a stored report. Body is omitted by the lite
// projection.
type ReportResponse struct {
	ID         uint           `json:"id"`
	Kind       string         `json:"kind"`
	ReportDate *string        `json:"report_date"`
	Owner      string         `json:"owner"`
	Body       datatypes.JSON `json:"body,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// ReportLite summarizes a report without its body.
type ReportLite struct {
	ID         uint    `json:"id"`
	Kind       string  `json:"kind"`
	ReportDate *string `json:"report_date"`
	Owner      string  `json:"owner"`
}

// ReportUpsertResponse reports the stored row and which branch fired.
type ReportUpsertResponse struct {
	Report ReportResponse `json:"report"`
	Branch string         `json:"branch"`
}

// ReportListResponse wraps a bounded report listing.
type ReportListResponse struct {
	Items []ReportResponse `json:"items"`
	Count int              `json:"count"`
	Limit int              `json:"limit"`
}

// ReportDeleteResponse reports how many rows a delete removed.
type ReportDeleteResponse struct {
	Removed int64 `json:"removed"`
}

// NewReportResponse converts a report model into a DTO.
func NewReportResponse(model models.Report) ReportResponse {
	return ReportResponse{
		ID:         model.ID,
		Kind:       model.Kind,
		ReportDate: model.ReportDate,
		Owner:      model.Owner,
		Body:       model.Body,
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}
}

// NewReportResponseSlice converts report models into DTOs.
func NewReportResponseSlice(reports []models.Report) []ReportResponse {
	responses := make([]ReportResponse, 0, len(reports))
	for _, report := range reports {
		responses = append(responses, NewReportResponse(report))
	}
	return responses
}

// NewReportLite converts a report model into its summary form.
func NewReportLite(model models.Report) ReportLite {
	return ReportLite{
		ID:         model.ID,
		Kind:       model.Kind,
		ReportDate: model.ReportDate,
		Owner:      model.Owner,
	}
}
