package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Report is a stored field report: an arbitrary JSON document tagged by kind and,
// when the body declares one, unique per (kind, report date).
type Report struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Kind       string         `gorm:"size:64;not null;uniqueIndex:idx_reports_kind_date;index" json:"kind"`
	ReportDate *string        `gorm:"size:32;uniqueIndex:idx_reports_kind_date" json:"report_date"`
	Owner      string         `gorm:"size:128" json:"owner"`
	Body       datatypes.JSON `gorm:"type:json;not null" json:"body"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// NaturalKeyField is the body field that carries a report's natural key by convention.
const NaturalKeyField = "reportDate"

// SetBody serializes the provided document into the JSON storage column.
func (r *Report) SetBody(body map[string]interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	r.Body = datatypes.JSON(data)
	return nil
}

// BodyMap deserializes the stored body into a generic document. Unknown fields
// survive a decode/encode round trip, so callers may mutate individual keys
// without losing the rest of the payload.
func (r Report) BodyMap() (map[string]interface{}, error) {
	if len(r.Body) == 0 {
		return map[string]interface{}{}, nil
	}

	var body map[string]interface{}
	if err := json.Unmarshal(r.Body, &body); err != nil {
		return nil, err
	}
	return body, nil
}

// NaturalKey returns the report date stored for uniqueness, or an empty string
// for keyless reports.
func (r Report) NaturalKey() string {
	if r.ReportDate == nil {
		return ""
	}
	return *r.ReportDate
}
