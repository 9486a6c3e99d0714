package dto

import "time"

// UploadDataURLRequest carries a base64 data-URL upload.
type UploadDataURLRequest struct {
	DataURL  string `json:"data_url" validate:"required"`
	FileName string `json:"file_name" validate:"omitempty,max=255"`
}

// UploadResponse describes a stored media asset.
type UploadResponse struct {
	URL       string    `json:"url"`
	PublicID  string    `json:"public_id"`
	FileName  string    `json:"file_name"`
	MimeType  string    `json:"mime_type"`
	SizeBytes int64     `json:"size_bytes"`
	Checksum  string    `json:"checksum"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UploadDeleteResponse reports the provider's destroy verdict.
type UploadDeleteResponse struct {
	PublicID string `json:"public_id"`
	Result   string `json:"result"`
}
