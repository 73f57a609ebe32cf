package domain

import "time"

const (
	ConversionStatusSaved     = "saved"
	ConversionStatusPublished = "published"
)

// Conversion is the persisted record of one converted output file.
type Conversion struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	Status      string     `json:"status"`
	Format      string     `json:"format"`
	Path        string     `json:"path"`
	Bytes       int64      `json:"bytes"`
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	ObjectKey   string     `json:"object_key,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}
