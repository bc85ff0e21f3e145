package ingest

import (
	"time"

	"github.com/promptly-ai/videoseek/internal/types"
)

// Source type constants for library ingestion
const (
	SourceUpload  = "upload"
	SourceYouTube = "youtube"
)

// Job represents one video on its way into the library
type Job struct {
	ID         string
	Title      string
	SourceType string
	FilePath   string
	Status     string
	VideoURL   string
	Error      error
	CreatedAt  time.Time
}

// NewJob creates an ingestion job with default values
func NewJob(id, title, sourceType, filePath string) *Job {
	return &Job{
		ID:         id,
		Title:      title,
		SourceType: sourceType,
		FilePath:   filePath,
		Status:     types.StatusQueued,
		CreatedAt:  time.Now(),
	}
}
