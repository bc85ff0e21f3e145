package ingest

import (
	"path/filepath"
	"strings"
)

// ValidateMediaFormat checks whether the uploaded file is a media type the
// speech service can transcribe
func ValidateMediaFormat(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	supportedFormats := []string{".mp4", ".webm", ".mov", ".mkv", ".mp3", ".wav", ".m4a", ".ogg", ".opus", ".flac", ".aac"}

	for _, format := range supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}
