package pipeline

import (
	"errors"

	"github.com/promptly-ai/videoseek/internal/match"
	"github.com/promptly-ai/videoseek/internal/speech"
)

// FailureCode is the user-facing classification of a failed attempt
type FailureCode string

const (
	FailUpload             FailureCode = "upload_error"
	FailServiceUnavailable FailureCode = "service_unavailable"
	FailTranscription      FailureCode = "transcription_failed"
	FailStillProcessing    FailureCode = "still_processing"
	FailEmptyTranscript    FailureCode = "empty_transcript"
	FailNoCandidates       FailureCode = "no_candidates"
	FailInternal           FailureCode = "internal_error"
)

// Failure is the terminal value of a failed attempt. Raw transport errors
// never reach the UI; they are classified here with a user-facing message.
type Failure struct {
	Code    FailureCode `json:"code"`
	Message string      `json:"message"`
	JobID   string      `json:"job_id,omitempty"`
}

// Recoverable reports whether retrying the recording could succeed
func (f Failure) Recoverable() bool {
	switch f.Code {
	case FailUpload, FailServiceUnavailable, FailStillProcessing, FailEmptyTranscript:
		return true
	default:
		return false
	}
}

// classify maps component errors onto the failure taxonomy
func classify(err error) Failure {
	switch {
	case errors.Is(err, speech.ErrUpload):
		return Failure{
			Code:    FailUpload,
			Message: "The speech service rejected the recording. Please try again.",
		}
	case errors.Is(err, speech.ErrServiceUnavailable):
		return Failure{
			Code:    FailServiceUnavailable,
			Message: "The speech service is unreachable. Please try again.",
		}
	case errors.Is(err, speech.ErrTranscriptionFailed):
		return Failure{
			Code:    FailTranscription,
			Message: "Your recording could not be transcribed.",
		}
	case errors.Is(err, match.ErrNoCandidates):
		return Failure{
			Code:    FailNoCandidates,
			Message: "The video library is empty. Upload videos before asking questions.",
		}
	default:
		return Failure{
			Code:    FailInternal,
			Message: "Something went wrong. Please try again.",
		}
	}
}
