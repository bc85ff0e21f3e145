package types

// Transcription job status constants (mirror the speech service wire values)
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Pipeline states published by the orchestrator
const (
	StateIdle         = "idle"
	StateRecording    = "recording"
	StateTranscribing = "transcribing"
	StateMatching     = "matching"
	StateResolved     = "resolved"
	StateNoMatch      = "no_match"
	StateFailed       = "failed"
)

// VideoTranscriptRecord is one stored (video, transcript) pair from the library
type VideoTranscriptRecord struct {
	VideoURL   string `json:"video_url"`
	Transcript string `json:"transcript"`
}

// MatchCandidate is one library record under evaluation during a match attempt.
// The extracted timestamp stays bound to the VideoURL it was extracted for.
type MatchCandidate struct {
	VideoURL       string
	RawModelOutput string
	Timestamp      string
}

// MatchResult is the terminal value of one match attempt
type MatchResult struct {
	Matched          bool   `json:"matched"`
	VideoURL         string `json:"video_url,omitempty"`
	Timestamp        string `json:"timestamp,omitempty"`
	TimestampSeconds int    `json:"timestamp_seconds,omitempty"`
}

// TranscriptOutcome is the poller's result: a completed transcript, or a
// still-processing marker carrying the job id so polling could resume later
type TranscriptOutcome struct {
	Status string
	Text   string
	JobID  string
}

// Completed reports whether the outcome carries a finished transcript
func (o TranscriptOutcome) Completed() bool {
	return o.Status == StatusCompleted
}
