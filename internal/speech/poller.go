package speech

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/promptly-ai/videoseek/internal/types"
)

// ErrTranscriptionFailed means the service itself declared the job failed.
// The job is terminal; re-polling cannot recover it.
var ErrTranscriptionFailed = errors.New("transcription failed")

// JobHandle identifies one submitted transcription job
type JobHandle struct {
	ID string
}

// PollConfig controls the fixed-interval polling loop
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultPollConfig gives the ~60s ceiling used for interactive questions
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Interval:    2 * time.Second,
		MaxAttempts: 30,
	}
}

// jobAPI is the slice of Client the poller needs, split out for tests
type jobAPI interface {
	Upload(ctx context.Context, audio []byte) (string, error)
	CreateTranscript(ctx context.Context, audioURL string) (string, error)
	GetTranscript(ctx context.Context, jobID string) (types.TranscriptOutcome, string, error)
}

// Poller drives the submit-then-poll protocol against the speech service
type Poller struct {
	api    jobAPI
	config PollConfig
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewPoller creates a poller over the given client
func NewPoller(client *Client, config PollConfig) *Poller {
	return &Poller{
		api:    client,
		config: config,
		sleep:  sleepContext,
	}
}

// Submit uploads the audio payload and creates a transcription job
func (p *Poller) Submit(ctx context.Context, audio []byte) (JobHandle, error) {
	audioURL, err := p.api.Upload(ctx, audio)
	if err != nil {
		return JobHandle{}, err
	}

	jobID, err := p.api.CreateTranscript(ctx, audioURL)
	if err != nil {
		return JobHandle{}, err
	}

	log.Printf("Poller: job %s submitted (%d audio bytes)", jobID, len(audio))
	return JobHandle{ID: jobID}, nil
}

// SubmitURL creates a transcription job for an already-durable audio URL,
// skipping the upload step. Used by library ingestion.
func (p *Poller) SubmitURL(ctx context.Context, audioURL string) (JobHandle, error) {
	jobID, err := p.api.CreateTranscript(ctx, audioURL)
	if err != nil {
		return JobHandle{}, err
	}
	log.Printf("Poller: job %s submitted for %s", jobID, audioURL)
	return JobHandle{ID: jobID}, nil
}

// AwaitResult polls the job at a fixed interval until it reaches a terminal
// state or the attempt cap is exhausted. A cap exhaustion is not an error:
// the returned outcome carries the job id and a processing status so the
// caller can surface a recoverable "still processing" state.
//
// Polls never overlap; each cycle waits for the previous response first.
func (p *Poller) AwaitResult(ctx context.Context, handle JobHandle) (types.TranscriptOutcome, error) {
	for attempt := 1; attempt <= p.config.MaxAttempts; attempt++ {
		outcome, serviceErr, err := p.poll(ctx, handle.ID)
		if err != nil {
			return types.TranscriptOutcome{}, err
		}

		switch outcome.Status {
		case types.StatusCompleted:
			log.Printf("Poller: job %s completed after %d polls", handle.ID, attempt)
			return outcome, nil
		case types.StatusError:
			return types.TranscriptOutcome{}, fmt.Errorf("%w: %s", ErrTranscriptionFailed, serviceErr)
		}

		if attempt < p.config.MaxAttempts {
			if err := p.sleep(ctx, p.config.Interval); err != nil {
				return types.TranscriptOutcome{}, err
			}
		}
	}

	log.Printf("Poller: job %s still processing after %d polls", handle.ID, p.config.MaxAttempts)
	return types.TranscriptOutcome{
		Status: types.StatusProcessing,
		JobID:  handle.ID,
	}, nil
}

// Transcribe runs the full submit-and-await cycle for a raw audio payload
func (p *Poller) Transcribe(ctx context.Context, audio []byte) (types.TranscriptOutcome, error) {
	handle, err := p.Submit(ctx, audio)
	if err != nil {
		return types.TranscriptOutcome{}, err
	}
	return p.AwaitResult(ctx, handle)
}

func (p *Poller) poll(ctx context.Context, jobID string) (types.TranscriptOutcome, string, error) {
	return p.api.GetTranscript(ctx, jobID)
}

// sleepContext sleeps for d or returns early if ctx is cancelled
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
