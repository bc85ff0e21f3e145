package pipeline

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/promptly-ai/videoseek/internal/types"
)

// ErrNotRecording is returned when capture finalizes without a started attempt.
var ErrNotRecording = errors.New("no recording in progress")

// Transcriber turns a raw audio payload into a transcript outcome
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (types.TranscriptOutcome, error)
}

// MatchFinder locates the audio transcript inside the candidate transcripts
type MatchFinder interface {
	FindMatch(ctx context.Context, audioTranscript string, candidates []types.VideoTranscriptRecord) (types.MatchResult, error)
}

// Library provides a point-in-time snapshot of stored video transcripts
type Library interface {
	Snapshot(ctx context.Context) ([]types.VideoTranscriptRecord, error)
}

// Seeker drives the playback surface once a match resolves
type Seeker interface {
	SeekAndPlay(videoURL, timestamp string) error
	Reset()
}

// Orchestrator owns the end-to-end question pipeline: recording →
// transcribing → matching → resolved/no-match/failed. It is the single
// writer of session state; everything else reads snapshots.
//
// Every attempt carries a monotonically increasing id. Publishes from an
// attempt whose id no longer matches the current one are discarded, so a
// recording started mid-flight silently retires the older attempt.
type Orchestrator struct {
	transcriber Transcriber
	matcher     MatchFinder
	library     Library
	seeker      Seeker
	events      *EventBus

	mu         sync.Mutex
	attempt    uint64
	state      string
	transcript string
	result     *types.MatchResult
	failure    *Failure
}

// NewOrchestrator wires the pipeline components together
func NewOrchestrator(transcriber Transcriber, matcher MatchFinder, library Library, seeker Seeker, events *EventBus) *Orchestrator {
	return &Orchestrator{
		transcriber: transcriber,
		matcher:     matcher,
		library:     library,
		seeker:      seeker,
		events:      events,
		state:       types.StateIdle,
	}
}

// StartCapture begins a new attempt. Any in-flight attempt is superseded:
// its id stops matching and its eventual outcome is discarded.
func (o *Orchestrator) StartCapture() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.attempt++
	o.state = types.StateRecording
	o.transcript = ""
	o.result = nil
	o.failure = nil
	o.seeker.Reset()

	log.Printf("Pipeline: attempt %d recording", o.attempt)
	o.events.Publish(Event{Attempt: o.attempt, Type: EventTypeState, State: o.state})
	return o.attempt
}

// Abort cancels a recording before any job is submitted. No side effects
// remain; the pipeline returns to idle.
func (o *Orchestrator) Abort() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != types.StateRecording {
		return
	}
	o.attempt++
	o.state = types.StateIdle
	log.Printf("Pipeline: recording aborted")
	o.events.Publish(Event{Attempt: o.attempt, Type: EventTypeState, State: o.state})
}

// StopCapture finalizes the recording and runs the rest of the pipeline
// asynchronously. The returned attempt id tags the run.
func (o *Orchestrator) StopCapture(ctx context.Context, audio []byte) (uint64, error) {
	o.mu.Lock()
	if o.state != types.StateRecording {
		o.mu.Unlock()
		return 0, ErrNotRecording
	}
	id := o.attempt
	o.setStateLocked(id, types.StateTranscribing)
	o.mu.Unlock()

	if len(audio) == 0 {
		o.fail(id, Failure{
			Code:    FailEmptyTranscript,
			Message: "No audio was recorded. Please try again.",
		})
		return id, nil
	}

	go o.run(ctx, id, audio)
	return id, nil
}

// run executes transcription and matching for one attempt
func (o *Orchestrator) run(ctx context.Context, id uint64, audio []byte) {
	outcome, err := o.transcriber.Transcribe(ctx, audio)
	if err != nil {
		o.fail(id, classify(err))
		return
	}

	if !outcome.Completed() {
		// Poll ceiling hit: recoverable, carries the job id for the UI
		o.fail(id, Failure{
			Code:    FailStillProcessing,
			Message: "Transcription is taking longer than expected. Please try again.",
			JobID:   outcome.JobID,
		})
		return
	}

	text := strings.TrimSpace(outcome.Text)
	if text == "" {
		o.fail(id, Failure{
			Code:    FailEmptyTranscript,
			Message: "No speech was detected in your recording.",
		})
		return
	}

	o.mu.Lock()
	if id != o.attempt {
		o.mu.Unlock()
		log.Printf("Pipeline: discarding stale transcript for attempt %d", id)
		return
	}
	o.transcript = text
	o.setStateLocked(id, types.StateMatching)
	o.mu.Unlock()

	snapshot, err := o.library.Snapshot(ctx)
	if err != nil {
		log.Printf("Pipeline: library snapshot failed: %v", err)
		o.fail(id, Failure{
			Code:    FailServiceUnavailable,
			Message: "The video library could not be read. Please try again.",
		})
		return
	}

	result, err := o.matcher.FindMatch(ctx, text, snapshot)
	if err != nil {
		o.fail(id, classify(err))
		return
	}

	o.resolve(id, result)
}

// resolve publishes the attempt's terminal result and, on a match, hands
// it to the playback synchronizer. Seek failures never fail the pipeline.
func (o *Orchestrator) resolve(id uint64, result types.MatchResult) {
	o.mu.Lock()
	if id != o.attempt {
		o.mu.Unlock()
		log.Printf("Pipeline: discarding stale result for attempt %d", id)
		return
	}

	o.result = &result
	if result.Matched {
		o.setStateLocked(id, types.StateResolved)
	} else {
		o.setStateLocked(id, types.StateNoMatch)
	}
	o.events.Publish(Event{Attempt: id, Type: EventTypeResult, Result: &result})
	o.mu.Unlock()

	if result.Matched {
		if err := o.seeker.SeekAndPlay(result.VideoURL, result.Timestamp); err != nil {
			log.Printf("Pipeline: seek failed (match already resolved): %v", err)
		}
	}
}

// fail publishes a classified terminal failure for the attempt
func (o *Orchestrator) fail(id uint64, failure Failure) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if id != o.attempt {
		log.Printf("Pipeline: discarding stale failure for attempt %d (%s)", id, failure.Code)
		return
	}

	o.failure = &failure
	o.setStateLocked(id, types.StateFailed)
	o.events.Publish(Event{Attempt: id, Type: EventTypeFailure, Failure: &failure, Message: failure.Message})
	log.Printf("Pipeline: attempt %d failed (%s): %s", id, failure.Code, failure.Message)
}

// setStateLocked applies a validated transition. Callers hold o.mu.
func (o *Orchestrator) setStateLocked(id uint64, state string) {
	if !isValidTransition(o.state, state) {
		log.Printf("Pipeline: invalid transition %s -> %s (attempt %d)", o.state, state, id)
		return
	}
	o.state = state
	o.events.Publish(Event{Attempt: id, Type: EventTypeState, State: state})
}

// State returns the current pipeline state
func (o *Orchestrator) State() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Attempt returns the current attempt id
func (o *Orchestrator) Attempt() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attempt
}

// Transcript returns the current attempt's audio transcript, if any
func (o *Orchestrator) Transcript() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transcript
}

// Result returns the published match result, if the attempt resolved
func (o *Orchestrator) Result() (types.MatchResult, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.result == nil {
		return types.MatchResult{}, false
	}
	return *o.result, true
}

// Failure returns the published failure, if the attempt failed
func (o *Orchestrator) Failure() (Failure, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failure == nil {
		return Failure{}, false
	}
	return *o.failure, true
}

// Events exposes the bus for incremental UI reads
func (o *Orchestrator) Events() *EventBus {
	return o.events
}

// isValidTransition enforces the one-directional attempt state machine.
// Terminal states only restart through a new recording.
func isValidTransition(from, to string) bool {
	switch from {
	case types.StateIdle:
		return to == types.StateRecording
	case types.StateRecording:
		return to == types.StateTranscribing || to == types.StateFailed || to == types.StateIdle || to == types.StateRecording
	case types.StateTranscribing:
		return to == types.StateMatching || to == types.StateFailed || to == types.StateRecording
	case types.StateMatching:
		return to == types.StateResolved || to == types.StateNoMatch || to == types.StateFailed || to == types.StateRecording
	case types.StateResolved, types.StateNoMatch, types.StateFailed:
		return to == types.StateRecording || to == types.StateIdle
	default:
		return false
	}
}
