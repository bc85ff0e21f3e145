package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/promptly-ai/videoseek/internal/match"
	"github.com/promptly-ai/videoseek/internal/speech"
	"github.com/promptly-ai/videoseek/internal/types"
)

// gatedTranscriber blocks each Transcribe call until the test releases it
type gatedTranscriber struct {
	mu    sync.Mutex
	gates []chan types.TranscriptOutcome
	errs  []error
}

func (g *gatedTranscriber) Transcribe(ctx context.Context, audio []byte) (types.TranscriptOutcome, error) {
	g.mu.Lock()
	gate := make(chan types.TranscriptOutcome, 1)
	g.gates = append(g.gates, gate)
	idx := len(g.gates) - 1
	g.mu.Unlock()

	outcome := <-gate
	g.mu.Lock()
	defer g.mu.Unlock()
	if idx < len(g.errs) && g.errs[idx] != nil {
		return types.TranscriptOutcome{}, g.errs[idx]
	}
	return outcome, nil
}

func (g *gatedTranscriber) release(call int, outcome types.TranscriptOutcome) {
	g.mu.Lock()
	gate := g.gates[call]
	g.mu.Unlock()
	gate <- outcome
}

func (g *gatedTranscriber) waitForCall(t *testing.T, call int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		g.mu.Lock()
		n := len(g.gates)
		g.mu.Unlock()
		if n > call {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("transcriber call %d never arrived", call)
}

// instantTranscriber completes immediately with a fixed outcome
type instantTranscriber struct {
	outcome types.TranscriptOutcome
	err     error
}

func (i *instantTranscriber) Transcribe(ctx context.Context, audio []byte) (types.TranscriptOutcome, error) {
	return i.outcome, i.err
}

// mapMatcher resolves matches by audio transcript text
type mapMatcher struct {
	byTranscript map[string]types.MatchResult
}

func (m *mapMatcher) FindMatch(ctx context.Context, audioTranscript string, candidates []types.VideoTranscriptRecord) (types.MatchResult, error) {
	if len(candidates) == 0 {
		return types.MatchResult{}, match.ErrNoCandidates
	}
	return m.byTranscript[audioTranscript], nil
}

// staticLibrary returns a fixed snapshot
type staticLibrary struct {
	records []types.VideoTranscriptRecord
	err     error
}

func (l *staticLibrary) Snapshot(ctx context.Context) ([]types.VideoTranscriptRecord, error) {
	return l.records, l.err
}

// recordingSeeker records seek calls
type recordingSeeker struct {
	mu     sync.Mutex
	seeks  []string
	resets int
}

func (r *recordingSeeker) SeekAndPlay(videoURL, timestamp string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seeks = append(r.seeks, videoURL+"@"+timestamp)
	return nil
}

func (r *recordingSeeker) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets++
}

func (r *recordingSeeker) seekCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seeks)
}

func waitForState(t *testing.T, o *Orchestrator, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if o.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state = %s, never reached %s", o.State(), want)
}

func libraryOf(urls ...string) *staticLibrary {
	records := make([]types.VideoTranscriptRecord, len(urls))
	for i, u := range urls {
		records[i] = types.VideoTranscriptRecord{VideoURL: u, Transcript: "transcript " + u}
	}
	return &staticLibrary{records: records}
}

// TestPipelineResolvesMatch runs the full happy path: completed transcript,
// matched candidate, seek issued.
func TestPipelineResolvesMatch(t *testing.T) {
	seeker := &recordingSeeker{}
	o := NewOrchestrator(
		&instantTranscriber{outcome: types.TranscriptOutcome{Status: types.StatusCompleted, Text: "what is osmosis"}},
		&mapMatcher{byTranscript: map[string]types.MatchResult{
			"what is osmosis": {Matched: true, VideoURL: "v2", Timestamp: "02:15", TimestampSeconds: 135},
		}},
		libraryOf("v1", "v2"),
		seeker,
		NewEventBus(100),
	)

	o.StartCapture()
	if _, err := o.StopCapture(context.Background(), []byte("audio")); err != nil {
		t.Fatalf("stop capture: %v", err)
	}

	waitForState(t, o, types.StateResolved)

	result, ok := o.Result()
	if !ok || !result.Matched {
		t.Fatalf("result = %+v, ok = %v", result, ok)
	}
	if result.VideoURL != "v2" || result.TimestampSeconds != 135 {
		t.Fatalf("result = %+v, want v2 at 135s", result)
	}
	if seeker.seekCount() != 1 {
		t.Fatalf("seeks = %d, want 1", seeker.seekCount())
	}
}

// TestPipelineNoMatch verifies the all-rejected scan resolves to the
// distinct no-match state and never seeks the player.
func TestPipelineNoMatch(t *testing.T) {
	seeker := &recordingSeeker{}
	o := NewOrchestrator(
		&instantTranscriber{outcome: types.TranscriptOutcome{Status: types.StatusCompleted, Text: "unrelated"}},
		&mapMatcher{byTranscript: map[string]types.MatchResult{}},
		libraryOf("v1"),
		seeker,
		NewEventBus(100),
	)

	o.StartCapture()
	if _, err := o.StopCapture(context.Background(), []byte("audio")); err != nil {
		t.Fatalf("stop capture: %v", err)
	}

	waitForState(t, o, types.StateNoMatch)

	result, ok := o.Result()
	if !ok || result.Matched {
		t.Fatalf("result = %+v, want unmatched", result)
	}
	if seeker.seekCount() != 0 {
		t.Fatal("no-match must not seek the player")
	}
}

// TestPipelineStaleResultSuppressed starts attempt B while A is mid-flight
// and verifies the published outcome reflects only B.
func TestPipelineStaleResultSuppressed(t *testing.T) {
	transcriber := &gatedTranscriber{}
	seeker := &recordingSeeker{}
	o := NewOrchestrator(
		transcriber,
		&mapMatcher{byTranscript: map[string]types.MatchResult{
			"question a": {Matched: true, VideoURL: "va", Timestamp: "01:00", TimestampSeconds: 60},
			"question b": {Matched: true, VideoURL: "vb", Timestamp: "02:00", TimestampSeconds: 120},
		}},
		libraryOf("va", "vb"),
		seeker,
		NewEventBus(100),
	)
	ctx := context.Background()

	o.StartCapture()
	if _, err := o.StopCapture(ctx, []byte("a")); err != nil {
		t.Fatalf("stop A: %v", err)
	}
	transcriber.waitForCall(t, 0)

	// Attempt B supersedes A before A's transcript arrives
	o.StartCapture()
	if _, err := o.StopCapture(ctx, []byte("b")); err != nil {
		t.Fatalf("stop B: %v", err)
	}
	transcriber.waitForCall(t, 1)

	transcriber.release(1, types.TranscriptOutcome{Status: types.StatusCompleted, Text: "question b"})
	waitForState(t, o, types.StateResolved)

	// A resolves late; its outcome must be discarded
	transcriber.release(0, types.TranscriptOutcome{Status: types.StatusCompleted, Text: "question a"})
	time.Sleep(20 * time.Millisecond)

	result, ok := o.Result()
	if !ok || result.VideoURL != "vb" {
		t.Fatalf("result = %+v, want vb (attempt B only)", result)
	}
	if o.State() != types.StateResolved {
		t.Fatalf("state = %s, want resolved", o.State())
	}
	if seeker.seekCount() != 1 {
		t.Fatalf("seeks = %d, want 1 (stale attempt must not seek)", seeker.seekCount())
	}
}

// TestPipelineStillProcessingIsRecoverableFailure verifies the poll
// ceiling surfaces as a failed state carrying the job id.
func TestPipelineStillProcessingIsRecoverableFailure(t *testing.T) {
	o := NewOrchestrator(
		&instantTranscriber{outcome: types.TranscriptOutcome{Status: types.StatusProcessing, JobID: "job-7"}},
		&mapMatcher{},
		libraryOf("v1"),
		&recordingSeeker{},
		NewEventBus(100),
	)

	o.StartCapture()
	if _, err := o.StopCapture(context.Background(), []byte("audio")); err != nil {
		t.Fatalf("stop capture: %v", err)
	}

	waitForState(t, o, types.StateFailed)

	failure, ok := o.Failure()
	if !ok || failure.Code != FailStillProcessing {
		t.Fatalf("failure = %+v, want still_processing", failure)
	}
	if failure.JobID != "job-7" {
		t.Fatalf("job id = %q, want job-7", failure.JobID)
	}
	if !failure.Recoverable() {
		t.Fatal("still_processing must be recoverable")
	}
}

// TestPipelineClassifiesTranscriptionFailure verifies service-declared
// failures map to the terminal transcription_failed code.
func TestPipelineClassifiesTranscriptionFailure(t *testing.T) {
	o := NewOrchestrator(
		&instantTranscriber{err: speech.ErrTranscriptionFailed},
		&mapMatcher{},
		libraryOf("v1"),
		&recordingSeeker{},
		NewEventBus(100),
	)

	o.StartCapture()
	if _, err := o.StopCapture(context.Background(), []byte("audio")); err != nil {
		t.Fatalf("stop capture: %v", err)
	}

	waitForState(t, o, types.StateFailed)

	failure, _ := o.Failure()
	if failure.Code != FailTranscription {
		t.Fatalf("code = %s, want transcription_failed", failure.Code)
	}
	if failure.Recoverable() {
		t.Fatal("transcription_failed is terminal, not recoverable")
	}
}

// TestPipelineEmptyLibraryFailure verifies the empty-library case is its
// own failure, distinct from no-match.
func TestPipelineEmptyLibraryFailure(t *testing.T) {
	o := NewOrchestrator(
		&instantTranscriber{outcome: types.TranscriptOutcome{Status: types.StatusCompleted, Text: "question"}},
		&mapMatcher{},
		&staticLibrary{},
		&recordingSeeker{},
		NewEventBus(100),
	)

	o.StartCapture()
	if _, err := o.StopCapture(context.Background(), []byte("audio")); err != nil {
		t.Fatalf("stop capture: %v", err)
	}

	waitForState(t, o, types.StateFailed)

	failure, _ := o.Failure()
	if failure.Code != FailNoCandidates {
		t.Fatalf("code = %s, want no_candidates", failure.Code)
	}
}

// TestPipelineStopWithoutStart verifies StopCapture requires a recording
func TestPipelineStopWithoutStart(t *testing.T) {
	o := NewOrchestrator(&instantTranscriber{}, &mapMatcher{}, &staticLibrary{}, &recordingSeeker{}, NewEventBus(100))

	if _, err := o.StopCapture(context.Background(), []byte("audio")); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("err = %v, want ErrNotRecording", err)
	}
}

// TestPipelineAbortBeforeSubmit verifies aborting a recording leaves no
// side effects and returns to idle.
func TestPipelineAbortBeforeSubmit(t *testing.T) {
	o := NewOrchestrator(&instantTranscriber{}, &mapMatcher{}, &staticLibrary{}, &recordingSeeker{}, NewEventBus(100))

	o.StartCapture()
	o.Abort()

	if o.State() != types.StateIdle {
		t.Fatalf("state = %s, want idle", o.State())
	}
	if _, ok := o.Result(); ok {
		t.Fatal("aborted attempt must publish no result")
	}
}

// TestPipelineEmptyAudioFails verifies a zero-byte capture fails fast with
// a recoverable message.
func TestPipelineEmptyAudioFails(t *testing.T) {
	o := NewOrchestrator(&instantTranscriber{}, &mapMatcher{}, &staticLibrary{}, &recordingSeeker{}, NewEventBus(100))

	o.StartCapture()
	if _, err := o.StopCapture(context.Background(), nil); err != nil {
		t.Fatalf("stop capture: %v", err)
	}

	waitForState(t, o, types.StateFailed)
	failure, _ := o.Failure()
	if failure.Code != FailEmptyTranscript {
		t.Fatalf("code = %s, want empty_transcript", failure.Code)
	}
}

// TestPipelineEventsSequence verifies subscribers can replay the attempt's
// transitions incrementally.
func TestPipelineEventsSequence(t *testing.T) {
	bus := NewEventBus(100)
	o := NewOrchestrator(
		&instantTranscriber{outcome: types.TranscriptOutcome{Status: types.StatusCompleted, Text: "what is osmosis"}},
		&mapMatcher{byTranscript: map[string]types.MatchResult{
			"what is osmosis": {Matched: true, VideoURL: "v2", Timestamp: "02:15", TimestampSeconds: 135},
		}},
		libraryOf("v1", "v2"),
		&recordingSeeker{},
		bus,
	)

	o.StartCapture()
	if _, err := o.StopCapture(context.Background(), []byte("audio")); err != nil {
		t.Fatalf("stop capture: %v", err)
	}
	waitForState(t, o, types.StateResolved)

	var states []string
	var sawResult bool
	for _, ev := range bus.Since(0) {
		switch ev.Type {
		case EventTypeState:
			states = append(states, ev.State)
		case EventTypeResult:
			sawResult = true
		}
	}

	want := []string{types.StateRecording, types.StateTranscribing, types.StateMatching, types.StateResolved}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("states = %v, want %v", states, want)
		}
	}
	if !sawResult {
		t.Fatal("expected a result event")
	}
}
