package match

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strings"

	"github.com/promptly-ai/videoseek/internal/playback"
	"github.com/promptly-ai/videoseek/internal/types"
)

// ErrNoCandidates means the library snapshot was empty. Distinct from a
// full scan that found no match.
var ErrNoCandidates = errors.New("no video transcripts to search")

// noMatchMarker is the literal the model is instructed to return for misses
const noMatchMarker = "No match"

// timestampPattern extracts the first MM:SS-shaped substring from model output
var timestampPattern = regexp.MustCompile(`\d+:\d+`)

// TextMatcher decides whether an audio transcript appears in a video
// transcript, answering with free text to be parsed by the caller
type TextMatcher interface {
	MatchTimestamp(ctx context.Context, audioTranscript, videoTranscript string) (string, error)
}

// Matcher scans library candidates in snapshot order and stops at the
// first one the text matcher places the audio transcript in
type Matcher struct {
	textMatcher TextMatcher
}

// NewMatcher creates a candidate matcher
func NewMatcher(textMatcher TextMatcher) *Matcher {
	return &Matcher{textMatcher: textMatcher}
}

// FindMatch evaluates candidates in order, one text-matcher call each,
// short-circuiting on the first extracted timestamp. Per-candidate service
// errors and ambiguous outputs reject that candidate only; the scan
// continues. Snapshot order decides which video wins when several could
// match.
func (m *Matcher) FindMatch(ctx context.Context, audioTranscript string, candidates []types.VideoTranscriptRecord) (types.MatchResult, error) {
	if len(candidates) == 0 {
		return types.MatchResult{}, ErrNoCandidates
	}

	for _, record := range candidates {
		candidate, ok := m.evaluate(ctx, audioTranscript, record)
		if !ok {
			continue
		}

		seconds, err := playback.ParseTimestamp(candidate.Timestamp)
		if err != nil {
			// Extraction produced a malformed pair; treat as ambiguous
			log.Printf("Matcher: discarding unparseable timestamp %q for %s", candidate.Timestamp, candidate.VideoURL)
			continue
		}

		// URL and timestamp come from the same candidate, never recombined
		return types.MatchResult{
			Matched:          true,
			VideoURL:         candidate.VideoURL,
			Timestamp:        candidate.Timestamp,
			TimestampSeconds: seconds,
		}, nil
	}

	return types.MatchResult{Matched: false}, nil
}

// evaluate runs one text-matcher call and parses its free-text output
func (m *Matcher) evaluate(ctx context.Context, audioTranscript string, record types.VideoTranscriptRecord) (types.MatchCandidate, bool) {
	output, err := m.textMatcher.MatchTimestamp(ctx, audioTranscript, record.Transcript)
	if err != nil {
		log.Printf("Matcher: candidate %s rejected (service error: %v)", record.VideoURL, err)
		return types.MatchCandidate{}, false
	}

	candidate := types.MatchCandidate{
		VideoURL:       record.VideoURL,
		RawModelOutput: output,
	}

	if strings.Contains(output, noMatchMarker) {
		return candidate, false
	}

	timestamp := timestampPattern.FindString(output)
	if timestamp == "" {
		// Model asserted a match but gave nothing usable; soft reject
		log.Printf("Matcher: ambiguous output for %s: %q", record.VideoURL, output)
		return candidate, false
	}

	candidate.Timestamp = timestamp
	return candidate, true
}
