package playback

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
)

// ErrInvalidTimestamp means a timestamp string was not in MM:SS form
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// ErrPlaybackBlocked is returned by players when playback cannot start
// without a user gesture. It is advisory: the seek already happened.
var ErrPlaybackBlocked = errors.New("playback blocked pending user interaction")

// Player is the video playback surface the synchronizer drives
type Player interface {
	SetPosition(videoURL string, seconds int) error
	Play(videoURL string) error
}

// ParseTimestamp converts an "MM:SS" string to a second offset
func ParseTimestamp(timestamp string) (int, error) {
	parts := strings.Split(strings.TrimSpace(timestamp), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, timestamp)
	}

	minutes, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, timestamp)
	}
	seconds, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, timestamp)
	}
	if minutes < 0 || seconds < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, timestamp)
	}

	return minutes*60 + seconds, nil
}

// Synchronizer converts a resolved match into player commands. Repeated
// calls with the same target are deduplicated so the player is not
// re-seeked on every state republish.
type Synchronizer struct {
	player Player

	mu       sync.Mutex
	lastURL  string
	lastSecs int
	seeked   bool
}

// NewSynchronizer creates a playback synchronizer over a player
func NewSynchronizer(player Player) *Synchronizer {
	return &Synchronizer{player: player}
}

// SeekAndPlay parses the timestamp, seeks the player, and requests
// playback. A blocked autoplay is logged as advisory and never escalated;
// the match itself already succeeded.
func (s *Synchronizer) SeekAndPlay(videoURL, timestamp string) error {
	seconds, err := ParseTimestamp(timestamp)
	if err != nil {
		log.Printf("Playback: %v", err)
		return err
	}

	s.mu.Lock()
	if s.seeked && s.lastURL == videoURL && s.lastSecs == seconds {
		s.mu.Unlock()
		return nil
	}
	s.lastURL = videoURL
	s.lastSecs = seconds
	s.seeked = true
	s.mu.Unlock()

	if err := s.player.SetPosition(videoURL, seconds); err != nil {
		log.Printf("Playback: seek failed for %s: %v", videoURL, err)
		return err
	}

	if err := s.player.Play(videoURL); err != nil {
		if errors.Is(err, ErrPlaybackBlocked) {
			log.Printf("Playback: autoplay blocked for %s, waiting for user interaction", videoURL)
			return nil
		}
		log.Printf("Playback: play failed for %s: %v", videoURL, err)
		return err
	}

	log.Printf("Playback: %s playing from %ds", videoURL, seconds)
	return nil
}

// Reset clears the dedup memory so the next resolved match always seeks
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seeked = false
	s.lastURL = ""
	s.lastSecs = 0
}
