package pipeline

// EventPlayer drives the browser's video element by publishing seek
// commands onto the event bus. The actual element lives on the client;
// autoplay rejection is handled there and never reported back as an error.
type EventPlayer struct {
	events *EventBus
}

// NewEventPlayer creates a player that emits seek events
func NewEventPlayer(events *EventBus) *EventPlayer {
	return &EventPlayer{events: events}
}

// SetPosition publishes the target offset for the video
func (p *EventPlayer) SetPosition(videoURL string, seconds int) error {
	p.events.Publish(Event{
		Type:     EventTypeSeek,
		VideoURL: videoURL,
		Seconds:  seconds,
	})
	return nil
}

// Play is a no-op server side; the seek event already instructs the
// client to start playback from the published offset
func (p *EventPlayer) Play(videoURL string) error {
	return nil
}
