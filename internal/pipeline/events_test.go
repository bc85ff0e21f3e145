package pipeline

import "testing"

// TestEventBusSince verifies incremental reads by sequence
func TestEventBusSince(t *testing.T) {
	bus := NewEventBus(10)
	bus.Publish(Event{Type: EventTypeState, State: "recording"})
	bus.Publish(Event{Type: EventTypeState, State: "transcribing"})
	bus.Publish(Event{Type: EventTypeState, State: "matching"})

	events := bus.Since(1)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Seq != 2 || events[1].Seq != 3 {
		t.Fatalf("unexpected seqs: %+v", events)
	}
}

// TestEventBusCapsHistory verifies old events are trimmed at capacity
func TestEventBusCapsHistory(t *testing.T) {
	bus := NewEventBus(2)
	bus.Publish(Event{Message: "1"})
	bus.Publish(Event{Message: "2"})
	bus.Publish(Event{Message: "3"})

	events := bus.Since(0)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Message != "2" || events[1].Message != "3" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

// TestEventPlayerPublishesSeek verifies seek commands reach subscribers
func TestEventPlayerPublishesSeek(t *testing.T) {
	bus := NewEventBus(10)
	player := NewEventPlayer(bus)

	if err := player.SetPosition("https://videos.example/v2", 135); err != nil {
		t.Fatalf("set position: %v", err)
	}
	if err := player.Play("https://videos.example/v2"); err != nil {
		t.Fatalf("play: %v", err)
	}

	events := bus.Since(0)
	if len(events) != 1 {
		t.Fatalf("len = %d, want 1 seek event", len(events))
	}
	if events[0].Type != EventTypeSeek || events[0].Seconds != 135 {
		t.Fatalf("event = %+v", events[0])
	}
}
