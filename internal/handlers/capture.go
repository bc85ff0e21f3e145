package handlers

import (
	"bytes"
	"context"
	"log"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/promptly-ai/videoseek/internal/pipeline"
	"github.com/promptly-ai/videoseek/internal/types"
)

// CaptureHandler runs an interactive recording session over WebSocket.
// Text frames carry control messages (START, END, ABORT); binary frames
// carry the microphone audio. After END the pipeline's events for the
// session's attempt stream back until a terminal state.
type CaptureHandler struct {
	orchestrator *pipeline.Orchestrator
}

// NewCaptureHandler creates a capture session handler
func NewCaptureHandler(orchestrator *pipeline.Orchestrator) *CaptureHandler {
	return &CaptureHandler{
		orchestrator: orchestrator,
	}
}

// Handle processes one capture session connection
func (h *CaptureHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	var (
		buffer    bytes.Buffer
		started   bool
		attempt   uint64
		sessionID = uuid.New().String()
	)

	log.Printf("Capture session established: %s", sessionID)

	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			log.Printf("Capture session %s read error: %v", sessionID, err)
			// Disconnect before END aborts cleanly with no side effects
			if started {
				h.orchestrator.Abort()
			}
			return
		}

		if messageType == websocket.TextMessage {
			switch string(message) {
			case "START":
				attempt = h.orchestrator.StartCapture()
				started = true
				buffer.Reset()
			case "ABORT":
				if started {
					h.orchestrator.Abort()
					started = false
					buffer.Reset()
				}
			case "END":
				if !started {
					c.WriteJSON(map[string]string{"error": "no recording started"})
					return
				}
				h.finish(c, sessionID, attempt, buffer.Bytes())
				return
			}
			continue
		}

		if messageType == websocket.BinaryMessage && started {
			buffer.Write(message)
		}
	}
}

// finish hands the buffered audio to the pipeline and streams the
// attempt's events back until it reaches a terminal state
func (h *CaptureHandler) finish(c *websocket.Conn, sessionID string, attempt uint64, audio []byte) {
	log.Printf("Capture session %s finalized (%d bytes)", sessionID, len(audio))

	if _, err := h.orchestrator.StopCapture(context.Background(), audio); err != nil {
		c.WriteJSON(map[string]string{"error": err.Error()})
		return
	}

	deadline := time.Now().Add(2 * time.Minute)
	var seq int64

	for time.Now().Before(deadline) {
		terminal := false
		for _, ev := range h.orchestrator.Events().Since(seq) {
			seq = ev.Seq
			if ev.Attempt != attempt {
				continue
			}
			if err := c.WriteJSON(ev); err != nil {
				log.Printf("Capture session %s write error: %v", sessionID, err)
				return
			}
			if ev.Type == pipeline.EventTypeState && isTerminalState(ev.State) {
				terminal = true
			}
		}
		if terminal {
			return
		}
		time.Sleep(200 * time.Millisecond)
	}

	log.Printf("Capture session %s timed out waiting for pipeline", sessionID)
}

// isTerminalState reports whether the pipeline stopped for this attempt
func isTerminalState(state string) bool {
	switch state {
	case types.StateResolved, types.StateNoMatch, types.StateFailed:
		return true
	default:
		return false
	}
}
