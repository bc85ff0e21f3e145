package handlers

import (
	"context"
	"io"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/promptly-ai/videoseek/internal/pipeline"
)

// AskHandler accepts a recorded audio question and runs the match pipeline
type AskHandler struct {
	orchestrator *pipeline.Orchestrator
	maxSizeMB    int
}

// NewAskHandler creates an ask handler
func NewAskHandler(orchestrator *pipeline.Orchestrator, maxSizeMB int) *AskHandler {
	return &AskHandler{
		orchestrator: orchestrator,
		maxSizeMB:    maxSizeMB,
	}
}

// Handle processes a one-shot audio question. The pipeline runs
// asynchronously; the caller follows progress via /pipeline endpoints.
func (h *AskHandler) Handle(c *fiber.Ctx) error {
	file, err := c.FormFile("audio")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "No audio uploaded",
			"code":  "ERR_NO_AUDIO",
		})
	}

	maxSize := int64(h.maxSizeMB) * 1024 * 1024
	if file.Size > maxSize {
		return c.Status(400).JSON(fiber.Map{
			"error": "Audio too large",
			"code":  "ERR_FILE_TOO_LARGE",
		})
	}

	f, err := file.Open()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to read audio",
			"code":  "ERR_READ_FAILED",
		})
	}
	defer f.Close()

	audio, err := io.ReadAll(f)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to read audio",
			"code":  "ERR_READ_FAILED",
		})
	}

	// The run outlives this request; don't tie it to the request context
	attempt := h.orchestrator.StartCapture()
	if _, err := h.orchestrator.StopCapture(context.Background(), audio); err != nil {
		log.Printf("Ask: stop capture failed: %v", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to start pipeline",
			"code":  "ERR_PIPELINE",
		})
	}

	return c.JSON(fiber.Map{
		"attempt": attempt,
		"state":   h.orchestrator.State(),
		"message": "Audio accepted, matching started",
	})
}
