package handlers

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/promptly-ai/videoseek/internal/ingest"
)

// YouTubeHandler ingests YouTube videos into the library
type YouTubeHandler struct {
	workerPool *ingest.WorkerPool
	tempDir    string
}

// NewYouTubeHandler creates a YouTube ingestion handler
func NewYouTubeHandler(workerPool *ingest.WorkerPool, tempDir string) *YouTubeHandler {
	return &YouTubeHandler{
		workerPool: workerPool,
		tempDir:    tempDir,
	}
}

// YouTubeRequest represents the request body
type YouTubeRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// Handle starts capture and ingestion of a YouTube video
func (h *YouTubeHandler) Handle(c *fiber.Ctx) error {
	var req YouTubeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
			"code":  "ERR_INVALID_BODY",
		})
	}

	if req.URL == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "URL is required",
			"code":  "ERR_NO_URL",
		})
	}

	jobID := uuid.New().String()
	tempPath := filepath.Join(h.tempDir, fmt.Sprintf("%s.opus", jobID))

	// Capture runs in the background; long videos take a while
	go func() {
		title := req.Name
		if title == "" {
			fetched, err := ingest.FetchYouTubeTitle(context.Background(), req.URL)
			if err != nil {
				log.Printf("Failed to read YouTube title, using fallback: %v", err)
				fetched = "youtube_video"
			}
			title = fetched
		}

		if err := ingest.DownloadYouTubeAudio(req.URL, tempPath); err != nil {
			log.Printf("Failed to capture YouTube audio: %v", err)
			return
		}

		job := ingest.NewJob(jobID, title, ingest.SourceYouTube, tempPath)
		h.workerPool.EnqueueJob(job)
	}()

	return c.JSON(fiber.Map{
		"job_id":  jobID,
		"status":  "capturing",
		"message": "YouTube capture started (this may take a few minutes for long videos)",
	})
}
