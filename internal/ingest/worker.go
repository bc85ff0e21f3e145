package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/promptly-ai/videoseek/internal/library"
	"github.com/promptly-ai/videoseek/internal/speech"
	"github.com/promptly-ai/videoseek/internal/types"
)

// Uploader stores a local video file durably and returns its public URL
type Uploader interface {
	UploadVideo(localPath, name string) (string, error)
}

// rawUploader pushes raw bytes to the speech service's own storage. Used
// as the fallback when no Drive client is configured.
type rawUploader interface {
	Upload(ctx context.Context, audio []byte) (string, error)
}

// WorkerPool ingests library videos in the background: durable upload,
// transcription, then persistence of the (url, transcript) pair
type WorkerPool struct {
	jobQueue    chan *Job
	workerCount int
	uploader    Uploader
	rawUpload   rawUploader
	poller      *speech.Poller
	store       *library.Store
}

// NewWorkerPool creates an ingestion worker pool. uploader may be nil;
// ingestion then falls back to speech-service hosting.
func NewWorkerPool(workerCount int, uploader Uploader, rawUpload rawUploader, poller *speech.Poller, store *library.Store) *WorkerPool {
	return &WorkerPool{
		jobQueue:    make(chan *Job, 100),
		workerCount: workerCount,
		uploader:    uploader,
		rawUpload:   rawUpload,
		poller:      poller,
		store:       store,
	}
}

// Start launches all workers
func (wp *WorkerPool) Start() {
	log.Printf("Starting ingest pool with %d workers", wp.workerCount)
	for i := 0; i < wp.workerCount; i++ {
		go wp.worker(i)
	}
}

// EnqueueJob adds a job to the queue
func (wp *WorkerPool) EnqueueJob(job *Job) {
	job.Status = types.StatusQueued
	job.CreatedAt = time.Now()
	wp.jobQueue <- job
	log.Printf("Ingest job %s enqueued (source: %s, title: %s)", job.ID, job.SourceType, job.Title)
}

// worker processes jobs from the queue
func (wp *WorkerPool) worker(id int) {
	log.Printf("Ingest worker %d started", id)

	for job := range wp.jobQueue {
		// Panic recovery
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("Ingest worker %d: PANIC processing job %s: %v\n%s",
						id, job.ID, r, string(debug.Stack()))
					job.Status = types.StatusError
					job.Error = fmt.Errorf("worker panic: %v", r)
					wp.cleanupTempFile(job.FilePath)
				}
			}()

			wp.processJob(id, job)
		}()
	}
}

// processJob runs one video through upload, transcription, and persistence
func (wp *WorkerPool) processJob(workerID int, job *Job) {
	log.Printf("Ingest worker %d: processing job %s", workerID, job.ID)
	job.Status = types.StatusProcessing
	ctx := context.Background()

	// Step 1: Durable upload (with retry), falling back to speech-hosted
	videoURL, err := wp.uploadDurable(ctx, workerID, job)
	if err != nil {
		log.Printf("Ingest worker %d: upload failed for job %s: %v", workerID, job.ID, err)
		job.Status = types.StatusError
		job.Error = fmt.Errorf("upload failed: %v", err)
		wp.cleanupTempFile(job.FilePath)
		return
	}
	job.VideoURL = videoURL

	// Step 2: Transcribe from the durable URL
	handle, err := wp.poller.SubmitURL(ctx, videoURL)
	if err != nil {
		log.Printf("Ingest worker %d: transcript submit failed for job %s: %v", workerID, job.ID, err)
		job.Status = types.StatusError
		job.Error = fmt.Errorf("transcription submit failed: %v", err)
		wp.cleanupTempFile(job.FilePath)
		return
	}

	outcome, err := wp.poller.AwaitResult(ctx, handle)
	if err != nil {
		log.Printf("Ingest worker %d: transcription failed for job %s: %v", workerID, job.ID, err)
		job.Status = types.StatusError
		job.Error = fmt.Errorf("transcription failed: %v", err)
		wp.cleanupTempFile(job.FilePath)
		return
	}
	if !outcome.Completed() {
		log.Printf("Ingest worker %d: job %s still processing after poll ceiling (transcript %s)",
			workerID, job.ID, outcome.JobID)
		job.Status = types.StatusError
		job.Error = fmt.Errorf("transcription did not finish (job %s)", outcome.JobID)
		wp.cleanupTempFile(job.FilePath)
		return
	}

	// Step 3: Persist to the library
	wordCount := len(strings.Fields(outcome.Text))
	if err := wp.store.Save(ctx, videoURL, job.Title, job.SourceType, outcome.Text, wordCount); err != nil {
		log.Printf("Ingest worker %d: library save failed for job %s: %v", workerID, job.ID, err)
		job.Status = types.StatusError
		job.Error = fmt.Errorf("library save failed: %v", err)
		wp.cleanupTempFile(job.FilePath)
		return
	}

	// Step 4: Cleanup
	wp.cleanupTempFile(job.FilePath)

	job.Status = types.StatusCompleted
	log.Printf("Ingest worker %d: job %s completed (%s, %d words)", workerID, job.ID, videoURL, wordCount)
}

// uploadDurable stores the video durably. Drive gets three attempts with
// squared backoff; without a Drive client the bytes go to the speech
// service's storage instead.
func (wp *WorkerPool) uploadDurable(ctx context.Context, workerID int, job *Job) (string, error) {
	if wp.uploader != nil {
		var videoURL string
		var err error
		for attempt := 1; attempt <= 3; attempt++ {
			videoURL, err = wp.uploader.UploadVideo(job.FilePath, job.Title)
			if err == nil {
				return videoURL, nil
			}
			log.Printf("Ingest worker %d: upload attempt %d/3 failed: %v", workerID, attempt, err)
			if attempt < 3 {
				time.Sleep(time.Duration(attempt*attempt) * time.Second)
			}
		}
		return "", err
	}

	data, err := os.ReadFile(job.FilePath)
	if err != nil {
		return "", fmt.Errorf("failed to read video file: %v", err)
	}
	return wp.rawUpload.Upload(ctx, data)
}

// cleanupTempFile removes a temporary file
func (wp *WorkerPool) cleanupTempFile(filePath string) {
	if filePath == "" {
		return
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to cleanup temp file %s: %v", filePath, err)
	}
}
