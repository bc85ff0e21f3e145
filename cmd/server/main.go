package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"gopkg.in/yaml.v3"

	"github.com/promptly-ai/videoseek/internal/cleanup"
	"github.com/promptly-ai/videoseek/internal/handlers"
	"github.com/promptly-ai/videoseek/internal/ingest"
	"github.com/promptly-ai/videoseek/internal/library"
	"github.com/promptly-ai/videoseek/internal/match"
	"github.com/promptly-ai/videoseek/internal/pipeline"
	"github.com/promptly-ai/videoseek/internal/playback"
	"github.com/promptly-ai/videoseek/internal/speech"
	"github.com/promptly-ai/videoseek/internal/storage"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	Speech struct {
		BaseURL         string `yaml:"base_url"`
		APIKey          string `yaml:"api_key"`
		Language        string `yaml:"language"`
		PollIntervalMS  int    `yaml:"poll_interval_ms"`
		PollMaxAttempts int    `yaml:"poll_max_attempts"`
	} `yaml:"speech"`

	Gemini struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
		Model   string `yaml:"model"`
	} `yaml:"gemini"`

	Workers struct {
		Count           int `yaml:"count"`
		PollIntervalMS  int `yaml:"poll_interval_ms"`
		PollMaxAttempts int `yaml:"poll_max_attempts"`
	} `yaml:"workers"`

	Storage struct {
		TempDir  string `yaml:"temp_dir"`
		Database string `yaml:"database"`
	} `yaml:"storage"`

	GoogleDrive struct {
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		FolderName      string `yaml:"folder_name"`
	} `yaml:"google_drive"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes"`
		MaxAgeHours     int `yaml:"max_age_hours"`
	} `yaml:"cleanup"`

	Limits struct {
		MaxFileSizeMB  int `yaml:"max_file_size_mb"`
		MaxAudioSizeMB int `yaml:"max_audio_size_mb"`
	} `yaml:"limits"`
}

func main() {
	// Load configuration
	config, err := loadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ensure directories exist
	if err := cleanup.EnsureTempDirExists(config.Storage.TempDir); err != nil {
		log.Fatalf("Failed to create temp directory: %v", err)
	}

	// Custom logger setup
	logBuffer := &LogBuffer{
		lines: make([]string, 0, 1000),
	}
	multiWriter := io.MultiWriter(os.Stdout, logBuffer)
	log.SetOutput(multiWriter)

	// Initialize components
	log.Println("Initializing components...")

	// Speech-to-text client and pollers
	speechClient := speech.NewClient(config.Speech.BaseURL, config.Speech.APIKey, config.Speech.Language)
	askPoller := speech.NewPoller(speechClient, pollConfig(config.Speech.PollIntervalMS, config.Speech.PollMaxAttempts, speech.DefaultPollConfig()))
	ingestPoller := speech.NewPoller(speechClient, pollConfig(config.Workers.PollIntervalMS, config.Workers.PollMaxAttempts, speech.PollConfig{
		Interval:    3 * time.Second,
		MaxAttempts: 200,
	}))

	// Transcript library
	store, err := library.NewStore(config.Storage.Database)
	if err != nil {
		log.Fatalf("Failed to initialize library: %v", err)
	}
	defer store.Close()

	// Google Drive client (optional - may fail if credentials not set up)
	var driveClient *storage.DriveClient
	var uploader ingest.Uploader
	if _, err := os.Stat(config.GoogleDrive.CredentialsFile); err == nil {
		driveClient, err = storage.NewDriveClient(
			config.GoogleDrive.CredentialsFile,
			config.GoogleDrive.TokenFile,
			config.GoogleDrive.FolderName,
		)
		if err != nil {
			log.Printf("WARNING: Google Drive not available: %v", err)
			log.Println("Videos will be hosted by the speech service only")
		} else {
			log.Println("Google Drive storage enabled")
			uploader = driveClient
		}
	} else {
		log.Println("Google Drive credentials not found - videos hosted by the speech service")
	}

	// Ingestion worker pool
	workerPool := ingest.NewWorkerPool(
		config.Workers.Count,
		uploader,
		speechClient,
		ingestPoller,
		store,
	)
	workerPool.Start()

	// Match pipeline
	events := pipeline.NewEventBus(500)
	player := pipeline.NewEventPlayer(events)
	synchronizer := playback.NewSynchronizer(player)
	gemini := match.NewGeminiMatcher(config.Gemini.BaseURL, config.Gemini.APIKey, config.Gemini.Model)
	matcher := match.NewMatcher(gemini)
	orchestrator := pipeline.NewOrchestrator(askPoller, matcher, store, synchronizer, events)

	// Cleanup scheduler
	cleanupScheduler := cleanup.NewScheduler(
		config.Storage.TempDir,
		config.Cleanup.IntervalMinutes,
		config.Cleanup.MaxAgeHours,
	)
	cleanupScheduler.Start()
	defer cleanupScheduler.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: config.Limits.MaxFileSizeMB * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	// Initialize handlers
	askHandler := handlers.NewAskHandler(orchestrator, config.Limits.MaxAudioSizeMB)
	captureHandler := handlers.NewCaptureHandler(orchestrator)
	videosHandler := handlers.NewVideosHandler(workerPool, config.Storage.TempDir, config.Limits.MaxFileSizeMB)
	youtubeHandler := handlers.NewYouTubeHandler(workerPool, config.Storage.TempDir)

	// Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	app.Post("/ask", askHandler.Handle)
	app.Post("/videos", videosHandler.Handle)
	app.Post("/videos/youtube", youtubeHandler.Handle)

	// WebSocket capture session
	app.Get("/ws/capture", websocket.New(captureHandler.Handle))

	// Pipeline state for polling UIs
	app.Get("/pipeline/state", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"attempt": orchestrator.Attempt(),
			"state":   orchestrator.State(),
		})
	})

	// Latest resolved result or failure
	app.Get("/pipeline/result", func(c *fiber.Ctx) error {
		if result, ok := orchestrator.Result(); ok {
			return c.JSON(fiber.Map{
				"state":  orchestrator.State(),
				"result": result,
			})
		}
		if failure, ok := orchestrator.Failure(); ok {
			return c.JSON(fiber.Map{
				"state":   orchestrator.State(),
				"failure": failure,
			})
		}
		return c.Status(404).JSON(fiber.Map{"error": "No result yet"})
	})

	// Incremental event reads
	app.Get("/pipeline/events", func(c *fiber.Ctx) error {
		since := int64(c.QueryInt("since", 0))
		return c.JSON(fiber.Map{
			"events": orchestrator.Events().Since(since),
		})
	})

	// Video library listing
	app.Get("/videos", func(c *fiber.Ctx) error {
		videos, err := store.List(c.Context(), 50)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(videos)
	})

	// Server logs
	app.Get("/logs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"logs": logBuffer.GetLogs(),
		})
	})

	// Start server
	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	log.Printf("Server starting on %s", addr)
	log.Println("Endpoints:")
	log.Println("   POST /ask              - Ask a recorded question")
	log.Println("   GET  /ws/capture       - WebSocket recording session")
	log.Println("   GET  /pipeline/state   - Current pipeline state")
	log.Println("   GET  /pipeline/result  - Latest match result")
	log.Println("   GET  /pipeline/events  - Incremental pipeline events")
	log.Println("   POST /videos           - Upload a library video")
	log.Println("   POST /videos/youtube   - Ingest a YouTube video")
	log.Println("   GET  /videos           - List library videos")
	log.Println("   GET  /logs             - View server logs")
	log.Println("   GET  /health           - Health check")

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down gracefully...")
		app.Shutdown()
	}()

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// pollConfig builds a PollConfig from config values, falling back to the
// given defaults for unset fields
func pollConfig(intervalMS, maxAttempts int, defaults speech.PollConfig) speech.PollConfig {
	cfg := defaults
	if intervalMS > 0 {
		cfg.Interval = time.Duration(intervalMS) * time.Millisecond
	}
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	return cfg
}

// LogBuffer captures logs in memory
type LogBuffer struct {
	lines []string
	mu    sync.Mutex
}

func (lb *LogBuffer) Write(p []byte) (n int, err error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.lines = append(lb.lines, string(p))

	// Keep last 1000 lines
	if len(lb.lines) > 1000 {
		lb.lines = lb.lines[len(lb.lines)-1000:]
	}

	return len(p), nil
}

func (lb *LogBuffer) GetLogs() []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	logs := make([]string, len(lb.lines))
	copy(logs, lb.lines)
	return logs
}

// loadConfig loads configuration from YAML file
func loadConfig(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
