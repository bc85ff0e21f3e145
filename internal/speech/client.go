package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/promptly-ai/videoseek/internal/types"
)

// ErrUpload means the speech service rejected the audio payload.
var ErrUpload = errors.New("speech service rejected audio upload")

// ErrServiceUnavailable means the speech service could not be reached.
var ErrServiceUnavailable = errors.New("speech service unavailable")

// Client talks to the speech-to-text service. The wire protocol is three
// calls: upload raw bytes, create a transcription job for the uploaded
// audio URL, then poll the job by id.
type Client struct {
	baseURL    string
	apiKey     string
	language   string
	httpClient *http.Client
}

// NewClient creates a speech-to-text client
func NewClient(baseURL, apiKey, language string) *Client {
	if language == "" {
		language = "en"
	}
	return &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		language: language,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type createTranscriptRequest struct {
	AudioURL     string `json:"audio_url"`
	LanguageCode string `json:"language_code"`
}

type transcriptResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

// Upload sends raw audio bytes and returns the durable audio URL
func (c *Client) Upload(ctx context.Context, audio []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: http %d: %s", ErrUpload, resp.StatusCode, string(body))
	}

	var ur uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %v", err)
	}
	if ur.UploadURL == "" {
		return "", fmt.Errorf("%w: empty upload URL", ErrUpload)
	}

	return ur.UploadURL, nil
}

// CreateTranscript requests a transcription job for an audio URL and
// returns the job id
func (c *Client) CreateTranscript(ctx context.Context, audioURL string) (string, error) {
	payload, err := json.Marshal(createTranscriptRequest{
		AudioURL:     audioURL,
		LanguageCode: c.language,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcript", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: transcript create http %d: %s", ErrUpload, resp.StatusCode, string(body))
	}

	var tr transcriptResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode transcript response: %v", err)
	}
	if tr.ID == "" {
		return "", fmt.Errorf("%w: transcript response missing id", ErrUpload)
	}

	return tr.ID, nil
}

// GetTranscript fetches the current status of a transcription job
func (c *Client) GetTranscript(ctx context.Context, jobID string) (types.TranscriptOutcome, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transcript/"+jobID, nil)
	if err != nil {
		return types.TranscriptOutcome{}, "", err
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.TranscriptOutcome{}, "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return types.TranscriptOutcome{}, "", fmt.Errorf("%w: poll http %d: %s", ErrServiceUnavailable, resp.StatusCode, string(body))
	}

	var tr transcriptResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return types.TranscriptOutcome{}, "", fmt.Errorf("failed to decode poll response: %v", err)
	}

	outcome := types.TranscriptOutcome{
		Status: tr.Status,
		Text:   tr.Text,
		JobID:  jobID,
	}
	return outcome, tr.Error, nil
}
