package match

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// matchPrompt instructs the model to answer with either a timestamp or the
// literal no-match marker. The response is still free text and must be
// parsed defensively.
const matchPrompt = `You are an AI assistant that matches text from different sources.
Below is an audio transcription and a video transcription. Please find the timestamp where the following audio transcription matches the video transcription.

Audio Transcription:
%s

Video Transcription:
%s

Provide the timestamp in MM:SS format where the audio transcription appears in the video transcription. If no match is found, return "No match."`

// GeminiMatcher asks the Gemini generateContent API whether an audio
// transcript appears in a video transcript
type GeminiMatcher struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewGeminiMatcher creates a text matcher backed by Gemini
func NewGeminiMatcher(baseURL, apiKey, model string) *GeminiMatcher {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiMatcher{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// MatchTimestamp sends both transcripts in a single prompt and returns the
// model's raw text output
func (g *GeminiMatcher) MatchTimestamp(ctx context.Context, audioTranscript, videoTranscript string) (string, error) {
	prompt := fmt.Sprintf(matchPrompt, audioTranscript, videoTranscript)

	payload, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("gemini http %d: %s", resp.StatusCode, string(body))
	}

	var gr geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", fmt.Errorf("failed to decode gemini response: %v", err)
	}

	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no output")
	}

	return strings.TrimSpace(gr.Candidates[0].Content.Parts[0].Text), nil
}
