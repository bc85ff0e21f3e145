package ingest

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// FetchYouTubeTitle loads the video page in headless Chrome and reads its
// title, so ingested videos get a human-readable library entry
func FetchYouTubeTitle(parent context.Context, url string) (string, error) {
	ctx, cancel := chromedp.NewContext(parent)
	defer cancel()

	ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var title string
	err := chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(2*time.Second), // wait for the player metadata
		chromedp.Evaluate(`document.title.replace(/ - YouTube$/, "")`, &title,
			func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
				return p.WithAwaitPromise(true)
			}),
	)
	if err != nil {
		return "", fmt.Errorf("failed to read page title: %v", err)
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("page returned an empty title")
	}
	return title, nil
}

// DownloadYouTubeAudio uses yt-dlp to extract the audio track into
// outputPath. Requires yt-dlp on PATH.
func DownloadYouTubeAudio(url, outputPath string) error {
	log.Printf("Downloading audio with yt-dlp: %s", url)

	cmd := exec.Command("yt-dlp",
		"-x",
		"--audio-format", "opus",
		"-o", outputPath,
		url,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("yt-dlp failed: %v\nOutput: %s", err, string(output))
	}

	log.Printf("YouTube audio downloaded: %s", outputPath)
	return nil
}
