package latentsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"ai-livehost-be/pkg/compositor"

	"github.com/google/uuid"
)

// Provider calls a LatentSync lip-sync server: POST /sync with multipart
// video + audio, responds with the synchronized mp4. The video part is always
// the configured base face clip; generation only varies the audio.
type Provider struct {
	BaseURL       string
	BaseVideoPath string
	MediaDir      string
	Client        *http.Client
}

var _ compositor.Compositor = &Provider{}

func NewProvider(baseURL, baseVideoPath, mediaDir string) *Provider {
	return &Provider{
		BaseURL:       baseURL,
		BaseVideoPath: baseVideoPath,
		MediaDir:      mediaDir,
		Client: &http.Client{
			// The server itself allows up to 10 minutes of inference.
			Timeout: 900 * time.Second,
		},
	}
}

type syncError struct {
	Error string `json:"error"`
}

func (p *Provider) Compose(ctx context.Context, audioRef string) (string, error) {
	audioPath := filepath.Join(p.MediaDir, filepath.Base(audioRef))

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := attachFile(writer, "video", p.BaseVideoPath); err != nil {
		return "", err
	}
	if err := attachFile(writer, "audio", audioPath); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	url := p.BaseURL + "/sync"
	req, err := http.NewRequestWithContext(ctx, "POST", url, &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("lipsync request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var se syncError
		if json.Unmarshal(bodyBytes, &se) == nil && se.Error != "" {
			return "", fmt.Errorf("lipsync error: status %d: %s", resp.StatusCode, se.Error)
		}
		return "", fmt.Errorf("lipsync error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	videoRef := "clip_" + uuid.NewString() + ".mp4"
	outPath := filepath.Join(p.MediaDir, videoRef)
	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("create video file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("write video file: %w", err)
	}

	return videoRef, nil
}

func attachFile(writer *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s file: %w", field, err)
	}
	defer f.Close()

	part, err := writer.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("create %s form part: %w", field, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copy %s into form: %w", field, err)
	}
	return nil
}
