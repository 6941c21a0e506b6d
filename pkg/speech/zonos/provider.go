package zonos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"ai-livehost-be/pkg/speech"

	"github.com/google/uuid"
)

// Provider calls a Zonos TTS server: POST /tts {"text": ...} -> wav bytes.
type Provider struct {
	BaseURL  string
	MediaDir string
	Client   *http.Client
}

var _ speech.Synthesizer = &Provider{}

func NewProvider(baseURL, mediaDir string) *Provider {
	return &Provider{
		BaseURL:  baseURL,
		MediaDir: mediaDir,
		Client: &http.Client{
			Timeout: 300 * time.Second,
		},
	}
}

type ttsRequest struct {
	Text string `json:"text"`
}

type ttsError struct {
	Error string `json:"error"`
}

func (p *Provider) Synthesize(ctx context.Context, text string) (string, error) {
	payloadBytes, err := json.Marshal(ttsRequest{Text: text})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := p.BaseURL + "/tts"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("tts request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var te ttsError
		if json.Unmarshal(bodyBytes, &te) == nil && te.Error != "" {
			return "", fmt.Errorf("tts error: status %d: %s", resp.StatusCode, te.Error)
		}
		return "", fmt.Errorf("tts error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	audioRef := "speech_" + uuid.NewString() + ".wav"
	outPath := filepath.Join(p.MediaDir, audioRef)
	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("create audio file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("write audio file: %w", err)
	}

	return audioRef, nil
}
