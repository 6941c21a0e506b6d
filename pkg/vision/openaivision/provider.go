package openaivision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"ai-livehost-be/pkg/vision"
)

const describePrompt = `You are watching a live broadcast scene. Describe what is
currently happening in the frame in one or two sentences.

Previous observations, oldest first:
%s

Then decide whether something materially NEW is happening compared to those
observations. Reply with ONLY a JSON object:
{"description": "<what you see>", "changed": <true|false>}`

// Provider sends captured frames to an OpenAI-compatible vision model as
// base64 data URIs and parses the JSON verdict.
type Provider struct {
	BaseURL   string
	ModelName string
	APIKey    string
	Client    *http.Client
}

var _ vision.Describer = &Provider{}

func NewProvider(baseURL, modelName, apiKey string) *Provider {
	return &Provider{
		BaseURL:   baseURL,
		ModelName: modelName,
		APIKey:    apiKey,
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type visionMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type visionRequest struct {
	Model     string          `json:"model"`
	Messages  []visionMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
	Stream    bool            `json:"stream"`
}

type visionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *Provider) Describe(ctx context.Context, imagePath string, priorDescriptions []string) (*vision.Description, error) {
	imgBytes, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	dataURI := "data:image/png;base64," + base64.StdEncoding.EncodeToString(imgBytes)

	window := "(none yet)"
	if len(priorDescriptions) > 0 {
		window = "- " + strings.Join(priorDescriptions, "\n- ")
	}

	reqPayload := visionRequest{
		Model: p.ModelName,
		Messages: []visionMessage{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: fmt.Sprintf(describePrompt, window)},
					{Type: "image_url", ImageURL: &imageURL{URL: dataURI}},
				},
			},
		},
		MaxTokens: 300,
		Stream:    false,
	}

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := p.BaseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vision error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var vr visionResponse
	if err := json.Unmarshal(bodyBytes, &vr); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if vr.Error != nil {
		return nil, fmt.Errorf("vision error: %s", vr.Error.Message)
	}
	if len(vr.Choices) == 0 {
		return nil, fmt.Errorf("vision returned no choices")
	}

	return parseDescription(vr.Choices[0].Message.Content)
}

func parseDescription(raw string) (*vision.Description, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in vision output: %q", raw)
	}
	var desc vision.Description
	if err := json.Unmarshal([]byte(raw[start:end+1]), &desc); err != nil {
		return nil, fmt.Errorf("unmarshal vision output: %w", err)
	}
	if desc.Text == "" {
		return nil, fmt.Errorf("vision output missing description")
	}
	return &desc, nil
}
