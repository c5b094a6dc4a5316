package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"symptomguide/internal/logging"
)

// GeminiClient implements Provider for the Google Gemini API.
type GeminiClient struct {
	baseURL     string
	model       string
	visionModel string
	httpClient  *http.Client
}

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	BaseURL     string
	Model       string
	VisionModel string
	Timeout     time.Duration
}

// DefaultGeminiConfig returns sensible defaults. Flash handles both text
// and vision operations, so the vision model defaults to the text model.
func DefaultGeminiConfig() GeminiConfig {
	return GeminiConfig{
		BaseURL: "https://generativelanguage.googleapis.com/v1beta",
		Model:   "gemini-2.0-flash",
		Timeout: 30 * time.Second,
	}
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(config GeminiConfig) *GeminiClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := strings.TrimSpace(config.Model)
	if model == "" {
		model = "gemini-2.0-flash"
	}
	visionModel := strings.TrimSpace(config.VisionModel)
	if visionModel == "" {
		visionModel = model
	}
	return &GeminiClient{
		baseURL:     config.BaseURL,
		model:       model,
		visionModel: visionModel,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name identifies the provider.
func (c *GeminiClient) Name() string { return "gemini" }

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Complete sends one generateContent request authorized by credential.
func (c *GeminiClient) Complete(ctx context.Context, credential string, spec RequestSpec) (string, error) {
	if credential == "" {
		return "", fmt.Errorf("credential not provided")
	}

	model := c.model
	if spec.Vision {
		model = c.visionModel
	}

	parts := []geminiPart{{Text: spec.User}}
	if len(spec.ImageData) > 0 {
		mime := spec.ImageMIME
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, geminiPart{
			InlineData: &geminiInlineData{
				MIMEType: mime,
				Data:     base64.StdEncoding.EncodeToString(spec.ImageData),
			},
		})
	}

	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: parts},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     spec.Temperature,
			MaxOutputTokens: spec.MaxTokens,
		},
	}
	if spec.System != "" {
		reqBody.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: spec.System}},
		}
	}
	if spec.ForceJSON {
		reqBody.GenerationConfig.ResponseMimeType = "application/json"
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	logging.APIDebug("[Gemini] request: model=%s system_len=%d user_len=%d image=%v",
		model, len(spec.System), len(spec.User), len(spec.ImageData) > 0)

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, credential)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		logging.API("[Gemini] request failed: status=%d body_len=%d", resp.StatusCode, len(body))
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if geminiResp.Error != nil {
		return "", fmt.Errorf("API error: %s", geminiResp.Error.Message)
	}

	if len(geminiResp.Candidates) == 0 {
		return "", fmt.Errorf("no completion returned")
	}

	var result strings.Builder
	for _, part := range geminiResp.Candidates[0].Content.Parts {
		result.WriteString(part.Text)
	}

	text := strings.TrimSpace(result.String())
	if text == "" {
		return "", fmt.Errorf("empty completion returned")
	}
	return text, nil
}
