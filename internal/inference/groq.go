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
	"sync"
	"time"

	"symptomguide/internal/logging"
)

// GroqClient implements Provider for the Groq OpenAI-compatible API.
type GroqClient struct {
	baseURL     string
	model       string
	visionModel string
	httpClient  *http.Client
	mu          sync.Mutex
	lastRequest time.Time
}

// GroqConfig holds configuration for the Groq client.
type GroqConfig struct {
	BaseURL     string
	Model       string
	VisionModel string
	Timeout     time.Duration
}

// DefaultGroqConfig returns sensible defaults.
func DefaultGroqConfig() GroqConfig {
	return GroqConfig{
		BaseURL:     "https://api.groq.com/openai/v1",
		Model:       "mixtral-8x7b-32768",
		VisionModel: "llama-3.2-90b-vision-preview",
		Timeout:     30 * time.Second,
	}
}

// NewGroqClient creates a new Groq client.
func NewGroqClient(config GroqConfig) *GroqClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.groq.com/openai/v1"
	}
	return &GroqClient{
		baseURL:     config.BaseURL,
		model:       config.Model,
		visionModel: config.VisionModel,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name identifies the provider.
func (c *GroqClient) Name() string { return "groq" }

// groqRequest represents the chat completions request structure.
type groqRequest struct {
	Model          string              `json:"model"`
	Messages       []groqMessage       `json:"messages"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	Temperature    float64             `json:"temperature"`
	ResponseFormat *groqResponseFormat `json:"response_format,omitempty"`
}

// groqMessage represents a message in the conversation. Content is either
// a plain string or a list of content parts for vision requests.
type groqMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type groqContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *groqImageURL `json:"image_url,omitempty"`
}

type groqImageURL struct {
	URL string `json:"url"`
}

type groqResponseFormat struct {
	Type string `json:"type"`
}

// groqResponse represents the chat completions response structure.
type groqResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// Complete sends one completion request authorized by credential.
func (c *GroqClient) Complete(ctx context.Context, credential string, spec RequestSpec) (string, error) {
	if credential == "" {
		return "", fmt.Errorf("credential not provided")
	}

	// Space out requests slightly so back-to-back operations within one
	// transition do not trip the per-key burst limit.
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < 200*time.Millisecond {
		time.Sleep(200*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	model := c.model
	if spec.Vision {
		model = c.visionModel
	}

	messages := make([]groqMessage, 0, 2)
	if spec.System != "" {
		messages = append(messages, groqMessage{Role: "system", Content: spec.System})
	}

	if len(spec.ImageData) > 0 {
		mime := spec.ImageMIME
		if mime == "" {
			mime = "image/jpeg"
		}
		dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(spec.ImageData))
		messages = append(messages, groqMessage{
			Role: "user",
			Content: []groqContentPart{
				{Type: "text", Text: spec.User},
				{Type: "image_url", ImageURL: &groqImageURL{URL: dataURL}},
			},
		})
	} else {
		messages = append(messages, groqMessage{Role: "user", Content: spec.User})
	}

	reqBody := groqRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   spec.MaxTokens,
		Temperature: spec.Temperature,
	}
	if spec.ForceJSON {
		reqBody.ResponseFormat = &groqResponseFormat{Type: "json_object"}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	logging.APIDebug("[Groq] request: model=%s system_len=%d user_len=%d image=%v json=%v",
		model, len(spec.System), len(spec.User), len(spec.ImageData) > 0, spec.ForceJSON)

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential)

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
		logging.API("[Groq] request failed: status=%d body_len=%d", resp.StatusCode, len(body))
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var groqResp groqResponse
	if err := json.Unmarshal(body, &groqResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if groqResp.Error != nil {
		return "", fmt.Errorf("API error: %s", groqResp.Error.Message)
	}

	if len(groqResp.Choices) == 0 || strings.TrimSpace(groqResp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("no completion returned")
	}

	logging.APIDebug("[Groq] response: tokens=%d finish=%s",
		groqResp.Usage.TotalTokens, groqResp.Choices[0].FinishReason)

	return strings.TrimSpace(groqResp.Choices[0].Message.Content), nil
}
