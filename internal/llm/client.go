package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	hydraerrors "hydra/internal/errors"
	"hydra/internal/logging"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

// Config carries the settings for the OpenRouter-compatible chat client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout int // seconds, 0 = default 120s

	// Referer and Title are forwarded as the HTTP-Referer and X-Title
	// headers OpenRouter uses for attribution.
	Referer string
	Title   string
}

// Message is one turn in a chat completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a single chat completion call. Model overrides the client's
// configured model when set.
type ChatRequest struct {
	Model       string
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Client speaks the OpenAI-compatible chat completions API exposed by
// OpenRouter. It is safe for concurrent use.
type Client struct {
	model      string
	apiKey     string
	baseURL    string
	referer    string
	title      string
	httpClient *http.Client
	logger     logging.Logger
}

// NewClient constructs a chat completions client from the configuration.
func NewClient(config Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	timeout := 120 * time.Second
	if config.Timeout > 0 {
		timeout = time.Duration(config.Timeout) * time.Second
	}

	return &Client{
		model:      config.Model,
		apiKey:     config.APIKey,
		baseURL:    baseURL,
		referer:    config.Referer,
		title:      config.Title,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger("OpenRouter"),
	}
}

// Model returns the model name used by this client.
func (c *Client) Model() string {
	return c.model
}

// Chat sends one chat completion request and returns the assistant text.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	messages := make([]Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}
	messages = append(messages, req.Messages...)

	model := req.Model
	if model == "" {
		model = c.model
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = 0.1
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = maxTokensFor(model)
	}

	body, err := json.Marshal(map[string]any{
		"model":       model,
		"messages":    messages,
		"temperature": temperature,
		"max_tokens":  maxTokens,
		"stream":      false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	c.logger.Debug("POST %s model=%s messages=%d", endpoint, model, len(messages))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		httpReq.Header.Set("X-Title", c.title)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", wrapRequestError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("Error response %d: %s", resp.StatusCode, string(respBody))
		return "", mapHTTPError(resp.StatusCode, respBody, resp.Header)
	}

	var chatResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error *struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if chatResp.Error != nil && chatResp.Error.Message != "" {
		msg := chatResp.Error.Message
		if chatResp.Error.Type != "" {
			msg = fmt.Sprintf("%s: %s", chatResp.Error.Type, chatResp.Error.Message)
		}
		return "", mapHTTPError(resp.StatusCode, []byte(msg), resp.Header)
	}

	if len(chatResp.Choices) == 0 {
		return "", hydraerrors.NewTransientError(errors.New("no choices in response"),
			"model returned an empty response")
	}

	content := chatResp.Choices[0].Message.Content
	if content == "" {
		return "", hydraerrors.NewTransientError(errors.New("empty content in response"),
			"model returned an empty message")
	}
	return content, nil
}

// wrapRequestError classifies transport-level failures. Network errors are
// transient unless the caller's context was cancelled.
func wrapRequestError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return hydraerrors.NewTransientError(err, "request to reasoning service failed")
}

// mapHTTPError converts a non-2xx response into the retry taxonomy. Rate
// limits and server errors are transient; other client errors are permanent.
func mapHTTPError(statusCode int, body []byte, headers http.Header) error {
	message := strings.TrimSpace(string(body))
	if message == "" {
		message = http.StatusText(statusCode)
	}

	if statusCode == http.StatusRequestTimeout || hydraerrors.IsTransientHTTPStatus(statusCode) {
		terr := &hydraerrors.TransientError{
			Err:        fmt.Errorf("http %d: %s", statusCode, message),
			StatusCode: statusCode,
			Message:    fmt.Sprintf("reasoning service returned %d", statusCode),
		}
		if headers != nil {
			if seconds, err := strconv.Atoi(strings.TrimSpace(headers.Get("Retry-After"))); err == nil {
				terr.RetryAfter = seconds
			}
		}
		return terr
	}

	return &hydraerrors.PermanentError{
		Err:        fmt.Errorf("http %d: %s", statusCode, message),
		StatusCode: statusCode,
		Message:    fmt.Sprintf("reasoning service rejected the request with %d", statusCode),
	}
}
