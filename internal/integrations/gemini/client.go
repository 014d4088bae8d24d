package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"boraha-concierge/internal/domain"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.5-flash"
	defaultTimeout = 30 * time.Second

	roleUser  = "user"
	roleModel = "model"
)

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature *float64 `json:"temperature,omitempty"`
}

// generateRequest is the request shape for models/{model}:generateContent.
type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// KeySource yields the API key. credential.Source satisfies it.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("gemini: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client opens chats against the Gemini generateContent REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	keys       KeySource
	logger     *slog.Logger
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client. The key is resolved each time a chat is opened.
func NewClient(keys KeySource, opts ...Option) (*Client, error) {
	if keys == nil {
		return nil, errors.New("gemini: key source must not be nil")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		keys:       keys,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

func generateURL(baseURL, model string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return base + "/models/" + model + ":generateContent"
}

// StartChat resolves the API key and returns a chat configured with the given
// system instruction and temperature. No network call is made.
func (c *Client) StartChat(ctx context.Context, cfg domain.ChatConfig) (domain.RemoteChat, error) {
	key, err := c.keys.APIKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("gemini: resolve api key: %w", err)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	temperature := cfg.Temperature
	ch := &chat{
		client:      c,
		apiKey:      key,
		url:         generateURL(c.baseURL, model),
		temperature: &temperature,
	}
	if s := strings.TrimSpace(cfg.SystemInstruction); s != "" {
		ch.system = &content{Parts: []part{{Text: s}}}
	}
	return ch, nil
}

type chat struct {
	client      *Client
	apiKey      string
	url         string
	system      *content
	temperature *float64

	mu      sync.Mutex
	history []content
}

// SendMessage sends text with the accumulated history. The turn is recorded
// only when the backend answers successfully.
func (ch *chat) SendMessage(ctx context.Context, text string) (string, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	userTurn := content{Role: roleUser, Parts: []part{{Text: text}}}
	contents := make([]content, 0, len(ch.history)+1)
	contents = append(contents, ch.history...)
	contents = append(contents, userTurn)

	body, err := json.Marshal(generateRequest{
		SystemInstruction: ch.system,
		Contents:          contents,
		GenerationConfig:  generationConfig{Temperature: ch.temperature},
	})
	if err != nil {
		return "", fmt.Errorf("gemini: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ch.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gemini: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", ch.apiKey)

	raw, err := ch.client.doJSONRequest(req, ch.url)
	if err != nil {
		return "", fmt.Errorf("gemini: request failed: %w", err)
	}

	var payload generateResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("gemini: decode response: %w", err)
	}
	if payload.PromptFeedback != nil && payload.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini: prompt blocked: %s", payload.PromptFeedback.BlockReason)
	}
	if len(payload.Candidates) == 0 {
		return "", errors.New("gemini: no candidates in response")
	}

	var sb strings.Builder
	for _, p := range payload.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	answer := sb.String()

	// A blank model turn would be replayed as an empty part on every later
	// request, which the API rejects.
	if strings.TrimSpace(answer) != "" {
		ch.history = append(ch.history, userTurn, content{Role: roleModel, Parts: []part{{Text: answer}}})
	}

	ch.client.logger.Debug("gemini usage",
		"prompt_tokens", payload.UsageMetadata.PromptTokenCount,
		"response_tokens", payload.UsageMetadata.CandidatesTokenCount,
		"total_tokens", payload.UsageMetadata.TotalTokenCount,
		"finish_reason", payload.Candidates[0].FinishReason,
	)
	return answer, nil
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
