// Package gemini adapts the Google Gemini API to the completion gateway.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"writeway/internal/domain"
)

const defaultModel = "gemini-2.5-flash"

// generator is the slice of *genai.Models the client needs.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// HTTPStatusError carries the status code of a failed API call.
type HTTPStatusError struct {
	StatusCode int
	Message    string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("gemini: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type Client struct {
	models generator
	model  string
}

type Option func(*clientConfig)

type clientConfig struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

func WithModel(model string) Option {
	return func(c *clientConfig) {
		if model = strings.TrimSpace(model); model != "" {
			c.model = model
		}
	}
}

func WithBaseURL(url string) Option {
	return func(c *clientConfig) { c.baseURL = strings.TrimSpace(url) }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = hc }
}

// New creates a Client backed by the Gemini developer API.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini: api key must not be empty")
	}
	cfg := clientConfig{model: defaultModel}
	for _, o := range opts {
		o(&cfg)
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  cfg.httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return &Client{models: gc.Models, model: cfg.model}, nil
}

func (c *Client) Complete(ctx context.Context, in domain.CompletionRequest) (string, error) {
	res, err := c.models.GenerateContent(ctx, c.model, convertMessages(in.Messages), buildConfig(in))
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", classify(err))
	}
	text := res.Text()
	if text == "" {
		return "", errors.New("gemini: empty response text")
	}
	return text, nil
}

func buildConfig(in domain.CompletionRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if in.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(in.System, genai.RoleUser)
	}
	if in.Temperature != nil {
		temp := float32(*in.Temperature)
		cfg.Temperature = &temp
	}
	if in.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(in.MaxTokens)
	}
	return cfg
}

func convertMessages(msgs []domain.ChatMessage) []*genai.Content {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := genai.Role(genai.RoleUser)
		if m.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}

// classify exposes the API status code so rate limits can be told apart.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &HTTPStatusError{StatusCode: apiErr.Code, Message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &HTTPStatusError{StatusCode: apiErrPtr.Code, Message: apiErrPtr.Message}
	}
	return err
}
