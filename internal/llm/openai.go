package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/forgestack/devplane/internal/retry"
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultMaxTokens = 4096
)

// OpenAIClient implements ChatClient against any OpenAI-compatible
// chat-completions endpoint.
type OpenAIClient struct {
	apiKey    string
	baseURL   string
	maxTokens int
	client    *http.Client
	retryCfg  retry.Config
	log       zerolog.Logger
}

// OpenAIOption configures the client.
type OpenAIOption func(*OpenAIClient)

func WithBaseURL(url string) OpenAIOption {
	return func(c *OpenAIClient) { c.baseURL = url }
}

func WithMaxTokens(n int) OpenAIOption {
	return func(c *OpenAIClient) { c.maxTokens = n }
}

func WithHTTPClient(hc *http.Client) OpenAIOption {
	return func(c *OpenAIClient) { c.client = hc }
}

func WithLogger(log zerolog.Logger) OpenAIOption {
	return func(c *OpenAIClient) { c.log = log }
}

func WithRetryConfig(cfg retry.Config) OpenAIOption {
	return func(c *OpenAIClient) { c.retryCfg = cfg }
}

// NewOpenAIClient constructs a client for an OpenAI-compatible endpoint.
func NewOpenAIClient(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	c := &OpenAIClient{
		apiKey:    apiKey,
		baseURL:   defaultBaseURL,
		maxTokens: defaultMaxTokens,
		client:    &http.Client{Timeout: 120 * time.Second},
		retryCfg:  retry.DefaultConfig(),
		log:       zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type chatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate sends a blocking chat-completion request and returns the
// assistant text of the first choice.
func (c *OpenAIClient) Generate(ctx context.Context, messages []Message, model, provider string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	// Transport failures, 429, and 5xx are retried; anything the API
	// rejected outright is permanent.
	var cr chatResponse
	err = retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/chat/completions", bytes.NewReader(body))
		if reqErr != nil {
			return retry.Permanent(fmt.Errorf("create request: %w", reqErr))
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, doErr := c.client.Do(req)
		if doErr != nil {
			return fmt.Errorf("chat http: %w", doErr)
		}
		defer resp.Body.Close()

		raw, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("read body: %w", readErr)
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("chat api status %d: %s", resp.StatusCode, truncate(raw, 200))
		}

		cr = chatResponse{}
		if jsonErr := json.Unmarshal(raw, &cr); jsonErr != nil {
			return retry.Permanent(fmt.Errorf("unmarshal response: %w", jsonErr))
		}
		if cr.Error != nil {
			return retry.Permanent(fmt.Errorf("chat api error %s: %s", cr.Error.Type, cr.Error.Message))
		}
		if len(cr.Choices) == 0 {
			return retry.Permanent(fmt.Errorf("chat api returned no choices (status %d)", resp.StatusCode))
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	c.log.Debug().
		Str("model", model).
		Int("prompt_tokens", cr.Usage.PromptTokens).
		Int("completion_tokens", cr.Usage.CompletionTokens).
		Msg("chat completion")
	return cr.Choices[0].Message.Content, nil
}

func truncate(raw []byte, n int) string {
	if len(raw) <= n {
		return string(raw)
	}
	return string(raw[:n]) + "..."
}
