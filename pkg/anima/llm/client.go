// Package llm implements the model collaborator: one text-in/text-out
// invocation against an OpenAI-compatible chat completions endpoint or the
// Gemini generateContent API, with the provider detected from the base URL.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultInvokeTimeout bounds one model call when the config does not
// override it.
const DefaultInvokeTimeout = 30 * time.Second

// ErrTimeout marks a model call that did not complete within its deadline.
var ErrTimeout = errors.New("model call timed out")

// ErrTransport marks a network or protocol failure talking to the provider.
var ErrTransport = errors.New("model transport error")

// Options configures the client.
type Options struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client talks to one model provider. Safe for concurrent use.
type Client struct {
	baseURL    string
	provider   string // "openai", "groq", "ollama", "google"
	apiKey     string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a model client from options.
func New(opts Options, logger *slog.Logger) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultInvokeTimeout
	}
	provider := detectProvider(baseURL)
	return &Client{
		baseURL:  baseURL,
		provider: provider,
		apiKey:   opts.APIKey,
		model:    opts.Model,
		timeout:  timeout,
		httpClient: &http.Client{
			// Per-call deadlines come from context.WithTimeout; a client-wide
			// timeout would double up with them.
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     120 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		logger: logger.With("component", "llm", "provider", provider),
	}
}

// Provider returns the detected provider name.
func (c *Client) Provider() string {
	return c.provider
}

// detectProvider infers the provider from the base URL.
func detectProvider(baseURL string) string {
	switch {
	case strings.Contains(baseURL, "generativelanguage.googleapis.com"):
		return "google"
	case strings.Contains(baseURL, "api.groq.com"):
		return "groq"
	case strings.Contains(baseURL, "localhost:11434"),
		strings.Contains(baseURL, "127.0.0.1:11434"),
		strings.Contains(baseURL, "ollama"):
		return "ollama"
	default:
		return "openai"
	}
}

// Invoke runs one system+user prompt pair through the model and returns
// the reply text. Failures are ErrTimeout or ErrTransport wrapped with
// detail; the call never hangs past its deadline.
func (c *Client) Invoke(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	var text string
	var err error
	if c.provider == "google" {
		text, err = c.invokeGemini(callCtx, systemPrompt, userPrompt)
	} else {
		text, err = c.invokeChatCompletions(callCtx, systemPrompt, userPrompt)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
		return "", err
	}

	c.logger.Debug("model invoked",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"reply_len", len(text),
	)
	return strings.TrimSpace(text), nil
}

// ---------- OpenAI-compatible path (OpenAI, Groq, Ollama /v1) ----------

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) invokeChatCompletions(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: encoding request: %v", ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	respBody, err := c.do(req)
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrTransport, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%w: provider error: %s", ErrTransport, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: response has no choices", ErrTransport)
	}
	return parsed.Choices[0].Message.Content, nil
}

// ---------- Gemini path ----------

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (c *Client) invokeGemini(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body, err := json.Marshal(geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}},
		Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: userPrompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("%w: encoding request: %v", ErrTransport, err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.baseURL, c.model, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	respBody, err := c.do(req)
	if err != nil {
		return "", err
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrTransport, err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: response has no candidates", ErrTransport)
	}
	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// do executes the request and maps failures into the transport taxonomy.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := string(body)
		if len(snippet) > 500 {
			snippet = snippet[:500]
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrTransport, resp.StatusCode, snippet)
	}
	return body, nil
}
