package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/yungbote/livechat-backend/internal/platform/httpx"
	"github.com/yungbote/livechat-backend/internal/platform/logger"
)

const (
	RoleSystem    = goopenai.ChatMessageRoleSystem
	RoleUser      = goopenai.ChatMessageRoleUser
	RoleAssistant = goopenai.ChatMessageRoleAssistant
)

type Message struct {
	Role    string
	Content string
}

type ChatRequest struct {
	Model       string
	Temperature float64
	MaxTokens   int
	System      string
	Messages    []Message
}

// ChatStream yields content deltas until io.EOF. It is not safe for concurrent use.
type ChatStream interface {
	Recv() (string, error)
	Close() error
}

// Client is the embedding + chat completion surface the chat core depends on.
type Client interface {
	Embed(ctx context.Context, input string) ([]float32, error)
	StreamChat(ctx context.Context, req ChatRequest) (ChatStream, error)
}

type Config struct {
	APIKey         string        `yaml:"api_key"`
	BaseURL        string        `yaml:"base_url"`
	EmbedModel     string        `yaml:"embed_model"`
	EmbedDims      int           `yaml:"embed_dimensions"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	DefaultModel   string        `yaml:"default_model"`
	HTTPClient     *http.Client  `yaml:"-"`
	RetryBaseSleep time.Duration `yaml:"-"`
}

type client struct {
	log        *logger.Logger
	api        *goopenai.Client
	embedModel string
	embedDims  int
	model      string
	maxRetries int
	retrySleep time.Duration
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	oc := goopenai.DefaultConfig(apiKey)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		oc.BaseURL = base
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	} else {
		// Streams are bounded by the request context, not a client-wide timeout.
		oc.HTTPClient = &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: timeout,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConnsPerHost:   16,
		}}
	}

	embedModel := strings.TrimSpace(cfg.EmbedModel)
	if embedModel == "" {
		embedModel = "text-embedding-3-small"
	}
	model := strings.TrimSpace(cfg.DefaultModel)
	if model == "" {
		model = "gpt-4o-mini"
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	retrySleep := cfg.RetryBaseSleep
	if retrySleep <= 0 {
		retrySleep = 500 * time.Millisecond
	}

	return &client{
		log:        log.With("client", "OpenAIClient"),
		api:        goopenai.NewClientWithConfig(oc),
		embedModel: embedModel,
		embedDims:  cfg.EmbedDims,
		model:      model,
		maxRetries: maxRetries,
		retrySleep: retrySleep,
	}, nil
}

func (c *client) Embed(ctx context.Context, input string) ([]float32, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("embed: empty input")
	}
	req := goopenai.EmbeddingRequest{
		Input: []string{input},
		Model: goopenai.EmbeddingModel(c.embedModel),
	}
	if c.embedDims > 0 {
		req.Dimensions = c.embedDims
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		resp, err := c.api.CreateEmbeddings(ctx, req)
		if err == nil {
			if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
				return nil, fmt.Errorf("embed: empty response")
			}
			return resp.Data[0].Embedding, nil
		}
		lastErr = wrapStatus(err)
		if !httpx.IsRetryableError(lastErr) || attempt == c.maxRetries || ctx.Err() != nil {
			break
		}
		backoff := httpx.JitterSleep(c.retrySleep * time.Duration(1<<attempt))
		c.log.Warn("embedding request failed, retrying", "attempt", attempt+1, "backoff", backoff.String(), "error", lastErr)
		if err := httpx.Sleep(ctx, backoff); err != nil {
			return nil, fmt.Errorf("embed: %w", err)
		}
	}
	return nil, fmt.Errorf("embed: %w", lastErr)
}

// StreamChat opens a streaming completion. Connection errors are retried before the
// first byte; once the stream is open, failures are returned from Recv.
func (c *client) StreamChat(ctx context.Context, req ChatRequest) (ChatStream, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if strings.TrimSpace(req.System) != "" {
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: RoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	creq := goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
		Stream:      true,
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		s, err := c.api.CreateChatCompletionStream(ctx, creq)
		if err == nil {
			return &chatStream{s: s}, nil
		}
		lastErr = wrapStatus(err)
		if !httpx.IsRetryableError(lastErr) || attempt == c.maxRetries || ctx.Err() != nil {
			break
		}
		backoff := httpx.JitterSleep(c.retrySleep * time.Duration(1<<attempt))
		c.log.Warn("chat stream open failed, retrying", "attempt", attempt+1, "model", model, "error", lastErr)
		if err := httpx.Sleep(ctx, backoff); err != nil {
			return nil, fmt.Errorf("stream chat: %w", err)
		}
	}
	return nil, fmt.Errorf("stream chat: %w", lastErr)
}

type chatStream struct {
	s *goopenai.ChatCompletionStream
}

func (cs *chatStream) Recv() (string, error) {
	for {
		resp, err := cs.s.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", wrapStatus(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		return delta, nil
	}
}

func (cs *chatStream) Close() error {
	return cs.s.Close()
}

// StatusError carries the upstream HTTP status so retry classification can see it.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string       { return fmt.Sprintf("openai status %d: %v", e.Code, e.Err) }
func (e *StatusError) Unwrap() error       { return e.Err }
func (e *StatusError) HTTPStatusCode() int { return e.Code }

func wrapStatus(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &StatusError{Code: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &StatusError{Code: reqErr.HTTPStatusCode, Err: err}
	}
	return err
}
