package openai

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/harishm17/study-buddy-sub001/internal/config"
	"github.com/harishm17/study-buddy-sub001/internal/llm"
)

const providerName = "openai"

type Config struct {
	APIKey         string
	Model          string
	MiniModel      string
	EmbeddingModel string
	Dimensions     int
	BaseURL        string
}

func NewConfig(cfg *config.Config) (*Config, error) {
	if cfg.OpenAI.APIKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable is required")
	}
	c := &Config{
		APIKey:         cfg.OpenAI.APIKey,
		Model:          cfg.OpenAI.Model,
		MiniModel:      cfg.OpenAI.MiniModel,
		EmbeddingModel: cfg.OpenAI.EmbeddingModel,
		Dimensions:     cfg.Embedding.Dimensions,
		BaseURL:        cfg.OpenAI.BaseURL,
	}
	if c.Model == "" {
		c.Model = goopenai.GPT4o
	}
	if c.MiniModel == "" {
		c.MiniModel = goopenai.GPT4oMini
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = string(goopenai.SmallEmbedding3)
	}
	return c, nil
}

func init() {
	llm.RegisterProvider(providerName, func(cfg *config.Config) (llm.Provider, error) {
		c, err := NewConfig(cfg)
		if err != nil {
			return nil, err
		}
		return NewClient(c), nil
	})
}

// Client talks to the OpenAI chat and embedding APIs.
type Client struct {
	client *goopenai.Client
	config *Config
}

func NewClient(c *Config) *Client {
	oc := goopenai.DefaultConfig(c.APIKey)
	if c.BaseURL != "" {
		oc.BaseURL = c.BaseURL
	}
	return &Client{client: goopenai.NewClientWithConfig(oc), config: c}
}

func (c *Client) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	startTime := time.Now()
	model := c.config.Model
	if req.UseMini {
		model = c.config.MiniModel
	}

	var messages []goopenai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: req.Prompt})

	ccr := goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
	}
	if req.JSON {
		ccr.ResponseFormat = &goopenai.ChatCompletionResponseFormat{Type: goopenai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := c.client.CreateChatCompletion(ctx, ccr)
	if err != nil {
		return nil, classify(err, "Failed to generate content")
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, &llm.ProviderError{Provider: providerName, Code: llm.ErrCodeInvalidInput, Message: "Empty response generated"}
	}

	return &llm.Response{
		Text:           resp.Choices[0].Message.Content,
		Model:          model,
		Provider:       providerName,
		ProcessingTime: int(time.Since(startTime).Milliseconds()),
	}, nil
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input:      texts,
		Model:      goopenai.EmbeddingModel(c.config.EmbeddingModel),
		Dimensions: c.config.Dimensions,
	})
	if err != nil {
		return nil, classify(err, "Failed to generate embeddings")
	}
	if len(resp.Data) != len(texts) {
		return nil, &llm.ProviderError{Provider: providerName, Code: llm.ErrCodeInvalidInput, Message: "Embedding count does not match input count"}
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, len(data))
	for i, d := range data {
		out[i] = d.Embedding
	}
	return out, nil
}

func (c *Client) Name() string { return providerName }

func classify(err error, message string) error {
	code := llm.ErrCodeServiceDown
	var apiErr *goopenai.APIError
	var reqErr *goopenai.RequestError
	status := 0
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = llm.ErrCodeAPIKey
	case status == http.StatusTooManyRequests || llm.IsRateLimitError(err):
		code = llm.ErrCodeRateLimit
	case status == http.StatusBadRequest:
		code = llm.ErrCodeInvalidInput
	case errors.Is(err, context.DeadlineExceeded):
		code = llm.ErrCodeTimeout
	}
	return &llm.ProviderError{Provider: providerName, Code: code, Message: message, Err: err}
}
