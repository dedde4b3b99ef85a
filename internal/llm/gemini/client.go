package gemini

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/harishm17/study-buddy-sub001/internal/llm"
)

const providerName = "gemini"

// Client represents a Gemini LLM client
type Client struct {
	client *genai.Client
	config *Config
}

func NewClient(config *Config) (*Client, error) {
	cc := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, &llm.ProviderError{
			Provider: providerName,
			Code:     llm.ErrCodeAPIKey,
			Message:  "Failed to create Gemini client",
			Err:      err,
		}
	}

	return &Client{client: client, config: config}, nil
}

func (c *Client) model(req llm.Request) string {
	if req.UseMini {
		return c.config.MiniModel
	}
	return c.config.Model
}

func (c *Client) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	startTime := time.Now()
	model := c.model(req)

	gc := &genai.GenerateContentConfig{}
	if req.Temperature > 0 {
		gc.Temperature = genai.Ptr(req.Temperature)
	}
	if req.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		gc.ResponseMIMEType = "application/json"
	}

	result, err := c.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), gc)
	if err != nil {
		return nil, classify(err, "Failed to generate content")
	}
	if result == nil {
		return nil, &llm.ProviderError{
			Provider: providerName,
			Code:     llm.ErrCodeInvalidInput,
			Message:  "No response generated",
		}
	}

	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return nil, &llm.ProviderError{
			Provider: providerName,
			Code:     llm.ErrCodeInvalidInput,
			Message:  "Empty response generated",
		}
	}

	return &llm.Response{
		Text:           text,
		Model:          model,
		Provider:       providerName,
		ProcessingTime: int(time.Since(startTime).Milliseconds()),
	}, nil
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	ec := &genai.EmbedContentConfig{}
	if c.config.Dimensions > 0 {
		dims := int32(c.config.Dimensions)
		ec.OutputDimensionality = &dims
	}

	result, err := c.client.Models.EmbedContent(ctx, c.config.EmbeddingModel, contents, ec)
	if err != nil {
		return nil, classify(err, "Failed to generate embeddings")
	}
	if result == nil || len(result.Embeddings) != len(texts) {
		return nil, &llm.ProviderError{
			Provider: providerName,
			Code:     llm.ErrCodeInvalidInput,
			Message:  "Embedding count does not match input count",
		}
	}

	out := make([][]float32, len(result.Embeddings))
	for i, e := range result.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

func (c *Client) Name() string {
	return providerName
}

func classify(err error, message string) error {
	code := llm.ErrCodeServiceDown
	switch {
	case isRateLimitError(err):
		code = llm.ErrCodeRateLimit
	case errors.Is(err, context.DeadlineExceeded):
		code = llm.ErrCodeTimeout
	case isAuthError(err):
		code = llm.ErrCodeAPIKey
	}
	return &llm.ProviderError{Provider: providerName, Code: code, Message: message, Err: err}
}

func isRateLimitError(err error) bool {
	return llm.IsRateLimitError(err)
}

func isAuthError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "401") ||
		strings.Contains(msg, "403") ||
		strings.Contains(msg, "API_KEY_INVALID") ||
		strings.Contains(msg, "PERMISSION_DENIED")
}
