package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/harishm17/study-buddy-sub001/internal/utils"
)

// Request is a single prompt to a chat model.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
	// UseMini selects the cheaper model, used for validation and grading.
	UseMini bool
	// JSON asks the provider for a JSON object response.
	JSON bool
}

type Response struct {
	Text           string `json:"text"`
	Model          string `json:"model"`
	Provider       string `json:"provider"`
	ProcessingTime int    `json:"processing_time_ms"`
}

// defines the interface for LLM providers
type Provider interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}

// represents an error from an LLM provider
type ProviderError struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Provider + " error: " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Provider + " error: " + e.Message
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Common error codes
const (
	ErrCodeAPIKey       = "invalid_api_key"
	ErrCodeRateLimit    = "rate_limit_exceeded"
	ErrCodeServiceDown  = "service_unavailable"
	ErrCodeInvalidInput = "invalid_input"
	ErrCodeTimeout      = "timeout"
)

// ErrorCode extracts the provider error code, or "" for other errors.
func ErrorCode(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// GenerateJSON runs a JSON-mode request and decodes the response into out.
func GenerateJSON(ctx context.Context, p Provider, req Request, out any) (*Response, error) {
	req.JSON = true
	resp, err := p.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := DecodeJSON(resp.Text, out); err != nil {
		return resp, &ProviderError{
			Provider: p.Name(),
			Code:     ErrCodeInvalidInput,
			Message:  "Model returned malformed JSON",
			Err:      err,
		}
	}
	return resp, nil
}

// DecodeJSON tolerates code fences and prose around the JSON payload.
func DecodeJSON(text string, out any) error {
	cleaned := utils.StripFences(text)
	err := json.Unmarshal([]byte(cleaned), out)
	if err == nil {
		return nil
	}
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(cleaned, pair[0])
		end := strings.LastIndex(cleaned, pair[1])
		if start >= 0 && end > start {
			if json.Unmarshal([]byte(cleaned[start:end+1]), out) == nil {
				return nil
			}
		}
	}
	return err
}

// IsRateLimitError matches the messages providers use for quota and throttling errors.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(strings.ToLower(msg), "quota")
}
