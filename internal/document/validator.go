package document

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/harishm17/study-buddy-sub001/internal/llm"
	"github.com/harishm17/study-buddy-sub001/internal/models"
	"github.com/harishm17/study-buddy-sub001/internal/prompts"
)

const (
	minSampleChars = 100
	samplePages    = 3
)

type ValidationResult struct {
	Status    models.ValidationStatus `json:"validation_status"`
	Notes     string                  `json:"notes"`
	PageCount int                     `json:"page_count"`
}

// Validator checks that a material contains readable study content.
type Validator struct {
	provider llm.Provider
	prompts  prompts.PromptProvider
	logger   *zap.Logger
}

// NewValidator accepts a nil provider, in which case readable documents pass.
func NewValidator(provider llm.Provider, pp prompts.PromptProvider, logger *zap.Logger) *Validator {
	return &Validator{provider: provider, prompts: pp, logger: logger}
}

func (v *Validator) Validate(ctx context.Context, doc *Document, filename string, category models.MaterialCategory) ValidationResult {
	if doc.PageCount == 0 {
		return ValidationResult{Status: models.ValidationInvalid, Notes: "document has no pages"}
	}

	var sample strings.Builder
	for i, p := range doc.Pages {
		if i == samplePages {
			break
		}
		sample.WriteString(p.Text)
		sample.WriteString("\n")
	}
	text := strings.TrimSpace(sample.String())
	if len(text) < minSampleChars {
		return ValidationResult{
			Status:    models.ValidationInvalid,
			Notes:     "document appears to be empty or contains only images",
			PageCount: doc.PageCount,
		}
	}

	if v.provider == nil {
		return ValidationResult{
			Status:    models.ValidationValid,
			Notes:     "content check skipped: no AI provider configured",
			PageCount: doc.PageCount,
		}
	}

	prompt, err := v.prompts.Build("validate_material", map[string]any{
		"Category":  string(category),
		"Filename":  filename,
		"PageCount": doc.PageCount,
		"Sample":    text,
	})
	if err != nil {
		return v.errorResult(err, doc)
	}

	var verdict struct {
		IsValid bool   `json:"is_valid"`
		Notes   string `json:"notes"`
	}
	_, err = llm.GenerateJSON(ctx, v.provider, llm.Request{
		System:      prompt.System,
		Prompt:      prompt.Text,
		Temperature: prompt.Temperature,
		UseMini:     prompt.UseMini,
	}, &verdict)
	if err != nil {
		return v.errorResult(err, doc)
	}

	status := models.ValidationInvalid
	if verdict.IsValid {
		status = models.ValidationValid
	}
	notes := verdict.Notes
	if notes == "" {
		notes = "No validation notes provided"
	}
	return ValidationResult{Status: status, Notes: notes, PageCount: doc.PageCount}
}

func (v *Validator) errorResult(err error, doc *Document) ValidationResult {
	v.logger.Warn("Material validation failed", zap.Error(err))
	return ValidationResult{
		Status:    models.ValidationInvalid,
		Notes:     "Validation error: " + err.Error(),
		PageCount: doc.PageCount,
	}
}
