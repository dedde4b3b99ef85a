package content

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/harishm17/study-buddy-sub001/internal/llm"
	"github.com/harishm17/study-buddy-sub001/internal/models"
	"github.com/harishm17/study-buddy-sub001/internal/repositories"
)

const (
	MinTopics = 5
	MaxTopics = 15

	// SampleChunkLimit bounds how many section chunks feed the material summary.
	SampleChunkLimit = 100

	sectionsPerFile = 20
	previewSamples  = 10
	previewChars    = 300
	maxKeywords     = 8
)

type ExtractedTopic struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// MaterialSummary describes the uploaded files, their section outline and a few
// content previews.
func MaterialSummary(materials []models.Material, samples []repositories.SectionSample) string {
	var b strings.Builder
	b.WriteString("## Uploaded Materials\n\n")
	for _, m := range materials {
		fmt.Fprintf(&b, "- **%s** (%s)\n", m.Filename, titleCase(strings.ReplaceAll(string(m.Category), "_", " ")))
	}

	b.WriteString("\n## Content Structure\n")
	var files []string
	sections := map[string][]string{}
	for _, s := range samples {
		if s.SectionHierarchy == "" {
			continue
		}
		if _, ok := sections[s.Filename]; !ok {
			files = append(files, s.Filename)
			sections[s.Filename] = nil
		}
		if !slices.Contains(sections[s.Filename], s.SectionHierarchy) {
			sections[s.Filename] = append(sections[s.Filename], s.SectionHierarchy)
		}
	}
	for _, f := range files {
		fmt.Fprintf(&b, "\n**%s:**\n", f)
		list := sections[f]
		if len(list) > sectionsPerFile {
			list = list[:sectionsPerFile]
		}
		for _, s := range list {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}

	b.WriteString("\n## Sample Content\n")
	for i, s := range samples {
		if i == previewSamples {
			break
		}
		page := "?"
		if s.PageStart != nil {
			page = fmt.Sprint(*s.PageStart)
		}
		preview := s.ChunkText
		if len(preview) > previewChars {
			preview = preview[:previewChars]
		}
		fmt.Fprintf(&b, "\n**Sample %d** (%s, pp. %s):\n%s...\n", i+1, s.Filename, page, strings.TrimSpace(preview))
	}
	return b.String()
}

// ExtractTopics asks the model for the study topics of a project. Names are
// deduplicated case-insensitively and keyword lists capped.
func (g *Generator) ExtractTopics(ctx context.Context, materials []models.Material, samples []repositories.SectionSample) ([]ExtractedTopic, string, error) {
	if len(materials) == 0 || len(samples) == 0 {
		return nil, "", nil
	}
	req, err := g.request("extract_topics", map[string]any{
		"Summary":   MaterialSummary(materials, samples),
		"MinTopics": MinTopics,
		"MaxTopics": MaxTopics,
	})
	if err != nil {
		return nil, "", err
	}

	var raw []ExtractedTopic
	if g.Mock() {
		raw = mockTopics(samples)
	} else {
		var out struct {
			Topics []ExtractedTopic `json:"topics"`
		}
		if _, err := llm.GenerateJSON(ctx, g.provider, req, &out); err != nil {
			return nil, req.Prompt, fmt.Errorf("extract topics: %w", err)
		}
		raw = out.Topics
	}

	topics := CleanTopics(raw)
	g.logger.Info("Extracted topics", zap.Int("raw", len(raw)), zap.Int("kept", len(topics)))
	return topics, req.Prompt, nil
}

// CleanTopics trims names and keywords, drops duplicates and caps the list.
func CleanTopics(raw []ExtractedTopic) []ExtractedTopic {
	seen := map[string]bool{}
	out := make([]ExtractedTopic, 0, len(raw))
	for _, t := range raw {
		t.Name = strings.Join(strings.Fields(t.Name), " ")
		key := strings.ToLower(t.Name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		t.Description = strings.TrimSpace(t.Description)

		keywords := make([]string, 0, len(t.Keywords))
		for _, kw := range t.Keywords {
			if kw = strings.TrimSpace(kw); kw != "" && !slices.Contains(keywords, kw) {
				keywords = append(keywords, kw)
			}
			if len(keywords) == maxKeywords {
				break
			}
		}
		t.Keywords = keywords
		out = append(out, t)
		if len(out) == MaxTopics {
			break
		}
	}
	return out
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
