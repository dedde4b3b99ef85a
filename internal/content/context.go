package content

import (
	"fmt"
	"strings"

	"github.com/harishm17/study-buddy-sub001/internal/repositories"
)

type Citation struct {
	Material string `json:"material"`
	Section  string `json:"section,omitempty"`
	Pages    string `json:"pages,omitempty"`
}

func pageRange(start, end *int) string {
	switch {
	case start == nil:
		return ""
	case end == nil || *end == *start:
		return fmt.Sprintf("p. %d", *start)
	default:
		return fmt.Sprintf("pp. %d-%d", *start, *end)
	}
}

// notesContext labels each chunk with its source so the model can cite it.
func notesContext(chunks []repositories.TopicChunk) string {
	parts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		section := c.SectionHierarchy
		if section == "" {
			section = "N/A"
		}
		source := c.Filename
		if pages := pageRange(c.PageStart, c.PageEnd); pages != "" {
			source += " (" + pages + ")"
		}
		parts = append(parts, fmt.Sprintf("[Chunk %d] Source: %s\nSection: %s\n\n%s\n\n---",
			i+1, source, section, strings.TrimSpace(c.ChunkText)))
	}
	return strings.Join(parts, "\n\n")
}

func sourceContext(chunks []repositories.TopicChunk) string {
	parts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		section := c.SectionHierarchy
		if section == "" {
			section = "N/A"
		}
		parts = append(parts, fmt.Sprintf("[Source %d - %s]\n%s", i+1, section, strings.TrimSpace(c.ChunkText)))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// Citations lists each distinct material section the chunks came from.
func Citations(chunks []repositories.TopicChunk) []Citation {
	seen := map[string]bool{}
	var out []Citation
	for _, c := range chunks {
		cite := Citation{Material: c.Filename, Section: c.SectionHierarchy, Pages: pageRange(c.PageStart, c.PageEnd)}
		key := cite.Material + "\x00" + cite.Section + "\x00" + cite.Pages
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, cite)
	}
	return out
}

func examContext(chunks []repositories.TopicChunk) string {
	parts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		parts = append(parts, fmt.Sprintf("[Excerpt %d]\n%s", i+1, strings.TrimSpace(c.ChunkText)))
	}
	return strings.Join(parts, "\n\n---\n\n")
}
