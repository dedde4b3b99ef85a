package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// embeds all .yaml files in the templates folder into Go program at compile time
//
//go:embed templates/*.yaml
var templateFS embed.FS

// PromptProvider is what generators and the readiness probe need.
type PromptProvider interface {
	Build(name string, data any) (*Prompt, error)
	Names() []string
}

// loaded prompt template
type PromptTemplate struct {
	System      string  `yaml:"system"`
	Prompt      string  `yaml:"prompt"`
	Temperature float32 `yaml:"temperature"`
	UseMini     bool    `yaml:"use_mini"`
}

// Prompt is a rendered template ready to send to a provider.
type Prompt struct {
	System      string
	Text        string
	Temperature float32
	UseMini     bool
}

type compiled struct {
	meta   PromptTemplate
	system *template.Template
	prompt *template.Template
}

type PromptManager struct {
	prompts map[string]*compiled
}

var funcs = template.FuncMap{
	"join":  strings.Join,
	"human": func(s string) string { return strings.ReplaceAll(s, "_", " ") },
	"trunc": func(n int, s string) string {
		if len(s) <= n {
			return s
		}
		return s[:n]
	},
	"inc": func(i int) int { return i + 1 },
}

// creates a new prompt manager and loads templates
func NewPromptManager() (*PromptManager, error) {
	pm := &PromptManager{prompts: make(map[string]*compiled)}
	if err := pm.loadPrompts(); err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}
	return pm, nil
}

// Build renders the named template with data.
func (pm *PromptManager) Build(name string, data any) (*Prompt, error) {
	c, ok := pm.prompts[name]
	if !ok {
		return nil, fmt.Errorf("template not found: %s", name)
	}

	var sys, body bytes.Buffer
	if err := c.system.Execute(&sys, data); err != nil {
		return nil, fmt.Errorf("render %s system prompt: %w", name, err)
	}
	if err := c.prompt.Execute(&body, data); err != nil {
		return nil, fmt.Errorf("render %s prompt: %w", name, err)
	}

	return &Prompt{
		System:      strings.TrimSpace(sys.String()),
		Text:        strings.TrimSpace(body.String()),
		Temperature: c.meta.Temperature,
		UseMini:     c.meta.UseMini,
	}, nil
}

func (pm *PromptManager) Names() []string {
	names := make([]string, 0, len(pm.prompts))
	for name := range pm.prompts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// loadPrompts loads all YAML prompt files from the embedded filesystem
func (pm *PromptManager) loadPrompts() error {
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return fmt.Errorf("failed to read templates directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		data, err := templateFS.ReadFile("templates/" + entry.Name())
		if err != nil {
			return fmt.Errorf("failed to read template file %s: %w", entry.Name(), err)
		}

		var pt PromptTemplate
		if err := yaml.Unmarshal(data, &pt); err != nil {
			return fmt.Errorf("failed to parse template file %s: %w", entry.Name(), err)
		}
		if strings.TrimSpace(pt.Prompt) == "" {
			return fmt.Errorf("template %s has an empty prompt", entry.Name())
		}

		name := strings.TrimSuffix(entry.Name(), ".yaml")
		sys, err := template.New(name + ".system").Funcs(funcs).Option("missingkey=error").Parse(pt.System)
		if err != nil {
			return fmt.Errorf("failed to compile %s system prompt: %w", name, err)
		}
		body, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(pt.Prompt)
		if err != nil {
			return fmt.Errorf("failed to compile %s prompt: %w", name, err)
		}
		pm.prompts[name] = &compiled{meta: pt, system: sys, prompt: body}
	}

	return nil
}
