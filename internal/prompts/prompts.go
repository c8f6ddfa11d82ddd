// Package prompts loads the stage prompt templates used by the exam-prep
// workflow.
package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Template names.
const (
	FetchSource       = "fetch_source"
	Analyze           = "analyze"
	ExtractTopics     = "extract_topics"
	GenerateQuery     = "generate_query"
	GenericQuery      = "generic_query"
	StructureResponse = "structure_response"
)

var required = []string{FetchSource, Analyze, ExtractTopics, GenerateQuery, GenericQuery, StructureResponse}

//go:embed default.yaml
var defaultYAML []byte

// Data is the set of values a template may reference.
type Data struct {
	Board      string
	ClassLevel string
	Department string
	Subject    string
	Source     string
	Analysis   string
	Topic      string
	Facets     []string
	TopicsJSON string
}

type file struct {
	System    string            `yaml:"system"`
	Facets    []string          `yaml:"facets"`
	Templates map[string]string `yaml:"templates"`
}

// Set is a parsed prompt set.
type Set struct {
	system    string
	facets    []string
	templates map[string]*template.Template
}

// Default returns the embedded prompt set.
func Default() (*Set, error) {
	var f file
	if err := yaml.Unmarshal(defaultYAML, &f); err != nil {
		return nil, fmt.Errorf("parsing default prompts: %w", err)
	}
	return build(f)
}

// Load reads a YAML prompt file and lays it over the embedded defaults.
// Keys absent from the file keep their default value.
func Load(path string) (*Set, error) {
	var base file
	if err := yaml.Unmarshal(defaultYAML, &base); err != nil {
		return nil, fmt.Errorf("parsing default prompts: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompts: %w", err)
	}
	var override file
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parsing prompts %s: %w", path, err)
	}

	if strings.TrimSpace(override.System) != "" {
		base.System = override.System
	}
	if len(override.Facets) > 0 {
		base.Facets = override.Facets
	}
	for name, text := range override.Templates {
		if _, known := base.Templates[name]; !known {
			slog.Warn("ignoring unknown prompt template", "path", path, "name", name)
			continue
		}
		base.Templates[name] = text
	}

	set, err := build(base)
	if err != nil {
		return nil, fmt.Errorf("loading prompts %s: %w", path, err)
	}
	slog.Info("prompts loaded", "path", path, "overrides", len(override.Templates))
	return set, nil
}

func build(f file) (*Set, error) {
	if strings.TrimSpace(f.System) == "" {
		return nil, fmt.Errorf("system prompt is empty")
	}
	if len(f.Facets) == 0 {
		return nil, fmt.Errorf("no query facets defined")
	}
	s := &Set{
		system:    strings.TrimSpace(f.System),
		facets:    f.Facets,
		templates: make(map[string]*template.Template, len(required)),
	}
	for _, name := range required {
		text, ok := f.Templates[name]
		if !ok || strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("template %q is missing", name)
		}
		tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parsing template %q: %w", name, err)
		}
		s.templates[name] = tmpl
	}
	return s, nil
}

// System returns the system prompt shared by every stage.
func (s *Set) System() string {
	return s.system
}

// Facets returns the query facets, one per generated search query.
func (s *Set) Facets() []string {
	return append([]string(nil), s.facets...)
}

// Render executes the named template.
func (s *Set) Render(name string, d Data) (string, error) {
	tmpl, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
