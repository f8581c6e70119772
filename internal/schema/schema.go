package schema

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// EntityType describes one extractable entity kind. Definitions ship as YAML
// files next to the binary and feed the extraction prompt.
type EntityType struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Examples    []string `yaml:"examples,omitempty"`
}

type Schema struct {
	Types []EntityType `yaml:"types"`
}

// Load reads and validates an entity-type definition file.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}

	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Schema) validate() error {
	if len(s.Types) == 0 {
		return fmt.Errorf("schema defines no entity types")
	}
	seen := make(map[string]bool, len(s.Types))
	for _, t := range s.Types {
		if t.Name == "" {
			return fmt.Errorf("schema contains a type with no name")
		}
		key := strings.ToLower(t.Name)
		if seen[key] {
			return fmt.Errorf("duplicate entity type %q", t.Name)
		}
		seen[key] = true
	}
	return nil
}

// Names returns the defined type names in file order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Types))
	for i, t := range s.Types {
		names[i] = t.Name
	}
	return names
}

// Has reports whether name is a defined type, case-insensitively.
func (s *Schema) Has(name string) bool {
	for _, t := range s.Types {
		if strings.EqualFold(t.Name, name) {
			return true
		}
	}
	return false
}

// PromptHints renders the type list for inclusion in the extraction prompt.
func (s *Schema) PromptHints(restrict []string) string {
	var b strings.Builder
	for _, t := range s.Types {
		if len(restrict) > 0 && !containsFold(restrict, t.Name) {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s", t.Name, t.Description)
		if len(t.Examples) > 0 {
			fmt.Fprintf(&b, " (e.g. %s)", strings.Join(t.Examples, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func containsFold(list []string, name string) bool {
	for _, s := range list {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// DefaultSchema is used when no definition file is configured.
func DefaultSchema() *Schema {
	return &Schema{Types: []EntityType{
		{Name: "Person", Description: "A named individual"},
		{Name: "Organization", Description: "A company, team, or institution"},
		{Name: "Technology", Description: "A tool, platform, language, or system"},
		{Name: "Product", Description: "A named product or service"},
		{Name: "Concept", Description: "A domain concept or process"},
	}}
}
