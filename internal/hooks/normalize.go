package hooks

import (
	"context"
	"strings"

	"github.com/latticehq/lattice/internal/model"
)

// defaultAbbreviations maps common short forms seen in exported technical
// documentation to their canonical long forms. Built once at init, read-only
// afterwards.
var defaultAbbreviations = map[string]string{
	"k8s":      "Kubernetes",
	"tf":       "Terraform",
	"pg":       "PostgreSQL",
	"postgres": "PostgreSQL",
	"es":       "Elasticsearch",
	"gh":       "GitHub",
	"js":       "JavaScript",
	"ts":       "TypeScript",
	"ml":       "Machine Learning",
	"ci":       "Continuous Integration",
	"cd":       "Continuous Delivery",
	"iam":      "Identity and Access Management",
	"vm":       "Virtual Machine",
	"db":       "Database",
}

// NormalizationHook rewrites entity names whose normalized form exactly
// matches a known abbreviation. Matching is case-insensitive and token-exact:
// "K8S" rewrites, "k8s-operator" does not.
func NormalizationHook(abbreviations map[string]string) BeforeStoreFunc {
	if abbreviations == nil {
		abbreviations = defaultAbbreviations
	}
	return func(ctx context.Context, doc model.Document, entities []model.Entity) error {
		for i := range entities {
			key := strings.ToLower(strings.TrimSpace(entities[i].Name))
			if canonical, ok := abbreviations[key]; ok {
				entities[i].Name = canonical
			}
		}
		return nil
	}
}

// RegisterDefaults wires the hooks every pipeline carries.
func RegisterDefaults(r *Registry) {
	r.RegisterBeforeStore("normalize-abbreviations", NormalizationHook(nil))
}
