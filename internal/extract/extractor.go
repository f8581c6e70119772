package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/latticehq/lattice/internal/llm"
	"github.com/latticehq/lattice/internal/model"
	"github.com/latticehq/lattice/internal/schema"
)

const entityPrompt = `You are an entity extraction system for technical documentation.

Entity types:
%s
Document title: %s
Document content:
%s

Extract every entity of the listed types mentioned in the document.
Return a JSON object with key "entities", a list of objects with fields:
"name" (string), "type" (one of the type names above), "confidence" (float in [0,1]),
and optional "relations": a list of {"target": <entity name>, "kind": <verb phrase>, "fact": <one sentence>}.

Example JSON:
{
  "entities": [
    {"name": "Kubernetes", "type": "Technology", "confidence": 0.95,
     "relations": [{"target": "Helm", "kind": "DEPLOYED_WITH", "fact": "Kubernetes workloads are deployed with Helm."}]}
  ]
}
`

// Extractor drives one LLM call per document and parses the result.
type Extractor struct {
	LLM    llm.Client
	Schema *schema.Schema
}

func NewExtractor(client llm.Client, s *schema.Schema) *Extractor {
	if s == nil {
		s = schema.DefaultSchema()
	}
	return &Extractor{LLM: client, Schema: s}
}

// Extract returns the entities found in doc, restricted to allowedTypes when
// non-empty. Failures come back as *model.ExtractionError.
func (e *Extractor) Extract(ctx context.Context, doc model.Document, allowedTypes []string) ([]model.Entity, model.ExtractionMetadata, error) {
	prompt := fmt.Sprintf(entityPrompt, e.Schema.PromptHints(allowedTypes), doc.Title, doc.Text)

	start := time.Now()
	response, usage, err := e.LLM.Generate(ctx, prompt)
	meta := model.ExtractionMetadata{
		TokensUsed: usage.TotalTokens,
		Elapsed:    time.Since(start).Seconds(),
		ModelID:    usage.Model,
	}
	if err != nil {
		return nil, meta, &model.ExtractionError{DocID: doc.ID(), Err: err}
	}

	result, err := ParseJSON[model.ExtractionResult](response)
	if err != nil {
		return nil, meta, &model.ExtractionError{DocID: doc.ID(), Err: fmt.Errorf("malformed model response: %w", err)}
	}

	entities := result.Entities
	if len(allowedTypes) > 0 {
		entities = filterTypes(entities, allowedTypes)
	}
	return entities, meta, nil
}

// filterTypes drops entities whose type is outside the allowed set; the model
// does not always respect the restriction in the prompt.
func filterTypes(entities []model.Entity, allowed []string) []model.Entity {
	kept := entities[:0]
	for _, ent := range entities {
		for _, t := range allowed {
			if strings.EqualFold(ent.Type, t) {
				kept = append(kept, ent)
				break
			}
		}
	}
	return kept
}
