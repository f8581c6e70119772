package model

// Entity is a single extraction result for one document. Entities are mutable
// only through hook transformations (name rewrite, merge) before persistence.
type Entity struct {
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	Confidence float64    `json:"confidence"`
	Relations  []Relation `json:"relations,omitempty"`
}

// Relation references another entity extracted from the same document.
type Relation struct {
	Target string `json:"target"`
	Kind   string `json:"kind"`
	Fact   string `json:"fact,omitempty"`
}

// ExtractionResult matches the JSON object the extraction prompt asks the
// model to emit.
type ExtractionResult struct {
	Entities []Entity `json:"entities"`
}

// ExtractionMetadata reports what one extraction call cost.
type ExtractionMetadata struct {
	TokensUsed int     `json:"tokens_used"`
	Elapsed    float64 `json:"elapsed_seconds"`
	ModelID    string  `json:"model_id"`
}
