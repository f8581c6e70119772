package model

// MergeProposal is a candidate duplicate-entity pair raised by the curation
// engine. It lives only for the run that created it and is consumed exactly
// once.
type MergeProposal struct {
	EntityType string  `json:"entity_type"`
	NameA      string  `json:"name_a"`
	NameB      string  `json:"name_b"`
	Similarity float64 `json:"similarity"`
	Suggested  string  `json:"suggested"`
}

// Decision resolves a MergeProposal. CanonicalName is meaningful only when
// Accept is true; an empty CanonicalName falls back to the suggested form.
type Decision struct {
	Accept        bool   `json:"accept"`
	CanonicalName string `json:"canonical_name,omitempty"`
}
