package model

import "time"

// Document is the immutable record produced by the loader for one exported
// HTML file. The pipeline only reads it and pairs it with an outcome.
type Document struct {
	SourcePath  string    `json:"source_path"`
	Title       string    `json:"title"`
	Breadcrumb  []string  `json:"breadcrumb,omitempty"`
	Text        string    `json:"text"`
	Fingerprint string    `json:"fingerprint"`
	LoadedAt    time.Time `json:"loaded_at"`
}

// ID returns the namespace-local document identifier used for fingerprint
// records and graph nodes. The source path is unique within an export folder.
func (d Document) ID() string {
	return d.SourcePath
}
