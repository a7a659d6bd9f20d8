package model

import "time"

// ExportMetadata heads a subset export document.
type ExportMetadata struct {
	ExportDate time.Time `json:"exportDate"`
	Count      int       `json:"count"`
	Version    int       `json:"version"`
}

// SubsetExport bags selected quizzes with repository-internal fields stripped,
// so re-importing the file is treated as a fresh import rather than a duplicate
// of the exporting record's identity.
type SubsetExport struct {
	Metadata ExportMetadata  `json:"metadata"`
	Quizzes  map[string]Quiz `json:"quizzes"`
}

// LibraryExport is the full-library backup shape.
type LibraryExport struct {
	Quizzes    map[string]Record   `json:"quizzes"`
	Results    map[string][]Result `json:"results"`
	ExportedAt time.Time           `json:"exportedAt"`
}

// ResultExportQuiz is the quiz header carried by a single-attempt export.
type ResultExportQuiz struct {
	Title   string `json:"title"`
	Subject string `json:"subject"`
	Source  string `json:"source,omitempty"`
}

// ResultExport is the flatter shape for exporting one completed attempt.
type ResultExport struct {
	Quiz       ResultExportQuiz `json:"quiz"`
	Results    Result           `json:"results"`
	ExportedAt time.Time        `json:"exportedAt"`
}
