package domain

import "time"

// JobSummary describes an export job in listings.
type JobSummary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source"`
	FileName    string `json:"file_name"`
	Template    string `json:"template,omitempty"`
	BatchSize   int    `json:"batch_size"`
}

// ExportResult reports a finished export.
type ExportResult struct {
	Job      string        `json:"job"`
	FileName string        `json:"file_name"`
	Bytes    int64         `json:"bytes"`
	Duration time.Duration `json:"duration"`
}
