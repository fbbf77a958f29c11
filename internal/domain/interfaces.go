package domain

import (
	"context"
	"io"
)

// ExportService runs the configured export jobs.
type ExportService interface {
	ListJobs() []JobSummary
	// FileName returns the download name of a job.
	FileName(job string) (string, error)
	// Stream writes the workbook of job to w. A nil template uses the job's
	// own template file.
	Stream(ctx context.Context, job string, w io.Writer, template []byte) (*ExportResult, error)
}
