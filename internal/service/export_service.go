package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Polyconseil/xlsx-streaming/internal/database"
	"github.com/Polyconseil/xlsx-streaming/internal/domain"
	"github.com/Polyconseil/xlsx-streaming/internal/logger"
	"github.com/Polyconseil/xlsx-streaming/internal/repository"
	"github.com/Polyconseil/xlsx-streaming/pkg/exportjob"
	"github.com/Polyconseil/xlsx-streaming/pkg/xlsxstream"
)

var (
	// ErrJobNotFound is returned for a job name missing from the jobs file.
	ErrJobNotFound = errors.New("export job not found")
	// ErrSourceUnavailable is returned when the backend of a job is not configured.
	ErrSourceUnavailable = errors.New("row source not configured")
)

// ExportJobError reports the stage at which an export job failed.
type ExportJobError struct {
	Job   string
	Stage string
	Err   error
}

func (e *ExportJobError) Error() string {
	return fmt.Sprintf("export job '%s' failed at %s: %v", e.Job, e.Stage, e.Err)
}

func (e *ExportJobError) Unwrap() error {
	return e.Err
}

// Sources are the backends row sources are opened on. Any of them may be nil
// when no job uses it.
type Sources struct {
	DB              *sql.DB
	Elastic         *database.ElasticSearchClient
	Datastore       *database.DatastoreClient
	ScrollKeepAlive time.Duration
}

type exportService struct {
	jobs    *exportjob.JobsFile
	sources Sources
}

// NewExportService creates the service running the jobs of jobs.
func NewExportService(jobs *exportjob.JobsFile, sources Sources) domain.ExportService {
	if sources.ScrollKeepAlive <= 0 {
		sources.ScrollKeepAlive = 2 * time.Minute
	}
	return &exportService{jobs: jobs, sources: sources}
}

func (s *exportService) ListJobs() []domain.JobSummary {
	summaries := make([]domain.JobSummary, 0, len(s.jobs.Jobs))
	for _, job := range s.jobs.Jobs {
		summaries = append(summaries, domain.JobSummary{
			Name:        job.Name,
			Description: job.Description,
			Source:      string(job.Source.Kind),
			FileName:    job.FileName,
			Template:    job.Template,
			BatchSize:   job.BatchSize,
		})
	}
	return summaries
}

func (s *exportService) FileName(name string) (string, error) {
	job, ok := s.jobs.Job(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return job.FileName, nil
}

func (s *exportService) Stream(ctx context.Context, name string, w io.Writer, template []byte) (*domain.ExportResult, error) {
	job, ok := s.jobs.Job(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	ctx = logger.WithLogger(ctx, map[string]interface{}{"job": name})
	start := time.Now()

	opts, err := job.Options()
	if err != nil {
		return nil, &ExportJobError{Job: name, Stage: "configuration", Err: err}
	}

	if template == nil {
		if template, err = s.jobs.LoadTemplate(job); err != nil {
			return nil, &ExportJobError{Job: name, Stage: "template", Err: err}
		}
	}

	source, closeSource, err := s.openSource(job)
	if err != nil {
		return nil, &ExportJobError{Job: name, Stage: "source", Err: err}
	}
	defer closeSource()

	n, err := xlsxstream.ExportTo(ctx, w, source, template, opts...)
	if err != nil {
		logger.ErrorLogErr(ctx, err, "export failed after %d bytes", n)
		return nil, &ExportJobError{Job: name, Stage: "export", Err: err}
	}

	result := &domain.ExportResult{Job: name, FileName: job.FileName, Bytes: n, Duration: time.Since(start)}
	logger.InfoLog(ctx, "exported %s: %d bytes in %s", result.FileName, result.Bytes, result.Duration)
	return result, nil
}

// openSource opens the row source of job. The returned function releases it.
func (s *exportService) openSource(job *exportjob.Job) (any, func(), error) {
	src := job.Source
	noop := func() {}

	args := make([]interface{}, len(src.Args))
	for i, a := range src.Args {
		args[i] = a
	}
	table := repository.TableQuery{
		Table:   src.Table,
		Columns: src.Columns,
		Where:   src.Where,
		Args:    args,
		OrderBy: src.OrderBy,
	}

	switch src.Kind {
	case exportjob.SourceSQLPaged:
		if s.sources.DB == nil {
			return nil, nil, fmt.Errorf("%w: database", ErrSourceUnavailable)
		}
		return repository.NewSQLPager(s.sources.DB, table), noop, nil

	case exportjob.SourceSQLCursor:
		if s.sources.DB == nil {
			return nil, nil, fmt.Errorf("%w: database", ErrSourceUnavailable)
		}
		query, err := s.jobs.LoadQuery(job)
		if err != nil {
			return nil, nil, err
		}
		var cursor *repository.SQLCursor
		if query == "" {
			if cursor, err = repository.NewTableCursor(s.sources.DB, table); err != nil {
				return nil, nil, err
			}
		} else {
			cursor = repository.NewSQLCursor(s.sources.DB, query, args...)
		}
		return cursor, func() { cursor.Close() }, nil

	case exportjob.SourceElastic:
		if s.sources.Elastic == nil {
			return nil, nil, fmt.Errorf("%w: elasticsearch", ErrSourceUnavailable)
		}
		keepAlive := fmt.Sprintf("%ds", int(s.sources.ScrollKeepAlive.Seconds()))
		cursor := s.sources.Elastic.Cursor(src.Index, src.Columns, job.BatchSize, keepAlive)
		return cursor, func() { cursor.Close(context.Background()) }, nil

	case exportjob.SourceDatastore:
		if s.sources.Datastore == nil {
			return nil, nil, fmt.Errorf("%w: datastore", ErrSourceUnavailable)
		}
		cursor, err := s.sources.Datastore.Cursor(src.Entity, src.Namespace, src.Columns)
		if err != nil {
			return nil, nil, err
		}
		return cursor, noop, nil
	}
	return nil, nil, fmt.Errorf("unknown source kind '%s'", src.Kind)
}
