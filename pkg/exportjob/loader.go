package exportjob

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Polyconseil/xlsx-streaming/pkg/xlsxstream"
	"github.com/klauspost/compress/zip"
	"gopkg.in/yaml.v3"
)

// DefaultBatchSize is the batch size of jobs that set none, neither
// themselves nor in the file defaults.
var DefaultBatchSize = xlsxstream.DefaultBatchSize

// LoadJobs loads export jobs from a YAML file. Relative template and query
// file paths are resolved against the directory of path.
func LoadJobs(path string) (*JobsFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening jobs file: %w", err)
	}
	defer file.Close()

	jobs, err := LoadJobsFromReader(file)
	if err != nil {
		return nil, err
	}
	jobs.baseDir = filepath.Dir(path)
	return jobs, nil
}

// LoadJobsFromReader loads export jobs from an io.Reader
func LoadJobsFromReader(r io.Reader) (*JobsFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading jobs: %w", err)
	}

	var jobs JobsFile
	if err := yaml.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("parsing YAML jobs: %w", err)
	}

	jobs.applyDefaults()

	if err := ValidateJobs(&jobs); err != nil {
		return nil, fmt.Errorf("validating jobs: %w", err)
	}

	return &jobs, nil
}

// LoadJobsFromString loads export jobs from a YAML string
func LoadJobsFromString(yamlContent string) (*JobsFile, error) {
	return LoadJobsFromReader(strings.NewReader(yamlContent))
}

// NewJobsFile builds a jobs file from jobs defined in code. Relative
// paths resolve against baseDir.
func NewJobsFile(baseDir string, jobs ...Job) (*JobsFile, error) {
	f := &JobsFile{Jobs: jobs, baseDir: baseDir}
	f.applyDefaults()
	if err := ValidateJobs(f); err != nil {
		return nil, fmt.Errorf("validating jobs: %w", err)
	}
	return f, nil
}

// ValidateJobs checks the job definitions. Invalid export settings are
// reported as xlsxstream.ErrConfiguration.
func ValidateJobs(f *JobsFile) error {
	if f == nil {
		return fmt.Errorf("jobs file is nil")
	}

	if len(f.Jobs) == 0 {
		return fmt.Errorf("jobs file must define at least one job")
	}

	names := make(map[string]bool, len(f.Jobs))
	for i := range f.Jobs {
		job := &f.Jobs[i]
		if job.Name == "" {
			return fmt.Errorf("job[%d]: name is required", i)
		}
		if names[job.Name] {
			return fmt.Errorf("job[%d]: duplicate job name '%s'", i, job.Name)
		}
		names[job.Name] = true

		if err := validateSource(&job.Source); err != nil {
			return fmt.Errorf("job '%s': %w", job.Name, err)
		}
		if _, err := job.Options(); err != nil {
			return fmt.Errorf("job '%s': %w", job.Name, err)
		}
	}

	return nil
}

func validateSource(s *SourceTemplate) error {
	switch s.Kind {
	case SourceSQLPaged:
		if s.Table == "" {
			return fmt.Errorf("sql_paged source: table is required")
		}
		if len(s.OrderBy) == 0 {
			return fmt.Errorf("sql_paged source: order_by is required for stable pages")
		}
		if s.Query != "" || s.QueryFile != "" {
			return fmt.Errorf("sql_paged source: query cannot be used, use table and where")
		}
	case SourceSQLCursor:
		if s.Query != "" && s.QueryFile != "" {
			return fmt.Errorf("sql_cursor source: cannot specify both query and query_file")
		}
		if s.Query == "" && s.QueryFile == "" && s.Table == "" {
			return fmt.Errorf("sql_cursor source: one of query, query_file or table is required")
		}
	case SourceElastic:
		if s.Index == "" {
			return fmt.Errorf("elastic source: index is required")
		}
	case SourceDatastore:
		if s.Entity == "" {
			return fmt.Errorf("datastore source: entity is required")
		}
	case "":
		return fmt.Errorf("source kind is required")
	default:
		return fmt.Errorf("unknown source kind '%s'", s.Kind)
	}

	// Documents have no column order of their own
	if len(s.Columns) == 0 && (s.Kind != SourceSQLCursor || s.Table != "") {
		return fmt.Errorf("%s source: columns are required", s.Kind)
	}

	colNames := make(map[string]bool, len(s.Columns))
	for _, col := range s.Columns {
		if col == "" {
			return fmt.Errorf("%s source: empty column name", s.Kind)
		}
		if colNames[col] {
			return fmt.Errorf("%s source: duplicate column '%s'", s.Kind, col)
		}
		colNames[col] = true
	}
	return nil
}

// applyDefaults fills unset job settings from the file defaults.
func (f *JobsFile) applyDefaults() {
	if f.Version == "" {
		f.Version = "1.0"
	}

	if f.Variables == nil {
		f.Variables = make(map[string]string)
	}

	defaults := JobDefaults{}
	if f.Defaults != nil {
		defaults = *f.Defaults
	}

	for i := range f.Jobs {
		job := &f.Jobs[i]
		if job.BatchSize == 0 {
			job.BatchSize = defaults.BatchSize
		}
		if job.BatchSize == 0 {
			job.BatchSize = DefaultBatchSize
		}
		if job.Encoding == "" {
			job.Encoding = defaults.Encoding
		}
		if job.MismatchPolicy == "" {
			job.MismatchPolicy = defaults.MismatchPolicy
		}
		if job.Compression == "" {
			job.Compression = defaults.Compression
		}
		if job.Date1904 == nil {
			date1904 := defaults.Date1904
			job.Date1904 = &date1904
		}
		if job.FileName == "" && job.Name != "" {
			job.FileName = job.Name + ".xlsx"
		}
	}
}

// Job returns the job called name.
func (f *JobsFile) Job(name string) (*Job, bool) {
	for i := range f.Jobs {
		if f.Jobs[i].Name == name {
			return &f.Jobs[i], true
		}
	}
	return nil, false
}

// ResolvePath makes p relative to the jobs file directory.
func (f *JobsFile) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || f.baseDir == "" {
		return p
	}
	return filepath.Join(f.baseDir, p)
}

// ResolveVariables substitutes ${VAR_NAME} placeholders in the job queries,
// arguments and file names. Runtime variables take precedence over the file ones.
func (f *JobsFile) ResolveVariables(runtimeVars map[string]any) {
	merged := make(map[string]string, len(f.Variables)+len(runtimeVars))
	for k, v := range f.Variables {
		merged[k] = v
	}
	for k, v := range runtimeVars {
		merged[k] = fmt.Sprintf("%v", v)
	}

	for i := range f.Jobs {
		job := &f.Jobs[i]
		job.FileName = resolveString(job.FileName, merged)
		job.Source.Where = resolveString(job.Source.Where, merged)
		job.Source.Query = resolveString(job.Source.Query, merged)
		for j := range job.Source.Args {
			job.Source.Args[j] = resolveString(job.Source.Args[j], merged)
		}
	}
}

// resolveString replaces ${VAR} placeholders in a string
func resolveString(s string, vars map[string]string) string {
	result := s
	for k, v := range vars {
		result = strings.ReplaceAll(result, "${"+k+"}", v)
	}
	return result
}

// LoadTemplate reads the job's template workbook. A job without template
// returns nil, which exports against the default workbook.
func (f *JobsFile) LoadTemplate(job *Job) ([]byte, error) {
	if job.Template == "" {
		return nil, nil
	}
	path := f.ResolvePath(job.Template)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template '%s': %w", path, err)
	}
	return data, nil
}

// LoadQuery returns the SQL of a sql_cursor job, reading query_file if set.
func (f *JobsFile) LoadQuery(job *Job) (string, error) {
	if job.Source.QueryFile == "" {
		return job.Source.Query, nil
	}
	path := f.ResolvePath(job.Source.QueryFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading query file '%s': %w", path, err)
	}
	return string(data), nil
}

// Options converts the job settings to export options.
func (j *Job) Options() ([]xlsxstream.ExportOption, error) {
	opts := []xlsxstream.ExportOption{xlsxstream.WithBatchSize(j.BatchSize)}

	if j.Encoding != "" {
		opts = append(opts, xlsxstream.WithEncoding(j.Encoding))
	}
	if len(j.Only) > 0 {
		opts = append(opts, xlsxstream.WithOnly(j.Only...))
	}
	if len(j.Exclude) > 0 {
		opts = append(opts, xlsxstream.WithExclude(j.Exclude...))
	}
	if j.Date1904 != nil {
		opts = append(opts, xlsxstream.WithDate1904(*j.Date1904))
	}

	policy, err := xlsxstream.ParseMismatchPolicy(j.MismatchPolicy)
	if err != nil {
		return nil, err
	}
	opts = append(opts, xlsxstream.WithMismatchPolicy(policy))

	switch strings.ToLower(j.Compression) {
	case "", "deflate":
		opts = append(opts, xlsxstream.WithCompression(zip.Deflate))
	case "store":
		opts = append(opts, xlsxstream.WithCompression(zip.Store))
	default:
		return nil, fmt.Errorf("%w: unknown compression '%s'", xlsxstream.ErrConfiguration, j.Compression)
	}

	if _, err := xlsxstream.NewExportConfig(opts...); err != nil {
		return nil, err
	}
	return opts, nil
}
