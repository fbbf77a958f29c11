package exportjob

// types.go - YAML-mappable types for export job definitions

// SourceKind names where a job reads its rows from.
type SourceKind string

const (
	// SourceSQLPaged pages through a table with LIMIT/OFFSET windows.
	SourceSQLPaged SourceKind = "sql_paged"
	// SourceSQLCursor runs one query and scans its rows forward.
	SourceSQLCursor SourceKind = "sql_cursor"
	// SourceElastic scrolls through an Elasticsearch index.
	SourceElastic SourceKind = "elastic"
	// SourceDatastore iterates a Cloud Datastore query.
	SourceDatastore SourceKind = "datastore"
)

// JobsFile is the complete YAML job configuration.
type JobsFile struct {
	Version   string            `yaml:"version"`
	Defaults  *JobDefaults      `yaml:"defaults,omitempty"`
	Variables map[string]string `yaml:"variables,omitempty"`
	Jobs      []Job             `yaml:"jobs"`

	// baseDir resolves relative template and query file paths.
	baseDir string
}

// JobDefaults holds settings applied to every job that does not set them.
type JobDefaults struct {
	BatchSize      int    `yaml:"batch_size,omitempty"`
	Encoding       string `yaml:"encoding,omitempty"`
	MismatchPolicy string `yaml:"mismatch_policy,omitempty"`
	Compression    string `yaml:"compression,omitempty"`
	Date1904       bool   `yaml:"date_1904,omitempty"`
}

// Job is one named export.
type Job struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Source      SourceTemplate `yaml:"source"`
	Template    string         `yaml:"template,omitempty"`  // xlsx file, relative to the jobs file
	FileName    string         `yaml:"file_name,omitempty"` // download name (defaults to <name>.xlsx)

	BatchSize      int      `yaml:"batch_size,omitempty"`
	Encoding       string   `yaml:"encoding,omitempty"`
	Only           []string `yaml:"only,omitempty"`
	Exclude        []string `yaml:"exclude,omitempty"`
	Date1904       *bool    `yaml:"date_1904,omitempty"` // Pointer to distinguish unset from false
	MismatchPolicy string   `yaml:"mismatch_policy,omitempty"`
	Compression    string   `yaml:"compression,omitempty"` // "deflate" or "store"
}

// SourceTemplate describes the row source of a job.
type SourceTemplate struct {
	Kind SourceKind `yaml:"kind"`

	// SQL sources
	Table     string   `yaml:"table,omitempty"`
	Where     string   `yaml:"where,omitempty"`
	Args      []string `yaml:"args,omitempty"` // Values or ${VAR} references for where placeholders
	OrderBy   []string `yaml:"order_by,omitempty"`
	Query     string   `yaml:"query,omitempty"`
	QueryFile string   `yaml:"query_file,omitempty"` // Load SQL from external file

	// Elasticsearch
	Index string `yaml:"index,omitempty"`

	// Datastore
	Entity    string `yaml:"entity,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`

	// Columns selects and orders the fields of every row.
	Columns []string `yaml:"columns,omitempty"`
}
