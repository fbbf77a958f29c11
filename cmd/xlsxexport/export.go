package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Polyconseil/xlsx-streaming/internal/config"
	"github.com/Polyconseil/xlsx-streaming/internal/logger"
	"github.com/Polyconseil/xlsx-streaming/internal/service"
	"github.com/Polyconseil/xlsx-streaming/pkg/exportjob"
	"github.com/spf13/cobra"
)

type exportOptions struct {
	table          string
	query          string
	where          string
	args           []string
	columns        []string
	orderBy        []string
	template       string
	out            string
	vars           map[string]string
	batchSize      int
	encoding       string
	only           []string
	exclude        []string
	mismatchPolicy string
	compression    string
	date1904       bool
}

func newExportCmd() *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export [job]",
		Short: "Export a configured job, or a table or query given by flags",
		Example: `  xlsxexport export employees --var SINCE=2020-01-01
  xlsxexport export --table employees --columns id,name --order-by id --out employees.xlsx
  xlsxexport export --query "SELECT name, hired FROM employees" --template report.xlsx --out report.xlsx`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.table, "table", "", "Table to export")
	f.StringVar(&opts.query, "query", "", "SQL query to export")
	f.StringVar(&opts.where, "where", "", "Filter of the exported table, with ? placeholders")
	f.StringArrayVar(&opts.args, "arg", nil, "Value of a where placeholder (repeatable)")
	f.StringSliceVar(&opts.columns, "columns", nil, "Exported columns, in order")
	f.StringSliceVar(&opts.orderBy, "order-by", nil, "Ordering of the table, pages the export when set")
	f.StringVar(&opts.template, "template", "", "Template workbook")
	f.StringVarP(&opts.out, "out", "o", "", "Output file (default: the job file name)")
	f.StringToStringVar(&opts.vars, "var", nil, "Job variable NAME=VALUE (repeatable)")
	f.IntVar(&opts.batchSize, "batch-size", 0, "Rows per batch")
	f.StringVar(&opts.encoding, "encoding", "", "Worksheet encoding")
	f.StringSliceVar(&opts.only, "only", nil, "Archive entries to keep")
	f.StringSliceVar(&opts.exclude, "exclude", nil, "Archive entries to drop")
	f.StringVar(&opts.mismatchPolicy, "mismatch-policy", "", "degrade_row, degrade_cell or fail_fast")
	f.StringVar(&opts.compression, "compression", "", "deflate or store")
	f.BoolVar(&opts.date1904, "date-1904", false, "Use the 1904 date system")

	return cmd
}

func runExport(cmd *cobra.Command, opts *exportOptions, args []string) error {
	ctx := cmd.Context()

	jobs, err := opts.jobs(args)
	if err != nil {
		return err
	}
	vars := make(map[string]any, len(opts.vars))
	for k, v := range opts.vars {
		vars[k] = v
	}
	jobs.ResolveVariables(vars)

	job := &jobs.Jobs[0]
	if len(args) == 1 {
		job, _ = jobs.Job(args[0])
	}
	opts.override(cmd, job)

	var template []byte
	if opts.template != "" {
		if template, err = os.ReadFile(opts.template); err != nil {
			return fmt.Errorf("reading template: %w", err)
		}
	}

	sources, closeSources, err := openSources(ctx, job)
	defer closeSources()
	if err != nil {
		return err
	}

	out := opts.out
	if out == "" {
		out = job.FileName
	}
	file, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}

	result, err := service.NewExportService(jobs, sources).Stream(ctx, job.Name, file, template)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(out)
		return err
	}

	logger.DebugLog(ctx, "export of %s finished", job.Name)
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d bytes written in %s\n", out, result.Bytes, result.Duration.Round(time.Millisecond))
	return nil
}

// jobs returns the named job of the jobs file, or a single job built from
// the source flags.
func (o *exportOptions) jobs(args []string) (*exportjob.JobsFile, error) {
	if len(args) == 1 {
		if o.table != "" || o.query != "" {
			return nil, fmt.Errorf("--table and --query cannot be used with a job name")
		}
		jobs, err := exportjob.LoadJobs(config.DefaultEnvConfig.JOBS_FILE)
		if err != nil {
			return nil, err
		}
		if _, ok := jobs.Job(args[0]); !ok {
			return nil, fmt.Errorf("%w: %s", service.ErrJobNotFound, args[0])
		}
		return jobs, nil
	}

	src := exportjob.SourceTemplate{
		Table:   o.table,
		Where:   o.where,
		Args:    o.args,
		Query:   o.query,
		Columns: o.columns,
		OrderBy: o.orderBy,
		Kind:    exportjob.SourceSQLCursor,
	}
	switch {
	case o.table == "" && o.query == "":
		return nil, fmt.Errorf("a job name, --table or --query is required")
	case o.table != "" && len(o.orderBy) > 0:
		src.Kind = exportjob.SourceSQLPaged
	}

	name := "export"
	if o.table != "" {
		name = strings.ReplaceAll(o.table, ".", "_")
	}
	return exportjob.NewJobsFile("", exportjob.Job{Name: name, Source: src})
}

// override applies the export settings given on the command line to job.
func (o *exportOptions) override(cmd *cobra.Command, job *exportjob.Job) {
	f := cmd.Flags()
	if f.Changed("batch-size") {
		job.BatchSize = o.batchSize
	}
	if f.Changed("encoding") {
		job.Encoding = o.encoding
	}
	if f.Changed("only") {
		job.Only = o.only
	}
	if f.Changed("exclude") {
		job.Exclude = o.exclude
	}
	if f.Changed("mismatch-policy") {
		job.MismatchPolicy = o.mismatchPolicy
	}
	if f.Changed("compression") {
		job.Compression = o.compression
	}
	if f.Changed("date-1904") {
		job.Date1904 = &o.date1904
	}
}
