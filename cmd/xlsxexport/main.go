// Command xlsxexport streams database and document store rows into XLSX
// workbooks from the command line.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Polyconseil/xlsx-streaming/internal/bootstrap"
	"github.com/Polyconseil/xlsx-streaming/internal/config"
	"github.com/Polyconseil/xlsx-streaming/internal/database"
	"github.com/Polyconseil/xlsx-streaming/internal/logger"
	"github.com/Polyconseil/xlsx-streaming/internal/service"
	"github.com/Polyconseil/xlsx-streaming/pkg/exportjob"
	"github.com/Polyconseil/xlsx-streaming/pkg/xlsxstream"
	"github.com/spf13/cobra"
)

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	envFile    string
	jobsFile   string
	driver     string
	sqlitePath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "xlsxexport",
		Short:         "Stream rows into XLSX workbooks",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env", ".env", "Environment file")
	rootCmd.PersistentFlags().StringVar(&opts.jobsFile, "jobs", "", "Jobs file (env: JOBS_FILE)")
	rootCmd.PersistentFlags().StringVar(&opts.driver, "driver", "", "Database driver: postgres, sqlite3 (env: DB_DRIVER)")
	rootCmd.PersistentFlags().StringVar(&opts.sqlitePath, "sqlite-path", "", "sqlite3 database file (env: SQLITE_PATH)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (env: LOG_LEVEL)")

	rootCmd.AddCommand(newExportCmd(), newJobsCmd(), newInspectCmd())
	return rootCmd
}

// setup loads the environment, then lets the flags override it.
func (o *globalOptions) setup() error {
	if err := config.LoadEnvConfig(o.envFile); err != nil {
		return fmt.Errorf("loading env config: %w", err)
	}
	cfg := config.DefaultEnvConfig
	if o.jobsFile != "" {
		cfg.JOBS_FILE = o.jobsFile
	}
	if o.driver != "" {
		cfg.DB_DRIVER = o.driver
	}
	if o.sqlitePath != "" {
		cfg.SQLITE_PATH = o.sqlitePath
	}
	if o.logLevel != "" {
		cfg.LOG_LEVEL = o.logLevel
	}

	logger.InitLogging(cfg.LOG_FILE_PATH, cfg.LOG_LEVEL)

	loc, err := cfg.ExportLocation()
	if err != nil {
		return fmt.Errorf("invalid EXPORT_TIMEZONE: %w", err)
	}
	xlsxstream.SetExportTimezone(loc)
	if cfg.EXPORT_BATCH_SIZE > 0 {
		exportjob.DefaultBatchSize = cfg.EXPORT_BATCH_SIZE
	}
	return nil
}

// openSources connects the backends the job reads from.
func openSources(ctx context.Context, job *exportjob.Job) (service.Sources, func(), error) {
	cfg := config.DefaultEnvConfig
	sources := service.Sources{ScrollKeepAlive: cfg.ELASTIC_SCROLL}
	closers := []func(){}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	var err error
	switch job.Source.Kind {
	case exportjob.SourceSQLPaged, exportjob.SourceSQLCursor:
		if sources.DB, err = database.Open(ctx, bootstrap.DatabaseConfig()); err != nil {
			return sources, closeAll, err
		}
		closers = append(closers, func() { sources.DB.Close() })
	case exportjob.SourceElastic:
		if cfg.ELASTIC_URL == "" {
			return sources, closeAll, fmt.Errorf("%w: ELASTIC_URL is not set", service.ErrSourceUnavailable)
		}
		if sources.Elastic, err = database.NewElasticSearchClient(cfg.ELASTIC_URL); err != nil {
			return sources, closeAll, err
		}
	case exportjob.SourceDatastore:
		if cfg.DATASTORE_PROJECT == "" {
			return sources, closeAll, fmt.Errorf("%w: DATASTORE_PROJECT is not set", service.ErrSourceUnavailable)
		}
		if sources.Datastore, err = database.NewDatastoreClient(ctx, cfg.DATASTORE_PROJECT); err != nil {
			return sources, closeAll, err
		}
		closers = append(closers, func() { sources.Datastore.Close() })
	}
	return sources, closeAll, nil
}
