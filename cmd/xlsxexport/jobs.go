package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/Polyconseil/xlsx-streaming/internal/config"
	"github.com/Polyconseil/xlsx-streaming/internal/service"
	"github.com/Polyconseil/xlsx-streaming/pkg/exportjob"
	"github.com/spf13/cobra"
)

func newJobsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List the jobs of the jobs file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := exportjob.LoadJobs(config.DefaultEnvConfig.JOBS_FILE)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSOURCE\tFILE\tBATCH\tDESCRIPTION")
			for _, job := range service.NewExportService(jobs, service.Sources{}).ListJobs() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", job.Name, job.Source, job.FileName, job.BatchSize, job.Description)
			}
			return w.Flush()
		},
	}
}
