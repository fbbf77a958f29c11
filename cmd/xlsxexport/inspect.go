package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Polyconseil/xlsx-streaming/pkg/xlsxstream"
	"github.com/spf13/cobra"
)

// templateReport is the JSON form of xlsxstream.TemplateInfo.
type templateReport struct {
	SheetName   string            `json:"worksheet"`
	Fallback    bool              `json:"fallback"`
	Entries     []string          `json:"entries"`
	HeaderCells int               `json:"header_cells"`
	RowKinds    []string          `json:"row_kinds"`
	FrozenPane  map[string]string `json:"frozen_pane,omitempty"`
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <template.xlsx>",
		Short: "Show how a template workbook is used by exports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("file not found: %s", args[0])
			}

			info, err := xlsxstream.Inspect(cmd.Context(), data)
			if err != nil {
				return err
			}

			report := templateReport{
				SheetName:   info.SheetName,
				Fallback:    info.Fallback,
				Entries:     info.Entries,
				HeaderCells: info.HeaderCells,
				RowKinds:    make([]string, len(info.RowKinds)),
				FrozenPane:  info.FrozenPane,
			}
			for i, k := range info.RowKinds {
				report.RowKinds[i] = k.String()
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}
