package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/shift-clock/internal/export"
)

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all records",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Output format: json, csv, xlsx")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to a file instead of stdout (required for xlsx)")
}

func runExport(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	e := loadEnv()
	defer e.finish(nil)

	if exportFormat == "xlsx" && exportOutput == "" {
		e.refuse(nil, "--format xlsx needs --output FILE")
	}
	records := e.records()

	if exportOutput == "" {
		if err := export.Write(w, exportFormat, records); err != nil {
			exitErr(1, err)
		}
		return nil
	}

	f, err := os.Create(exportOutput)
	if err != nil {
		exitErr(2, err)
	}
	if err := export.Write(f, exportFormat, records); err != nil {
		f.Close()
		os.Remove(exportOutput)
		exitErr(1, err)
	}
	if err := f.Close(); err != nil {
		exitErr(2, err)
	}
	fmt.Fprintf(w, "Exported %d records to %s.\n", len(records), exportOutput)
	return nil
}
