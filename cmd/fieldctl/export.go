package main

import (
	"github.com/artpar/fieldschema/core/formatter"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <module>",
	Short: "Print the current schema snapshot",
	Long: `Print the current schema of a module, including custom fields.

Formats:
  json  the snapshot as stored
  yaml  the snapshot as YAML

Examples:
  fieldctl export teacher
  fieldctl export student --format yaml > student-schema.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

var (
	exportFormat  string
	exportCompact bool
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format (json, yaml)")
	exportCmd.Flags().BoolVar(&exportCompact, "compact", false, "minimize whitespace")
}

func runExport(cmd *cobra.Command, args []string) error {
	f, err := formatter.Lookup(exportFormat)
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := a.Store(args[0])
	if err != nil {
		return err
	}
	return f.Format(cmd.OutOrStdout(), store.Snapshot(), formatter.FormatOptions{Compact: exportCompact})
}
