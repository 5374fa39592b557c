package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print schema metrics in Prometheus text format",
	Long: `Print the current field counts per module in Prometheus text format.

Requires metrics.enabled in the config. Output can be written to a file
picked up by the node exporter textfile collector.

Examples:
  fieldctl metrics > /var/lib/node_exporter/fieldschema.prom`,
	Args: cobra.NoArgs,
	RunE: runMetrics,
}

func init() {
	rootCmd.AddCommand(metricsCmd)
}

func runMetrics(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.Metrics == nil {
		return fmt.Errorf("metrics are disabled (metrics.enabled: false)")
	}
	return a.Metrics.WriteText(cmd.OutOrStdout())
}
