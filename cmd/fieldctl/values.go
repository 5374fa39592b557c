package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var valuesCmd = &cobra.Command{
	Use:   "values",
	Short: "Check submitted records against a schema",
}

var valuesCheckCmd = &cobra.Command{
	Use:   "check <module> <section>",
	Short: "Validate a JSON record against a section",
	Long: `Validate a JSON object keyed by field key against the current
schema of a section. Use --file - to read from standard input.

With --role, only fields visible to that role are accepted.

Examples:
  fieldctl values check class subjects --file subject.json
  echo '{"subject_name":"Maths"}' | fieldctl values check class subjects --file -`,
	Args: cobra.ExactArgs(2),
	RunE: runValuesCheck,
}

var (
	valuesFile string
	valuesRole string
)

func init() {
	rootCmd.AddCommand(valuesCmd)
	valuesCmd.AddCommand(valuesCheckCmd)

	valuesCheckCmd.Flags().StringVarP(&valuesFile, "file", "f", "-", "JSON record file, - for stdin")
	valuesCheckCmd.Flags().StringVar(&valuesRole, "role", "", "validate as this role")
}

func readRecord(cmd *cobra.Command) (map[string]any, error) {
	var (
		data []byte
		err  error
	)
	if valuesFile == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(valuesFile)
	}
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var record map[string]any
	if err := dec.Decode(&record); err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}
	return record, nil
}

func runValuesCheck(cmd *cobra.Command, args []string) error {
	record, err := readRecord(cmd)
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.ValidateRecord(args[0], args[1], valuesRole, record)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if result.Valid {
		fmt.Fprintf(out, "  %s Record is valid\n", checkMark)
		return nil
	}
	for _, e := range result.Errors {
		fmt.Fprintf(out, "  %s %s: %s\n", crossMark, e.Field, e.Message)
	}
	return fmt.Errorf("record has %d error(s)", len(result.Errors))
}
