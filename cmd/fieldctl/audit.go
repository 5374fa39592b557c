package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/artpar/fieldschema/core/formatter"
	"github.com/artpar/fieldschema/domain/audit"
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit <module>",
	Short: "Show the schema change log",
	Long: `Show recorded schema changes for a module, newest first.

Examples:
  fieldctl audit teacher
  fieldctl audit teacher --field fld_123
  fieldctl audit student --since 24h --limit 10`,
	Args: cobra.ExactArgs(1),
	RunE: runAudit,
}

var (
	auditField string
	auditActor string
	auditSince time.Duration
	auditLimit int
	auditOut   string
)

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().StringVar(&auditField, "field", "", "only changes to this field id")
	auditCmd.Flags().StringVar(&auditActor, "by", "", "only changes by this actor")
	auditCmd.Flags().DurationVar(&auditSince, "since", 0, "only changes newer than this (e.g. 24h)")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 50, "maximum entries to show (0 for all)")
	auditCmd.Flags().StringVarP(&auditOut, "output", "o", "table", "output format (table, json, yaml)")
}

func runAudit(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.Audit == nil {
		return fmt.Errorf("audit log is disabled (audit.enabled: false)")
	}
	if _, err := a.Store(args[0]); err != nil {
		return err
	}

	filter := audit.Filter{
		Module:  args[0],
		FieldID: auditField,
		Actor:   auditActor,
		Limit:   auditLimit,
	}
	if auditSince > 0 {
		filter.Since = time.Now().Add(-auditSince)
	}

	entries, err := a.Audit.List(cmd.Context(), filter)
	if err != nil {
		return err
	}
	if auditOut != "table" {
		f, err := formatter.Lookup(auditOut)
		if err != nil {
			return err
		}
		return f.Format(cmd.OutOrStdout(), entries, formatter.FormatOptions{})
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No changes recorded.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTION\tFIELD\tACTOR\tVERSION\tSUMMARY")
	fmt.Fprintln(w, "----\t------\t-----\t-----\t-------\t-------")
	for _, e := range entries {
		who := e.Actor
		if who == "" {
			who = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			e.At.Local().Format("2006-01-02 15:04:05"),
			e.Action,
			e.FieldKey,
			who,
			e.Version,
			e.Summary(),
		)
	}
	return w.Flush()
}
