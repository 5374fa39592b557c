package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/artpar/fieldschema/core/visibility"
	"github.com/spf13/cobra"
)

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "Inspect loaded modules",
	Long: `Inspect the modules whose schemas fieldctl manages.

Modules come from the built-in definitions and from modules.dir.

Examples:
  fieldctl modules list
  fieldctl modules show teacher`,
}

var modulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all modules",
	RunE:  runModulesList,
}

var modulesShowCmd = &cobra.Command{
	Use:   "show <module>",
	Short: "Show module roles, tabs and field audience",
	Args:  cobra.ExactArgs(1),
	RunE:  runModulesShow,
}

func init() {
	rootCmd.AddCommand(modulesCmd)

	modulesCmd.AddCommand(modulesListCmd)
	modulesCmd.AddCommand(modulesShowCmd)
}

func runModulesList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODULE\tSOURCE\tROLES\tSECTIONS\tFIELDS\tVERSION")
	fmt.Fprintln(w, "------\t------\t-----\t--------\t------\t-------")

	for _, e := range a.Registry.List() {
		store, err := a.Store(e.Module.Name)
		if err != nil {
			return err
		}
		snap := store.Snapshot()
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
			e.Module.Name,
			e.Source,
			strings.Join(e.Module.Roles, ","),
			len(snap.Sections),
			snap.FieldCount(),
			snap.Version,
		)
	}
	return w.Flush()
}

func runModulesShow(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	mod, err := a.Registry.Lookup(args[0])
	if err != nil {
		return err
	}
	store, err := a.Store(mod.Name)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Module:      %s\n", mod.Name)
	if mod.Description != "" {
		fmt.Fprintf(out, "Description: %s\n", mod.Description)
	}
	fmt.Fprintf(out, "Roles:       %s\n", strings.Join(mod.Roles, ", "))
	fmt.Fprintf(out, "Version:     %d\n", store.Version())

	if tabs := mod.Tabs(); len(tabs) > 0 {
		fmt.Fprintf(out, "Tabs:        %s\n", strings.Join(tabs, ", "))
	}

	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	header := "SECTION\tFIELDS"
	for _, r := range mod.Roles {
		header += "\t" + strings.ToUpper(r)
	}
	fmt.Fprintln(w, header)

	for _, sec := range store.Sections() {
		audience := visibility.Audience(sec.Fields, mod.Roles)
		line := fmt.Sprintf("%s\t%d", sec.ID, len(sec.Fields))
		for _, r := range mod.Roles {
			line += fmt.Sprintf("\t%d", audience[r])
		}
		fmt.Fprintln(w, line)
	}
	return w.Flush()
}
