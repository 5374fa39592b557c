package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var sectionsCmd = &cobra.Command{
	Use:   "sections",
	Short: "Inspect and toggle module sections",
	Long: `List the sections of a module and expand or collapse them.

Expanded state is kept with the schema but does not change its version.

Examples:
  fieldctl sections list teacher
  fieldctl sections list student --tab academic
  fieldctl sections expand teacher salary-details`,
}

var sectionsListCmd = &cobra.Command{
	Use:   "list <module>",
	Short: "List sections",
	Args:  cobra.ExactArgs(1),
	RunE:  runSectionsList,
}

var sectionsExpandCmd = &cobra.Command{
	Use:   "expand <module> <section>",
	Short: "Mark a section as expanded",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSectionsToggle(cmd, args, true)
	},
}

var sectionsCollapseCmd = &cobra.Command{
	Use:   "collapse <module> <section>",
	Short: "Mark a section as collapsed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSectionsToggle(cmd, args, false)
	},
}

var sectionsTab string

func init() {
	rootCmd.AddCommand(sectionsCmd)

	sectionsCmd.AddCommand(sectionsListCmd)
	sectionsCmd.AddCommand(sectionsExpandCmd)
	sectionsCmd.AddCommand(sectionsCollapseCmd)

	sectionsListCmd.Flags().StringVar(&sectionsTab, "tab", "", "only sections on this tab")
}

func runSectionsList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := a.Store(args[0])
	if err != nil {
		return err
	}

	sections := store.Sections()
	if sectionsTab != "" {
		sections = store.SectionsByTab(sectionsTab)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTAB\tFIELDS\tEXPANDED")
	fmt.Fprintln(w, "--\t----\t---\t------\t--------")
	for _, sec := range sections {
		tab := sec.Tab
		if tab == "" {
			tab = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", sec.ID, sec.Name, tab, len(sec.Fields), yesNo(sec.Expanded))
	}
	return w.Flush()
}

func runSectionsToggle(cmd *cobra.Command, args []string, expanded bool) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := a.Store(args[0])
	if err != nil {
		return err
	}
	if err := store.SetExpanded(actorContext(cmd), args[1], expanded); err != nil {
		return err
	}

	state := "collapsed"
	if expanded {
		state = "expanded"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Section %s %s\n", args[1], state)
	return nil
}
