package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/artpar/fieldschema/app"
	"github.com/artpar/fieldschema/bootstrap"
	"github.com/artpar/fieldschema/config"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	actor   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fieldctl",
	Short: "Manage custom field schemas for school admin records",
	Long: `fieldctl manages the field schemas of the school admin console.

Every module (class, student, teacher) ships system fields. Administrators
add custom fields, edit them, reorder them and decide which roles see them.
Changes are stored with a full audit trail.

Schema:
  fieldctl modules list           # Loaded modules
  fieldctl sections list teacher  # Sections of a module
  fieldctl fields list teacher    # Fields, optionally filtered by role
  fieldctl fields add teacher personal-info --label Nickname --type text

Records and history:
  fieldctl values check class subjects --file subject.json
  fieldctl audit teacher
  fieldctl export teacher --format yaml`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "fieldschema.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", os.Getenv("USER"), "who is making the change (recorded in the audit log)")
}

// loadConfig reads the config file when it exists, falling back to
// FIELDSCHEMA_* environment variables.
func loadConfig() (*config.Config, error) {
	return config.LoadWithFallback(cfgFile)
}

// openApp loads configuration and wires the application.
func openApp(cmd *cobra.Command) (*bootstrap.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return bootstrap.New(cmd.Context(), cfg, bootstrap.Options{LogOutput: cmd.ErrOrStderr()})
}

// actorContext attributes changes made by cmd to the --actor flag.
func actorContext(cmd *cobra.Command) context.Context {
	return app.WithActor(cmd.Context(), actor)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
