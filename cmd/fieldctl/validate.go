package main

import (
	"fmt"
	"os"

	"github.com/artpar/fieldschema/adapters/sqlite"
	"github.com/artpar/fieldschema/config"
	"github.com/artpar/fieldschema/core/schema"
	"github.com/artpar/fieldschema/core/seeds"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [definition files or dirs...]",
	Short: "Validate configuration and module definitions",
	Long: `Validate the fieldctl configuration and module definitions.

Checks:
  - Config file syntax and values (when the file exists)
  - Built-in module definitions
  - Module definitions in modules.dir and in any given paths
  - Database is writable (optional)

Examples:
  fieldctl validate
  fieldctl validate modules/library.yaml
  fieldctl validate --check-database`,
	RunE: runValidate,
}

var validateCheckDatabase bool

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckDatabase, "check-database", false, "check that the database opens and migrates")
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	failed := 0

	fmt.Fprintf(out, "Validating %s...\n\n", cfgFile)

	var cfg *config.Config
	if _, err := os.Stat(cfgFile); err == nil {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			fmt.Fprintf(out, "  %s Config valid\n", crossMark)
			return fmt.Errorf("config error: %w", err)
		}
		fmt.Fprintf(out, "  %s Config valid\n", checkMark)
	} else {
		cfg, err = config.LoadFromEnv()
		if err != nil {
			fmt.Fprintf(out, "  %s Config from environment valid\n", crossMark)
			return fmt.Errorf("config error: %w", err)
		}
		fmt.Fprintf(out, "  %s No config file, using environment and defaults\n", checkMark)
	}
	fmt.Fprintf(out, "  %s Database: %s (%s)\n", checkMark, cfg.Database.DSN, cfg.Database.Driver)

	if cfg.Modules.LoadEmbedded() {
		mods, err := seeds.Modules()
		if err != nil {
			failed++
			fmt.Fprintf(out, "  %s Built-in modules\n", crossMark)
			fmt.Fprintf(out, "      Error: %v\n", err)
		} else {
			fmt.Fprintf(out, "  %s Built-in modules: %d\n", checkMark, len(mods))
		}
	}

	paths := args
	if cfg.Modules.Dir != "" {
		paths = append([]string{cfg.Modules.Dir}, paths...)
	}
	for _, p := range paths {
		n, err := validateDefinitions(p)
		if err != nil {
			failed++
			fmt.Fprintf(out, "  %s %s\n", crossMark, p)
			fmt.Fprintf(out, "      Error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "  %s %s: %d module(s)\n", checkMark, p, n)
	}

	if validateCheckDatabase && cfg.Database.Driver == "sqlite" {
		if err := checkDatabaseWritable(cfg.Database.DSN); err != nil {
			failed++
			fmt.Fprintf(out, "  %s Database writable\n", crossMark)
			fmt.Fprintf(out, "      Error: %v\n", err)
		} else {
			fmt.Fprintf(out, "  %s Database writable\n", checkMark)
		}
	}

	fmt.Fprintln(out)
	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	fmt.Fprintln(out, "Configuration is valid.")
	return nil
}

// validateDefinitions parses a definition file or every definition in a
// directory, returning how many modules it holds.
func validateDefinitions(path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		mods, err := schema.ParseDir(path)
		return len(mods), err
	}
	if _, err := schema.ParseFile(path); err != nil {
		return 0, err
	}
	return 1, nil
}

func checkDatabaseWritable(dsn string) error {
	db, err := sqlite.Open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Migrate()
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
