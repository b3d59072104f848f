package commands

import (
	"fmt"
	"path/filepath"

	"github.com/dyluth/democrite/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	forceInit bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new democrite project",
	Long: `Initialize a new democrite project with a default configuration and an example
board template.

Creates:
  • democrite.yml - Redis, namespace, persistence and server settings
  • templates.yml - Board templates with an example "articles" template

The files are created next to the --config path (the current directory by default).
Use --force to overwrite existing files (WARNING: destroys existing configuration).`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing democrite.yml and templates.yml")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := scaffold.Initialize(filepath.Dir(configPath), forceInit); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	scaffold.PrintSuccess()
	return nil
}
