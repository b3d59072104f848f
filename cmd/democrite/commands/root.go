package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/dyluth/democrite/internal/config"
	"github.com/dyluth/democrite/internal/facade"
	"github.com/dyluth/democrite/internal/node"
	"github.com/dyluth/democrite/internal/printer"
	"github.com/dyluth/democrite/internal/resolver"
	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string

	configPath string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "democrite",
	Short: "Democrite - blackboard storage for distributed sequences",
	Long: `Democrite manages blackboards: named, template-driven record stores shared by the
sequences of a distributed workflow.

Each board validates what is pushed to it against the rules of its template, lets
controllers resolve conflicts and react to changes, and persists its state in Redis.`,
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Board and registry logs go to stderr only when asked for
		if !verbose {
			log.SetOutput(io.Discard)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Cobra's error printing is replaced by the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	err := rootCmd.Execute()
	if err != nil && !printer.IsPrinted(err) {
		printer.Error("Error", err.Error(), nil)
	}
	return err
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to democrite.yml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print board and registry logs to stderr")
}

// loadConfig reads the config file and resolves the templates path against its directory.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, printer.Error(
				fmt.Sprintf("%s not found", configPath),
				"No configuration file found.",
				[]string{"Initialize a project first:\n  democrite init"},
			)
		}
		return nil, printer.Error("invalid configuration", err.Error(), nil)
	}
	if !filepath.IsAbs(cfg.Templates.Path) {
		cfg.Templates.Path = filepath.Join(filepath.Dir(configPath), cfg.Templates.Path)
	}
	return cfg, nil
}

// withNode opens the configured host, runs fn and flushes every touched board before
// returning.
func withNode(ctx context.Context, fn func(n *node.Node) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	n, err := node.Open(ctx, cfg)
	if err != nil {
		return printer.ErrorWithContext(
			"failed to open blackboard host",
			err.Error(),
			map[string]string{"Namespace": cfg.Namespace, "Redis": cfg.Redis.URL, "Backend": string(cfg.Storage.Backend)},
			[]string{"Start a local store:\n  democrite store up", "Check redis.url in " + configPath},
		)
	}

	runErr := fn(n)
	if closeErr := n.Close(ctx); closeErr != nil && runErr == nil {
		return fmt.Errorf("failed to flush boards: %w", closeErr)
	}
	return runErr
}

// resolveBoard wraps node.ResolveBoard with user facing errors.
func resolveBoard(ctx context.Context, n *node.Node, ref, templateKey string) (*facade.Proxy, error) {
	p, err := n.ResolveBoard(ctx, ref, templateKey)
	switch {
	case err == nil:
		return p, nil
	case resolver.IsAmbiguousError(err):
		var amb *resolver.AmbiguousError
		errors.As(err, &amb)
		return nil, printer.Error("ambiguous board ID", amb.Details(), []string{"Use a longer prefix or the board name/template key"})
	case resolver.IsNotFoundError(err), errors.Is(err, facade.ErrBoardMissing):
		return nil, printer.Error("board not found", err.Error(), []string{"List boards:\n  democrite board list"})
	case errors.Is(err, blackboard.ErrMissingDefinition):
		return nil, printer.Error("unknown template", err.Error(), []string{fmt.Sprintf("Available templates: %v", n.Templates.Names())})
	default:
		return nil, err
	}
}
