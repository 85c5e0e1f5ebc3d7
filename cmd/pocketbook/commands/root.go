// Package commands implements the pocketbook command line.
package commands

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"go.trai.ch/zerr"

	"github.com/jask/pocketbook/internal/app"
	"github.com/jask/pocketbook/internal/config"
	"github.com/jask/pocketbook/internal/logger"
)

// Opener builds the application components for a loaded config.
type Opener func(ctx context.Context, cfg config.Config, log *slog.Logger) (*app.App, error)

// CLI represents the command line interface for pocketbook.
type CLI struct {
	open    Opener
	rootCmd *cobra.Command

	configPath string
	dbPath     string
	jsonLogs   bool
	verbose    bool

	app *app.App
}

// New creates a CLI that opens its components with open.
func New(open Opener) *CLI {
	c := &CLI{open: open}

	rootCmd := &cobra.Command{
		Use:               "pocketbook",
		Short:             "Personal bookkeeping with a warm preload cache",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return c.teardown()
		},
	}
	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "Config file (default $POCKETBOOK_CONFIG or ~/.config/pocketbook/config.toml)")
	pf.StringVar(&c.dbPath, "db", "", "Override the database path")
	pf.BoolVar(&c.jsonLogs, "json-logs", false, "Write logs as JSON")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		c.newPreloadCmd(),
		c.newWatchCmd(),
		c.newSeedCmd(),
		c.newAdjustCmd(),
		c.newTransferCmd(),
		c.newCategorizeCmd(),
		c.newBudgetCmd(),
		c.newBackupCmd(),
		c.newRestoreCmd(),
		c.newResetCmd(),
	)
	c.rootCmd = rootCmd
	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	err := c.rootCmd.Execute()
	if err != nil {
		// PersistentPostRunE is skipped when RunE fails.
		_ = c.teardown()
	}
	return err
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

func (c *CLI) setup(cmd *cobra.Command, _ []string) error {
	path := c.configPath
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if c.dbPath != "" {
		cfg.Database.Path = c.dbPath
	}
	if c.jsonLogs {
		cfg.Log.JSON = true
	}
	if c.verbose {
		cfg.Log.Level = "debug"
	}

	log := logger.New(cmd.ErrOrStderr(), logger.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
	a, err := c.open(cmd.Context(), cfg, log)
	if err != nil {
		return zerr.Wrap(err, "open pocketbook")
	}
	c.app = a
	return nil
}

func (c *CLI) teardown() error {
	if c.app == nil {
		return nil
	}
	a := c.app
	c.app = nil
	return a.Close()
}
