// Package cli provides the queryctl command line: ask questions of local
// datasets, inspect parsed plans and run the HTTP server.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/project-euler/queryassist/internal/app"
	"github.com/project-euler/queryassist/internal/config"
)

// appKey stores the assembled app in the command context
type appKey struct{}

// NewRootCmd creates the root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "queryctl",
		Short: "Ask banking datasets questions in plain English",
		Long: `queryctl loads CSV and JSON datasets, turns English prompts into query
plans and runs them against the loaded data.

Datasets are given with --file (repeatable) or listed under data.files in
queryassist.yaml.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			logger := cfg.NewLogger(cmd.ErrOrStderr())

			a, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			if err := a.LoadFiles(cmd.Context(), cfg.Data.Files); err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./"+config.DefaultFile+")")
	pf.StringSliceP("file", "f", nil, "dataset to load, repeatable (csv or json)")
	pf.String("log-level", "", "log level (debug|info|warn|error)")
	pf.String("log-format", "", "log format (text|json)")
	pf.Int("sample-size", 0, "rows sampled when inferring column types")

	root.AddCommand(
		newAskCommand(),
		newParseCommand(),
		newSourcesCommand(),
		newFunctionsCommand(),
		newServeCommand(),
	)
	return root
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func appFrom(cmd *cobra.Command) (*app.App, error) {
	a, ok := cmd.Context().Value(appKey{}).(*app.App)
	if !ok {
		return nil, errors.New("application not initialised")
	}
	return a, nil
}
