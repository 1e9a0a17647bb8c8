package cli

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/project-euler/queryassist/internal/service"
)

func newAskCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Answer a prompt against the loaded datasets",
		Example: `  queryctl -f loans.csv ask "show loans over $5,000 in branch 4"
  queryctl -f loans.csv -f checking.csv ask "find loans and checking accounts in branch 4" -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			ans, err := a.Pipeline.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				if ans != nil && errors.Is(err, service.ErrInvalidPlan) {
					if output == "json" {
						_ = renderJSON(out, ans)
					} else {
						renderIssues(out, ans.Validation)
					}
				}
				return err
			}

			if output == "json" {
				return renderJSON(out, ans)
			}
			return renderAnswer(cmd.Context(), out, a, ans)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table|json)")
	return cmd
}

func newParseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <prompt>",
		Short: "Print the query plan a prompt parses into",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			return renderJSON(cmd.OutOrStdout(), a.Pipeline.Parse(strings.Join(args, " ")))
		},
	}
}

func newSourcesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the loaded datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			list, err := a.Store.ListSources(cmd.Context())
			if err != nil {
				return err
			}
			renderSources(cmd.OutOrStdout(), list)
			return nil
		},
	}
}

func newFunctionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "functions",
		Short: "List the registered financial functions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			renderFunctions(cmd.OutOrStdout(), a.Pipeline.Functions().List())
			return nil
		},
	}
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.Serve(ctx)
		},
	}
	cmd.Flags().Int("port", 0, "listen port")
	return cmd
}
