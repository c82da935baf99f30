package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"appraisal/internal/app/server"
	"appraisal/internal/domain/appraisal"
	"appraisal/internal/platform/config"
)

// ServiceOpener returns a ready service and a func releasing its store.
type ServiceOpener func(ctx context.Context) (*appraisal.Service, func(), error)

// RootOptions holds global flags and the dependencies shared by commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	Config      func() config.Config
	OpenService ServiceOpener
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	return NewRootCommandWith(&RootOptions{})
}

// NewRootCommandWith builds the command tree around opts. Nil dependencies
// fall back to the environment configuration.
func NewRootCommandWith(opts *RootOptions) *cobra.Command {
	if opts.Config == nil {
		opts.Config = config.Load
	}
	if opts.OpenService == nil {
		opts.OpenService = openFromConfig(opts.Config)
	}

	cmd := &cobra.Command{
		Use:   "appraisalctl",
		Short: "Operator tool for the staff appraisal service",
		Long:  "Runs migrations, maintains the performance history ledger and inspects leaderboards and scores.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewBackfillCommand(opts))
	cmd.AddCommand(NewResyncCommand(opts))
	cmd.AddCommand(NewLeaderboardCommand(opts))
	cmd.AddCommand(NewScoreCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewPeriodsCommand(opts))

	return cmd
}

func openFromConfig(load func() config.Config) ServiceOpener {
	return func(ctx context.Context) (*appraisal.Service, func(), error) {
		cfg := load()
		store, closeStore, err := server.OpenStore(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		svc, err := server.NewService(cfg, store, nil)
		if err != nil {
			closeStore()
			return nil, nil, err
		}
		return svc, closeStore, nil
	}
}

func formatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
