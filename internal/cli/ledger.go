package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"appraisal/internal/domain/appraisal"
	"appraisal/internal/domain/auth"
)

// operator is the actor recorded on events written by the CLI.
var operator = appraisal.Actor{UserID: "appraisalctl", Role: auth.RoleAdmin}

func NewBackfillCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backfill-ledger",
		Short: "Create missing ledger entries for completed appraisals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(rootOpts, cmd)
			svc, closeStore, err := rootOpts.OpenService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			summary, err := svc.BackfillLedger(cmd.Context())
			if err != nil {
				return fmt.Errorf("backfill ledger: %w", err)
			}
			for _, id := range summary.SkippedIDs {
				out.VerboseLog("skipped %s: completed without scores", id)
			}
			return out.Emit(summary, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "scanned %d, created %d, skipped %d\n", summary.Scanned, summary.Created, summary.Skipped)
				return err
			})
		},
	}
}

func NewResyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resync-ledger <appraisal-id>",
		Short: "Rewrite a ledger entry from its appraisal's scores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(rootOpts, cmd)
			svc, closeStore, err := rootOpts.OpenService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			entry, err := svc.ResyncLedgerEntry(cmd.Context(), args[0], operator)
			if err != nil {
				return fmt.Errorf("resync ledger: %w", err)
			}
			return out.Emit(entry, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s %s: %.1f (%s)\n", entry.StaffID, entry.PeriodLabel, entry.Score, entry.Rating)
				return err
			})
		},
	}
}

func NewLeaderboardCommand(rootOpts *RootOptions) *cobra.Command {
	var scope appraisal.Scope
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Rank staff over one period or a whole year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (scope.PeriodID == "") == (scope.Year == 0) {
				return fmt.Errorf("exactly one of --period or --year is required")
			}
			out := formatter(rootOpts, cmd)
			svc, closeStore, err := rootOpts.OpenService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			rankings, err := svc.Leaderboard(cmd.Context(), scope)
			if err != nil {
				return fmt.Errorf("leaderboard: %w", err)
			}
			return out.Emit(rankings, func(w io.Writer) error {
				return writeLeaderboard(w, rankings)
			})
		},
	}
	cmd.Flags().StringVar(&scope.PeriodID, "period", "", "period id")
	cmd.Flags().IntVar(&scope.Year, "year", 0, "calendar year")
	return cmd
}
