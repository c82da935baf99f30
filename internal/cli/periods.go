package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func NewPeriodsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "periods",
		Short: "Inspect appraisal periods",
	}

	var year int
	list := &cobra.Command{
		Use:   "list",
		Short: "List periods, optionally for one year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(rootOpts, cmd)
			svc, closeStore, err := rootOpts.OpenService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			periods, err := svc.ListPeriods(cmd.Context(), year)
			if err != nil {
				return fmt.Errorf("list periods: %w", err)
			}
			return out.Emit(periods, func(w io.Writer) error {
				return writePeriods(w, periods)
			})
		},
	}
	list.Flags().IntVar(&year, "year", 0, "only periods of this year")
	cmd.AddCommand(list)
	return cmd
}
